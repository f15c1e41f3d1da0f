package services

import (
	"context"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	apperrors "transcript-tool/internal/errors"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Downloader fetches direct links and Google Drive files to local disk.
type Downloader struct {
	client       *http.Client
	tempDir      string
	driveBaseURL string
}

func NewDownloader(client *http.Client, tempDir, driveBaseURL string) *Downloader {
	if client == nil {
		// No overall timeout: large downloads are bounded by the caller's context.
		client = &http.Client{}
	}
	if driveBaseURL == "" {
		driveBaseURL = "https://drive.google.com"
	}
	return &Downloader{
		client:       client,
		tempDir:      tempDir,
		driveBaseURL: strings.TrimSuffix(driveBaseURL, "/"),
	}
}

// FetchDirect streams a plain http(s) link to disk and rejects bodies that
// are not video or audio.
func (d *Downloader) FetchDirect(ctx context.Context, rawURL string, maxBytes int64, progress ByteProgress) (*LocalMedia, error) {
	resp, err := d.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	name := displayNameFromURL(rawURL)
	if cd := filenameFromDisposition(resp.Header.Get("Content-Disposition")); cd != "" {
		name = cd
	}
	return d.saveBody(resp, name, maxBytes, progress)
}

func (d *Downloader) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDownloadFailed, "invalid download URL")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDownloadFailed, "download request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, apperrors.Newf(apperrors.KindDownloadFailed, "download failed with status %d", resp.StatusCode)
	}
	return resp, nil
}

// saveBody writes a response body to a temporary file, then sniffs it. The
// extension is corrected from the sniffed type when the name lacks a useful one.
func (d *Downloader) saveBody(resp *http.Response, name string, maxBytes int64, progress ByteProgress) (*LocalMedia, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !videoExtensions[ext] {
		ext = ""
	}

	start := time.Now()
	tmpPath, size, err := writeTemp(d.tempDir, ext, resp.Body, resp.ContentLength, maxBytes, progress)
	if err != nil {
		return nil, err
	}

	mimeType, kind := sniffMedia(tmpPath)
	if mimeType == "" {
		os.Remove(tmpPath)
		return nil, apperrors.New(apperrors.KindDownloadFailed, "URL did not return a video or audio file")
	}

	if ext == "" {
		if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
			renamed := tmpPath + m.Extension()
			if err := os.Rename(tmpPath, renamed); err == nil {
				tmpPath = renamed
			}
		}
	}

	log.Printf("Downloaded %s (%s) in %s", name, describeSize(size), time.Since(start).Round(time.Millisecond))
	return &LocalMedia{
		Path:        tmpPath,
		Size:        size,
		Kind:        kind,
		DisplayName: name,
		MIMEType:    mimeType,
	}, nil
}

func displayNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "video"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return u.Host
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		return unescaped
	}
	return base
}

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// progressReader reports bytes read through it, at most ten times per second.
type progressReader struct {
	reader     io.Reader
	total      int64
	current    int64
	report     ByteProgress
	lastReport time.Time
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)

	if pr.report != nil && time.Since(pr.lastReport) > 100*time.Millisecond {
		total := pr.total
		if total <= 0 {
			total = -1
		}
		pr.report(pr.current, total)
		pr.lastReport = time.Now()
	}
	return n, err
}

