package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
	".m4v": true, ".flv": true, ".wmv": true, ".mpeg": true, ".mpg": true,
	".3gp": true, ".mp3": true, ".m4a": true, ".wav": true, ".ogg": true,
}

var hostPrefix = regexp.MustCompile(`^[a-z0-9-]+(\.[a-z0-9-]+)+(:\d+)?/`)

// Classify decides a reference's kind from its shape alone. Anything that
// does not look like a URL is treated as the name of an uploaded file.
func Classify(ref string) models.SourceKind {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.SourceUnrecognized
	}
	lower := strings.ToLower(ref)

	if !looksLikeURL(lower) {
		return models.SourceUpload
	}

	switch {
	case strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be"):
		return models.SourceYouTube
	case strings.Contains(lower, "drive.google.com") || strings.Contains(lower, "docs.google.com"):
		return models.SourceGoogleDrive
	}
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if u, err := url.Parse(ref); err == nil && videoExtensions[strings.ToLower(path.Ext(u.Path))] {
			return models.SourceDirectURL
		}
	}
	return models.SourceUnrecognized
}

func looksLikeURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "www.") || hostPrefix.MatchString(s)
}

// ByteProgress receives bytes written so far and the expected total, or -1 when unknown.
type ByteProgress func(written, total int64)

// SourceResolver turns a VideoSource into a LocalMedia on disk.
type SourceResolver struct {
	downloader        *Downloader
	youtube           *YouTubeDownloader
	tempDir           string
	maxInferenceBytes int64
}

func NewSourceResolver(downloader *Downloader, youtube *YouTubeDownloader, tempDir string, maxInferenceBytes int64) *SourceResolver {
	return &SourceResolver{
		downloader:        downloader,
		youtube:           youtube,
		tempDir:           tempDir,
		maxInferenceBytes: maxInferenceBytes,
	}
}

// Resolve produces the local file for src. Remote sizes are re-checked after
// the download because content-length headers cannot be trusted.
func (r *SourceResolver) Resolve(ctx context.Context, src models.VideoSource, progress ByteProgress) (*LocalMedia, error) {
	if progress == nil {
		progress = func(int64, int64) {}
	}

	var (
		media *LocalMedia
		err   error
	)
	switch src.Kind {
	case models.SourceUpload:
		media, err = r.saveUpload(src, progress)
	case models.SourceDirectURL:
		media, err = r.downloader.FetchDirect(ctx, src.Reference, r.maxInferenceBytes, progress)
	case models.SourceGoogleDrive:
		id, idErr := ExtractDriveFileID(src.Reference)
		if idErr != nil {
			return nil, idErr
		}
		media, err = r.downloader.FetchDrive(ctx, id, r.maxInferenceBytes, progress)
	case models.SourceYouTube:
		media, err = r.youtube.Fetch(ctx, src.Reference, r.maxInferenceBytes, progress)
	default:
		return nil, apperrors.Newf(apperrors.KindUnrecognizedSource, "cannot handle %q", src.Reference)
	}
	if err != nil {
		return nil, err
	}

	if r.maxInferenceBytes > 0 && media.Size > r.maxInferenceBytes {
		media.Cleanup()
		return nil, apperrors.Newf(apperrors.KindTooLarge, "file is %d MB, the limit is %d MB",
			media.Size/(1024*1024), r.maxInferenceBytes/(1024*1024))
	}
	return media, nil
}

func (r *SourceResolver) saveUpload(src models.VideoSource, progress ByteProgress) (*LocalMedia, error) {
	if src.Content == nil {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "upload has no content")
	}
	name := src.FileName
	if name == "" {
		name = src.Reference
	}
	ext := strings.ToLower(filepath.Ext(name))

	tmpPath, size, err := writeTemp(r.tempDir, ext, src.Content, src.SizeBytes, r.maxInferenceBytes, progress)
	if err != nil {
		return nil, err
	}

	mimeType, kind := sniffMedia(tmpPath)
	if mimeType == "" {
		mimeType = mime.TypeByExtension(ext)
		if mimeType == "" {
			mimeType = "video/mp4"
		}
		if strings.HasPrefix(mimeType, "audio/") {
			kind = models.MediaAudio
		}
	}

	return &LocalMedia{
		Path:        tmpPath,
		Size:        size,
		Kind:        kind,
		DisplayName: filepath.Base(name),
		MIMEType:    mimeType,
	}, nil
}

// writeTemp streams r into a new temporary file. Bodies larger than maxBytes
// are abandoned and reported as too large.
func writeTemp(dir, ext string, r io.Reader, total, maxBytes int64, progress ByteProgress) (string, int64, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", 0, apperrors.Wrap(err, apperrors.KindInternal, "failed to create storage directory")
		}
	}
	f, err := os.CreateTemp(dir, "media-*"+ext)
	if err != nil {
		return "", 0, apperrors.Wrap(err, apperrors.KindInternal, "failed to create temporary file")
	}

	var src io.Reader = &progressReader{reader: r, total: total, report: progress}
	if maxBytes > 0 {
		src = io.LimitReader(src, maxBytes+1)
	}

	written, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(f.Name())
		return "", 0, apperrors.Wrap(copyErr, apperrors.KindDownloadFailed, "failed to write media")
	}
	if maxBytes > 0 && written > maxBytes {
		os.Remove(f.Name())
		return "", 0, apperrors.Newf(apperrors.KindTooLarge, "file exceeds the %d MB limit", maxBytes/(1024*1024))
	}
	progress(written, written)
	return f.Name(), written, nil
}

// sniffMedia reads the file header. It returns an empty MIME type when the
// content is neither video nor audio.
func sniffMedia(p string) (string, models.MediaKind) {
	m, err := mimetype.DetectFile(p)
	if err != nil {
		return "", models.MediaVideo
	}
	for cur := m; cur != nil; cur = cur.Parent() {
		mt := cur.String()
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = mt[:i]
		}
		switch {
		case strings.HasPrefix(mt, "video/"):
			return mt, models.MediaVideo
		case strings.HasPrefix(mt, "audio/"):
			return mt, models.MediaAudio
		}
	}
	return "", models.MediaVideo
}

func describeSize(n int64) string {
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}
