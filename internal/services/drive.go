package services

import (
	"context"
	"io"
	"net/url"
	"regexp"
	"strings"

	apperrors "transcript-tool/internal/errors"
)

var (
	driveIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`),
		regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`),
		regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`),
	}
	confirmTokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`confirm=([0-9A-Za-z_-]+)`),
		regexp.MustCompile(`name="confirm"\s+value="([^"]+)"`),
	}
	uuidFieldPattern = regexp.MustCompile(`name="uuid"\s+value="([^"]+)"`)
	driveTitle       = regexp.MustCompile(`<span class="uc-name-size"><a[^>]*>([^<]+)</a>`)
)

// interstitialMarkers identify the "file too large to scan" page Drive serves
// instead of the file body.
var interstitialMarkers = []string{
	"download_warning",
	"uc-download-link",
	"Google Drive can't scan this file for viruses",
	"virus scan warning",
	`name="confirm"`,
}

const maxInterstitialBytes = 2 << 20

// ExtractDriveFileID pulls the file id out of a Drive share link.
func ExtractDriveFileID(ref string) (string, error) {
	for _, re := range driveIDPatterns {
		if m := re.FindStringSubmatch(ref); len(m) > 1 {
			return m[1], nil
		}
	}
	return "", apperrors.New(apperrors.KindUnrecognizedSource, "could not find a file id in the Google Drive link")
}

// FetchDrive downloads a Drive file by id, confirming through the large-file
// interstitial when Drive serves one.
func (d *Downloader) FetchDrive(ctx context.Context, fileID string, maxBytes int64, progress ByteProgress) (*LocalMedia, error) {
	q := url.Values{"export": {"download"}, "id": {fileID}}
	downloadURL := d.driveBaseURL + "/uc?" + q.Encode()

	resp, err := d.get(ctx, downloadURL)
	if err != nil {
		return nil, err
	}

	name := "drive-" + fileID
	if isHTML(resp.Header.Get("Content-Type")) {
		page, readErr := io.ReadAll(io.LimitReader(resp.Body, maxInterstitialBytes))
		cookies := resp.Cookies()
		resp.Body.Close()
		if readErr != nil {
			return nil, apperrors.Wrap(readErr, apperrors.KindDownloadFailed, "failed to read Google Drive response")
		}

		body := string(page)
		if !containsMarker(body) {
			return nil, apperrors.New(apperrors.KindDownloadFailed, "Google Drive returned a page instead of the file, check that it is shared publicly")
		}

		token := confirmToken(body)
		if token == "" {
			for _, c := range cookies {
				if strings.HasPrefix(c.Name, "download_warning") {
					token = c.Value
					break
				}
			}
		}
		if token == "" {
			return nil, apperrors.New(apperrors.KindDownloadFailed, "could not confirm the Google Drive download")
		}
		if m := driveTitle.FindStringSubmatch(body); len(m) > 1 {
			name = strings.TrimSpace(m[1])
		}

		q.Set("confirm", token)
		if m := uuidFieldPattern.FindStringSubmatch(body); len(m) > 1 {
			q.Set("uuid", m[1])
		}
		resp, err = d.get(ctx, d.driveBaseURL+"/uc?"+q.Encode())
		if err != nil {
			return nil, err
		}
		if isHTML(resp.Header.Get("Content-Type")) {
			resp.Body.Close()
			return nil, apperrors.New(apperrors.KindDownloadFailed, "Google Drive refused the confirmed download")
		}
	}
	defer resp.Body.Close()

	if cd := filenameFromDisposition(resp.Header.Get("Content-Disposition")); cd != "" {
		name = cd
	}
	return d.saveBody(resp, name, maxBytes, progress)
}

func confirmToken(page string) string {
	for _, re := range confirmTokenPatterns {
		if m := re.FindStringSubmatch(page); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

func containsMarker(page string) bool {
	for _, marker := range interstitialMarkers {
		if strings.Contains(page, marker) {
			return true
		}
	}
	return false
}

func isHTML(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/html")
}
