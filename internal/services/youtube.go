package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

// youtubeClient is the part of the kkdai client the downloader needs.
type youtubeClient interface {
	GetVideoContext(ctx context.Context, url string) (*yt.Video, error)
	GetStreamContext(ctx context.Context, video *yt.Video, format *yt.Format) (io.ReadCloser, int64, error)
}

// formatConstraint is one rung of the quality ladder.
type formatConstraint struct {
	label     string
	maxHeight int
	mimeType  string
	audioOnly bool
}

// formatLadder is tried top to bottom; the first rung that downloads wins.
var formatLadder = []formatConstraint{
	{label: "720p mp4", maxHeight: 720, mimeType: "video/mp4"},
	{label: "480p mp4", maxHeight: 480, mimeType: "video/mp4"},
	{label: "360p mp4", maxHeight: 360, mimeType: "video/mp4"},
	{label: "any muxed", mimeType: "video/"},
	{label: "audio only", mimeType: "audio/", audioOnly: true},
}

type YouTubeDownloader struct {
	client      youtubeClient
	tempDir     string
	maxDuration time.Duration
}

func NewYouTubeDownloader(tempDir string, maxDuration time.Duration) *YouTubeDownloader {
	return &YouTubeDownloader{
		client:      &yt.Client{},
		tempDir:     tempDir,
		maxDuration: maxDuration,
	}
}

// Fetch downloads a YouTube video, checking its duration before any stream is opened.
func (d *YouTubeDownloader) Fetch(ctx context.Context, ref string, maxBytes int64, progress ByteProgress) (*LocalMedia, error) {
	video, err := d.client.GetVideoContext(ctx, ref)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDownloadFailed, "failed to fetch YouTube video metadata")
	}

	if d.maxDuration > 0 && video.Duration > d.maxDuration {
		return nil, apperrors.Newf(apperrors.KindTooLarge, "video is %s long, the limit is %s",
			video.Duration.Round(time.Second), d.maxDuration)
	}

	media, err := firstSuccess(ctx, formatLadder, func(ctx context.Context, c formatConstraint) (*LocalMedia, error) {
		format, ok := pickFormat(video.Formats, c, maxBytes)
		if !ok {
			return nil, fmt.Errorf("%s: no matching format", c.label)
		}
		media, err := d.download(ctx, video, format, maxBytes, progress)
		if err != nil {
			log.Printf("YouTube %s failed for %s: %v", c.label, video.ID, err)
			return nil, fmt.Errorf("%s: %w", c.label, err)
		}
		if c.audioOnly {
			media.Kind = models.MediaAudio
		}
		return media, nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDownloadFailed, "no viable stream")
	}

	if video.Title != "" {
		media.DisplayName = video.Title
	}
	return media, nil
}

func (d *YouTubeDownloader) download(ctx context.Context, video *yt.Video, format *yt.Format, maxBytes int64, progress ByteProgress) (*LocalMedia, error) {
	stream, size, err := d.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()

	ext := ".mp4"
	mimeType := baseMIME(format.MimeType)
	switch {
	case strings.Contains(mimeType, "webm"):
		ext = ".webm"
	case strings.HasPrefix(mimeType, "audio/"):
		ext = ".m4a"
	}

	tmpPath, written, err := writeTemp(d.tempDir, ext, stream, size, maxBytes, progress)
	if err != nil {
		return nil, err
	}

	kind := models.MediaVideo
	if strings.HasPrefix(mimeType, "audio/") {
		kind = models.MediaAudio
	}
	return &LocalMedia{
		Path:        tmpPath,
		Size:        written,
		Kind:        kind,
		DisplayName: video.ID,
		MIMEType:    mimeType,
	}, nil
}

// pickFormat returns the tallest format satisfying c whose declared size fits.
// Formats that do not declare a size are allowed through; the download
// itself enforces the limit.
func pickFormat(formats yt.FormatList, c formatConstraint, maxBytes int64) (*yt.Format, bool) {
	var best *yt.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || !strings.HasPrefix(baseMIME(f.MimeType), c.mimeType) {
			continue
		}
		if c.audioOnly != (f.Height == 0) {
			continue
		}
		if c.maxHeight > 0 && f.Height > c.maxHeight {
			continue
		}
		if maxBytes > 0 && f.ContentLength > maxBytes {
			continue
		}
		if best == nil || f.Height > best.Height ||
			(f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = f
		}
	}
	return best, best != nil
}

// firstSuccess runs try on each step in order and returns the first result
// without an error. When every step fails the errors are joined.
func firstSuccess[S, R any](ctx context.Context, steps []S, try func(context.Context, S) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		r, err := try(ctx, step)
		if err == nil {
			return r, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return zero, errors.New("no steps to try")
	}
	return zero, errors.Join(errs...)
}

func baseMIME(mt string) string {
	return strings.TrimSpace(strings.Split(mt, ";")[0])
}
