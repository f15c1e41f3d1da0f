package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	yt "github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

type fakeYouTube struct {
	video       *yt.Video
	failItags   map[int]bool
	streamCalls []int
}

func (f *fakeYouTube) GetVideoContext(ctx context.Context, url string) (*yt.Video, error) {
	if f.video == nil {
		return nil, errors.New("video unavailable")
	}
	return f.video, nil
}

func (f *fakeYouTube) GetStreamContext(ctx context.Context, video *yt.Video, format *yt.Format) (io.ReadCloser, int64, error) {
	f.streamCalls = append(f.streamCalls, format.ItagNo)
	if f.failItags[format.ItagNo] {
		return nil, 0, errors.New("403 forbidden")
	}
	body := fakeMP4(2048)
	return io.NopCloser(bytes.NewReader(body)), int64(len(body)), nil
}

func testFormats() yt.FormatList {
	return yt.FormatList{
		{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Height: 1080},
		{ItagNo: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, Height: 720, AudioChannels: 2},
		{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Height: 360, AudioChannels: 2},
		{ItagNo: 43, MimeType: `video/webm; codecs="vp8.0, vorbis"`, Height: 360, AudioChannels: 2},
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioChannels: 2, Bitrate: 128000},
	}
}

func newTestYouTube(client youtubeClient, maxDuration time.Duration, dir string) *YouTubeDownloader {
	return &YouTubeDownloader{client: client, tempDir: dir, maxDuration: maxDuration}
}

func TestYouTube_FirstRungWins(t *testing.T) {
	client := &fakeYouTube{video: &yt.Video{ID: "abc", Title: "Lecture 1", Duration: 10 * time.Minute, Formats: testFormats()}}
	d := newTestYouTube(client, time.Hour, t.TempDir())

	media, err := d.Fetch(context.Background(), "https://youtu.be/abc", 0, nil)
	require.NoError(t, err)
	defer media.Cleanup()

	assert.Equal(t, []int{22}, client.streamCalls)
	assert.Equal(t, "Lecture 1", media.DisplayName)
	assert.Equal(t, models.MediaVideo, media.Kind)
	assert.Equal(t, "video/mp4", media.MIMEType)
}

func TestYouTube_FallsDownTheLadder(t *testing.T) {
	client := &fakeYouTube{
		video:     &yt.Video{ID: "abc", Duration: time.Minute, Formats: testFormats()},
		failItags: map[int]bool{22: true},
	}
	d := newTestYouTube(client, time.Hour, t.TempDir())

	media, err := d.Fetch(context.Background(), "abc", 0, nil)
	require.NoError(t, err)
	defer media.Cleanup()

	// 720p fails, 480p picks 360p itag 18 since it is the tallest under 480
	assert.Equal(t, []int{22, 18}, client.streamCalls)
}

func TestYouTube_AudioOnlyFallback(t *testing.T) {
	client := &fakeYouTube{
		video:     &yt.Video{ID: "abc", Duration: time.Minute, Formats: testFormats()},
		failItags: map[int]bool{22: true, 18: true, 43: true},
	}
	d := newTestYouTube(client, time.Hour, t.TempDir())

	media, err := d.Fetch(context.Background(), "abc", 0, nil)
	require.NoError(t, err)
	defer media.Cleanup()

	assert.Equal(t, models.MediaAudio, media.Kind)
	assert.Equal(t, 140, client.streamCalls[len(client.streamCalls)-1])
}

func TestYouTube_NoViableStream(t *testing.T) {
	client := &fakeYouTube{
		video:     &yt.Video{ID: "abc", Duration: time.Minute, Formats: testFormats()},
		failItags: map[int]bool{22: true, 18: true, 43: true, 140: true},
	}
	d := newTestYouTube(client, time.Hour, t.TempDir())

	_, err := d.Fetch(context.Background(), "abc", 0, nil)
	assert.Equal(t, apperrors.KindDownloadFailed, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "no viable stream")
}

func TestYouTube_TooLongRejectedBeforeDownload(t *testing.T) {
	client := &fakeYouTube{video: &yt.Video{ID: "abc", Duration: 3 * time.Hour, Formats: testFormats()}}
	d := newTestYouTube(client, 2*time.Hour, t.TempDir())

	_, err := d.Fetch(context.Background(), "abc", 0, nil)
	assert.Equal(t, apperrors.KindTooLarge, apperrors.KindOf(err))
	assert.Empty(t, client.streamCalls, "no stream is opened")
}

func TestYouTube_DeclaredSizeFiltersFormats(t *testing.T) {
	formats := testFormats()
	formats[1].ContentLength = 900 * 1024 * 1024
	client := &fakeYouTube{video: &yt.Video{ID: "abc", Duration: time.Minute, Formats: formats}}
	d := newTestYouTube(client, time.Hour, t.TempDir())

	media, err := d.Fetch(context.Background(), "abc", 500*1024*1024, nil)
	require.NoError(t, err)
	defer media.Cleanup()

	assert.Equal(t, []int{18}, client.streamCalls)
}

func TestFirstSuccess(t *testing.T) {
	var tried []int
	got, err := firstSuccess(context.Background(), []int{1, 2, 3}, func(ctx context.Context, n int) (string, error) {
		tried = append(tried, n)
		if n < 2 {
			return "", errors.New("no")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, []int{1, 2}, tried)

	_, err = firstSuccess(context.Background(), []int{1, 2}, func(ctx context.Context, n int) (string, error) {
		return "", errors.New("step failed")
	})
	assert.ErrorContains(t, err, "step failed")
}
