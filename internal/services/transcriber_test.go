package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

type memTranscriptStore struct {
	mu      sync.Mutex
	records []*models.TranscriptRecord
}

func (m *memTranscriptStore) Create(ctx context.Context, t *models.TranscriptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	m.records = append(m.records, t)
	return nil
}

// scriptedInference fails for the keys listed in errs and succeeds otherwise.
type scriptedInference struct {
	errs      map[string]error
	text      string
	keys      []string
	mediaSeen []string
}

func (s *scriptedInference) SubmitAndWait(ctx context.Context, media *LocalMedia, sourceLang, targetLang, apiKey string, onStage func(models.RequestState)) (string, error) {
	s.keys = append(s.keys, apiKey)
	s.mediaSeen = append(s.mediaSeen, media.Path)
	onStage(models.StateUploading)
	onStage(models.StateProcessingRemote)
	onStage(models.StateProcessingRemote)
	if err := s.errs[apiKey]; err != nil {
		return "", err
	}
	onStage(models.StateGenerating)
	return s.text, nil
}

type progressRecorder struct {
	mu      sync.Mutex
	updates []ProgressUpdate
}

func (p *progressRecorder) sink(u ProgressUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
}

func (p *progressRecorder) fractions() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.updates))
	for i, u := range p.updates {
		out[i] = u.Fraction
	}
	return out
}

type transcriberFixture struct {
	dir       string
	store     *CredentialStore
	inference *scriptedInference
	records   *memTranscriptStore
	t         *Transcriber
}

func newTranscriberFixture(t *testing.T, keys []string, errs map[string]error, maxAttempts int) *transcriberFixture {
	t.Helper()
	dir := t.TempDir()
	store := seedStore(t, keys...)
	inference := &scriptedInference{errs: errs, text: "[00:00] - Welcome to the lecture.\n[00:12] - [applause]"}
	records := &memTranscriptStore{}
	resolver := NewSourceResolver(NewDownloader(nil, dir, ""), nil, dir, 100*1024*1024)
	return &transcriberFixture{
		dir:       dir,
		store:     store,
		inference: inference,
		records:   records,
		t:         NewTranscriber(resolver, NewKeyPool(store, &stubProber{}), inference, records, maxAttempts),
	}
}

func uploadRequest(size int) *models.TranscriptionRequest {
	return models.NewTranscriptionRequest("sess0001", models.VideoSource{
		Kind:      models.SourceUpload,
		Reference: "lecture.mp4",
		FileName:  "lecture.mp4",
		Content:   bytes.NewReader(fakeMP4(size)),
	}, "Auto-detect", "English")
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary media is removed")
}

func TestTranscriber_UploadEndToEnd(t *testing.T) {
	f := newTranscriberFixture(t, []string{"AIzaSyOnlyKey0000000"}, nil, 3)
	progress := &progressRecorder{}
	req := uploadRequest(10 * 1024 * 1024)

	record, err := f.t.Run(context.Background(), req, progress.sink)
	require.NoError(t, err)

	assert.Regexp(t, `\[\d{2}:\d{2}\]`, record.Text)
	assert.Equal(t, models.TranscriptCompleted, record.Status)
	assert.Equal(t, models.AutoDetect, record.SourceLanguage)
	assert.Equal(t, "English", record.TargetLanguage)
	assert.Equal(t, int64(10*1024*1024), record.FileSizeBytes)
	assert.Equal(t, "lecture.mp4", record.VideoName)
	assert.Nil(t, record.SourceURL)
	assert.Len(t, f.records.records, 1)

	assert.Equal(t, models.StateCompleted, req.State())
	assert.Equal(t, 1, req.Attempts())
	assertDirEmpty(t, f.dir)

	fractions := progress.fractions()
	require.NotEmpty(t, fractions)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
}

func TestTranscriber_RotatesOnQuota(t *testing.T) {
	keys := []string{"AIzaSyFirstKey000000", "AIzaSySecondKey00000", "AIzaSyThirdKey000000"}
	f := newTranscriberFixture(t, keys, map[string]error{
		keys[0]: apperrors.New(apperrors.KindQuota, "transcription failed"),
	}, 3)
	progress := &progressRecorder{}
	req := uploadRequest(4096)

	record, err := f.t.Run(context.Background(), req, progress.sink)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, keys[:2], f.inference.keys)
	assert.Equal(t, f.inference.mediaSeen[0], f.inference.mediaSeen[1], "the local file is reused")
	assert.Equal(t, 2, req.Attempts())
	assert.Equal(t, Fingerprint(keys[1]), req.Credential())

	first, _ := f.store.Get(Fingerprint(keys[0]))
	assert.Equal(t, models.CredentialExpired, first.Status)
	assertDirEmpty(t, f.dir)

	fractions := progress.fractions()
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
}

func TestTranscriber_RetryCeiling(t *testing.T) {
	keys := []string{"AIzaSyCeilingKey0000", "AIzaSyCeilingKey0001", "AIzaSyCeilingKey0002"}
	errs := map[string]error{}
	for _, k := range keys {
		errs[k] = apperrors.New(apperrors.KindQuota, "quota")
	}
	f := newTranscriberFixture(t, keys, errs, 2)

	_, err := f.t.Run(context.Background(), uploadRequest(1024), nil)
	assert.Equal(t, apperrors.KindQuota, apperrors.KindOf(err))
	assert.Len(t, f.inference.keys, 2)
	assert.Empty(t, f.records.records)
	assertDirEmpty(t, f.dir)
}

func TestTranscriber_NonQuotaFailureIsTerminal(t *testing.T) {
	keys := []string{"AIzaSyTerminalKey000", "AIzaSyTerminalKey001"}
	f := newTranscriberFixture(t, keys, map[string]error{
		keys[0]: apperrors.New(apperrors.KindProcessingFailed, "the provider failed to process the video"),
	}, 3)
	req := uploadRequest(1024)

	_, err := f.t.Run(context.Background(), req, nil)
	assert.Equal(t, apperrors.KindProcessingFailed, apperrors.KindOf(err))
	assert.Equal(t, []string{keys[0]}, f.inference.keys)
	assert.Equal(t, models.StateFailed, req.State())
	assertDirEmpty(t, f.dir)

	k0, _ := f.store.Get(Fingerprint(keys[0]))
	assert.NotEqual(t, models.CredentialExpired, k0.Status)
}

func TestTranscriber_NoCredentials(t *testing.T) {
	f := newTranscriberFixture(t, nil, nil, 3)

	_, err := f.t.Run(context.Background(), uploadRequest(1024), nil)
	assert.Equal(t, apperrors.KindNoUsableCredential, apperrors.KindOf(err))
	assert.Empty(t, f.inference.keys)
	assertDirEmpty(t, f.dir)
}

func TestTranscriber_NonMediaURLCreatesNoRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f := newTranscriberFixture(t, []string{"AIzaSyUnusedKey00000"}, nil, 3)
	req := models.NewTranscriptionRequest("sess0001", models.VideoSource{
		Kind:      models.SourceDirectURL,
		Reference: srv.URL + "/clip.mp4",
	}, "English", "English")

	_, err := f.t.Run(context.Background(), req, nil)
	assert.Equal(t, apperrors.KindDownloadFailed, apperrors.KindOf(err))
	assert.Empty(t, f.records.records)
	assert.Empty(t, f.inference.keys)
	assertDirEmpty(t, f.dir)
}

func TestTranscriber_PanickingSinkDoesNotAbort(t *testing.T) {
	f := newTranscriberFixture(t, []string{"AIzaSyPanicKey000000"}, nil, 3)

	record, err := f.t.Run(context.Background(), uploadRequest(1024), func(ProgressUpdate) {
		panic(errors.New("ui went away"))
	})
	require.NoError(t, err)
	assert.NotNil(t, record)
}

func TestTranscriber_StuckSinkDoesNotDelayRun(t *testing.T) {
	f := newTranscriberFixture(t, []string{"AIzaSyStuckKey000000"}, nil, 3)
	stuck := make(chan struct{})
	defer close(stuck)

	type result struct {
		record *models.TranscriptRecord
		err    error
	}
	done := make(chan result, 1)
	go func() {
		record, err := f.t.Run(context.Background(), uploadRequest(1024), func(ProgressUpdate) { <-stuck })
		done <- result{record, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.NotNil(t, r.record)
	case <-time.After(3 * time.Second):
		t.Fatal("Run waited on a stuck progress sink")
	}
	f.records.mu.Lock()
	assert.Len(t, f.records.records, 1)
	f.records.mu.Unlock()
}
