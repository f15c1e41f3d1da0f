package services

import (
	"context"
	"log"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

const transcriptionMethod = "gemini-file-api"

// MediaResolver turns a source reference into a local file.
type MediaResolver interface {
	Resolve(ctx context.Context, src models.VideoSource, progress ByteProgress) (*LocalMedia, error)
}

// Inference submits local media with one API key.
type Inference interface {
	SubmitAndWait(ctx context.Context, media *LocalMedia, sourceLang, targetLang, apiKey string, onStage func(models.RequestState)) (string, error)
}

type TranscriptStore interface {
	Create(ctx context.Context, t *models.TranscriptRecord) error
}

// stageProgress is the fraction reported when the request enters each state.
var stageProgress = map[models.RequestState]float64{
	models.StateResolvingSource:  0.05,
	models.StateUploading:        0.45,
	models.StateProcessingRemote: 0.60,
	models.StateGenerating:       0.75,
	models.StateCompleted:        1.0,
}

var stageMessages = map[models.RequestState]string{
	models.StateResolvingSource:  "Preparing the video...",
	models.StateUploading:        "Uploading to the transcription service...",
	models.StateProcessingRemote: "Processing the video...",
	models.StateGenerating:       "Transcribing...",
	models.StateCompleted:        "Transcription complete",
}

// Transcriber drives one TranscriptionRequest from source to stored transcript.
type Transcriber struct {
	resolver    MediaResolver
	pool        *KeyPool
	inference   Inference
	transcripts TranscriptStore
	maxAttempts int
}

func NewTranscriber(resolver MediaResolver, pool *KeyPool, inference Inference, transcripts TranscriptStore, maxAttempts int) *Transcriber {
	return &Transcriber{
		resolver:    resolver,
		pool:        pool,
		inference:   inference,
		transcripts: transcripts,
		maxAttempts: maxAttempts,
	}
}

// Run executes req. On a quota or rejected-key failure the upload and
// generation are repeated with the next untried key, re-uploading the same
// local file. Every other failure ends the request. The local file is removed
// on every exit path.
func (t *Transcriber) Run(ctx context.Context, req *models.TranscriptionRequest, sink ProgressSink) (_ *models.TranscriptRecord, err error) {
	progress := newProgressReporter(sink, 16)
	defer progress.Close()

	defer func() {
		if err != nil {
			if tErr := req.Transition(models.StateFailed); tErr != nil {
				log.Printf("session %s: %v", req.SessionID, tErr)
			}
			progress.Report(progress.Last(), string(models.StateFailed), apperrors.UserMessage(err))
		}
	}()

	t.enter(req, progress, models.StateResolvingSource)
	media, err := t.resolver.Resolve(ctx, req.Source, func(written, total int64) {
		if total > 0 {
			progress.Report(0.05+0.30*float64(written)/float64(total), string(models.StateResolvingSource), "Downloading...")
		}
	})
	if err != nil {
		return nil, err
	}
	defer media.Cleanup()
	req.SetMedia(media.Path, media.Kind)

	progress.Report(0.35, "selecting_credential", "Selecting an API key...")
	attempts := t.maxAttempts
	if n := len(t.pool.ListCandidates()); n < attempts {
		attempts = n
	}
	if attempts < 1 {
		attempts = 1
	}

	var (
		tried []string
		text  string
	)
	for {
		cred, acqErr := t.pool.AcquireWorking(ctx, tried...)
		if acqErr != nil {
			return nil, acqErr
		}
		attempt := req.BeginAttempt(cred.Fingerprint)
		tried = append(tried, cred.Fingerprint)

		text, err = t.inference.SubmitAndWait(ctx, media, req.SourceLanguage, req.TargetLanguage, cred.Value,
			func(s models.RequestState) { t.enter(req, progress, s) })
		if err == nil {
			break
		}

		t.pool.ReportFailure(ctx, cred.Fingerprint, err)
		if !apperrors.IsRotatable(err) || attempt >= attempts {
			return nil, err
		}
		log.Printf("session %s: attempt %d failed (%s), retrying with another key", req.SessionID, attempt, apperrors.KindOf(err))
	}

	record := &models.TranscriptRecord{
		SessionID:      req.SessionID,
		VideoName:      media.DisplayName,
		SourceKind:     req.Source.Kind,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		FileSizeBytes:  media.Size,
		MediaKind:      media.Kind,
		Method:         transcriptionMethod,
		Text:           text,
		Status:         models.TranscriptCompleted,
	}
	if req.Source.Kind != models.SourceUpload {
		ref := req.Source.Reference
		record.SourceURL = &ref
	}
	if err := t.transcripts.Create(ctx, record); err != nil {
		return nil, err
	}

	t.enter(req, progress, models.StateCompleted)
	return record, nil
}

func (t *Transcriber) enter(req *models.TranscriptionRequest, progress *progressReporter, state models.RequestState) {
	if err := req.Transition(state); err != nil {
		log.Printf("session %s: %v", req.SessionID, err)
	}
	progress.Report(stageProgress[state], string(state), stageMessages[state])
}
