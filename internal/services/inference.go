package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

const probePrompt = "Test. Reply only with 'OK'."

type InferenceConfig struct {
	Model              string
	ProbeModel         string
	Temperature        float32
	MaxOutputTokens    int32
	GenerationTimeout  time.Duration
	PollInterval       time.Duration
	PollMaxWait        time.Duration
	ConcurrentRequests int
}

// InferenceClient runs upload, poll, generate and delete against the provider.
type InferenceClient struct {
	cfg        InferenceConfig
	newBackend BackendFactory
	rateChan   chan struct{} // Token bucket
	newTimer   func() backoff.Timer
}

func NewInferenceClient(cfg InferenceConfig, factory BackendFactory) *InferenceClient {
	if cfg.ConcurrentRequests <= 0 {
		cfg.ConcurrentRequests = 1
	}
	rateChan := make(chan struct{}, cfg.ConcurrentRequests)
	for i := 0; i < cfg.ConcurrentRequests; i++ {
		rateChan <- struct{}{}
	}
	return &InferenceClient{
		cfg:        cfg,
		newBackend: factory,
		rateChan:   rateChan,
		newTimer:   func() backoff.Timer { return nil },
	}
}

// acquireRate blocks until a rate slot is available
func (c *InferenceClient) acquireRate(ctx context.Context) error {
	select {
	case <-c.rateChan:
		return nil
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.KindTimeout, "timed out waiting for an inference slot")
	}
}

func (c *InferenceClient) releaseRate() {
	c.rateChan <- struct{}{}
}

// SubmitAndWait uploads media, waits for the provider to finish preprocessing
// and returns the generated transcript. The remote file is always deleted.
func (c *InferenceClient) SubmitAndWait(ctx context.Context, media *LocalMedia, sourceLang, targetLang, apiKey string, onStage func(models.RequestState)) (string, error) {
	if onStage == nil {
		onStage = func(models.RequestState) {}
	}
	if err := c.acquireRate(ctx); err != nil {
		return "", err
	}
	defer c.releaseRate()

	backend, err := c.newBackend(ctx, apiKey)
	if err != nil {
		return "", providerError(err, "failed to connect to the transcription service")
	}
	defer backend.Close()

	onStage(models.StateUploading)
	file, err := backend.UploadFile(ctx, media.Path, media.MIMEType, media.DisplayName)
	if err != nil {
		return "", providerError(err, "failed to upload the video")
	}
	defer func() {
		if err := backend.DeleteFile(context.Background(), file.Name); err != nil {
			log.Printf("failed to delete remote file %s: %v", file.Name, err)
		}
	}()

	onStage(models.StateProcessingRemote)
	err = Poll(ctx, PollConfig{
		Interval: c.cfg.PollInterval,
		MaxWait:  c.cfg.PollMaxWait,
		Timer:    c.newTimer(),
	}, func(ctx context.Context) (bool, error) {
		current, err := backend.GetFile(ctx, file.Name)
		if err != nil {
			return false, err
		}
		switch current.State {
		case RemoteReady:
			file = current
			return true, nil
		case RemoteFailed:
			return false, apperrors.New(apperrors.KindProcessingFailed, "the provider failed to process the video")
		}
		onStage(models.StateProcessingRemote)
		return false, nil
	})
	if errors.Is(err, ErrPollTimeout) {
		return "", apperrors.Wrap(err, apperrors.KindTimeout, "video processing did not finish in time")
	}
	if err != nil {
		return "", providerError(err, "failed to check video processing")
	}

	onStage(models.StateGenerating)
	genCtx := ctx
	if c.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, c.cfg.GenerationTimeout)
		defer cancel()
	}
	text, err := backend.Generate(genCtx, file, buildTranscriptionPrompt(sourceLang, targetLang), GenerationConfig{
		Model:           c.cfg.Model,
		Temperature:     c.cfg.Temperature,
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	})
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return "", apperrors.Wrap(err, apperrors.KindTimeout, "transcription did not finish in time")
		}
		return "", providerError(err, "transcription failed")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.New(apperrors.KindProviderError, "the provider returned an empty transcript")
	}
	return text, nil
}

// Probe issues the cheapest possible generation call with apiKey.
func (c *InferenceClient) Probe(ctx context.Context, apiKey string) error {
	backend, err := c.newBackend(ctx, apiKey)
	if err != nil {
		return err
	}
	defer backend.Close()

	_, err = backend.GenerateText(ctx, nil, probePrompt, GenerationConfig{
		Model:           c.cfg.ProbeModel,
		Temperature:     0,
		MaxOutputTokens: 10,
	})
	return err
}

// Chat answers prompt given the prior conversation.
func (c *InferenceClient) Chat(ctx context.Context, apiKey string, history []*models.Message, prompt string) (string, error) {
	if err := c.acquireRate(ctx); err != nil {
		return "", err
	}
	defer c.releaseRate()

	backend, err := c.newBackend(ctx, apiKey)
	if err != nil {
		return "", providerError(err, "failed to connect to the chat service")
	}
	defer backend.Close()

	reply, err := backend.GenerateText(ctx, history, prompt, GenerationConfig{
		Model:           c.cfg.Model,
		Temperature:     0.7,
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", providerError(err, "chat failed")
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", apperrors.New(apperrors.KindProviderError, "the provider returned an empty reply")
	}
	return reply, nil
}

// providerError maps a raw provider failure onto the error taxonomy.
// Errors that already carry a kind pass through.
func providerError(err error, op string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.KindTimeout, op)
	}
	return apperrors.Wrap(err, apperrors.ClassifyProvider(err.Error()), op)
}

func buildTranscriptionPrompt(sourceLang, targetLang string) string {
	var b strings.Builder
	b.WriteString("Analyze this video and transcribe all of its spoken content.\n\n")
	b.WriteString("INSTRUCTIONS:\n")
	if sourceLang == models.AutoDetect || sourceLang == "" {
		b.WriteString("1. Source language: detect the spoken language automatically\n")
	} else {
		fmt.Fprintf(&b, "1. Source language: %s\n", sourceLang)
	}
	fmt.Fprintf(&b, "2. Target language: %s\n", targetLang)
	b.WriteString("3. Transcribe EVERYTHING that is said, do not summarize or skip passages\n")
	b.WriteString("4. Prefix each passage with a timestamp in [MM:SS] format\n")
	b.WriteString("5. Note long pauses and relevant non-speech sounds in [brackets]\n")
	if sourceLang != models.AutoDetect && sourceLang != "" && sourceLang != targetLang {
		fmt.Fprintf(&b, "6. The speech is in %s, TRANSLATE it into %s\n", sourceLang, targetLang)
	} else {
		b.WriteString("6. Keep the words as spoken, do not translate\n")
	}
	b.WriteString("\nFORMAT:\n")
	b.WriteString("[00:00] - Speaker/Context: transcribed text...\n")
	b.WriteString("[00:30] - [pause]\n")
	b.WriteString("[00:35] - Continued text...\n\n")
	b.WriteString("Begin the transcription:\n")
	return b.String()
}
