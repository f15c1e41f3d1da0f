package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"transcript-tool/internal/config"
	"transcript-tool/internal/repository"
	"transcript-tool/internal/services"
)

// Core is the transcription stack shared by the server and the CLI.
type Core struct {
	Sessions    *repository.SessionRepo
	Transcripts *repository.TranscriptRepo
	Messages    *repository.MessageRepo
	Jobs        *repository.JobRepo
	Credentials *services.CredentialStore
	KeyPool     *services.KeyPool
	Inference   *services.InferenceClient
	Resolver    *services.SourceResolver
	Transcriber *services.Transcriber
	Chat        *services.ChatService
}

// NewCore wires repositories and services over pool and loads the credential
// store, adding any keys named in the configuration.
func NewCore(ctx context.Context, cfg *config.Config, pool repository.Pool, factory services.BackendFactory) (*Core, error) {
	c := &Core{
		Sessions:    repository.NewSessionRepo(pool),
		Transcripts: repository.NewTranscriptRepo(pool),
		Messages:    repository.NewMessageRepo(pool),
		Jobs:        repository.NewJobRepo(pool),
	}

	c.Credentials = services.NewCredentialStore(repository.NewCredentialRepo(pool))
	if err := c.Credentials.Load(ctx); err != nil {
		return nil, err
	}
	for _, key := range cfg.GeminiAPIKeys {
		if _, created, err := c.Credentials.Add(ctx, key); err != nil {
			log.Printf("skipping configured API key %s: %v", services.MaskCredential(key), err)
		} else if created {
			log.Printf("registered API key %s", services.MaskCredential(key))
		}
	}

	c.Inference = services.NewInferenceClient(services.InferenceConfig{
		Model:              cfg.GeminiModel,
		ProbeModel:         cfg.GeminiProbeModel,
		Temperature:        cfg.GeminiTemperature,
		MaxOutputTokens:    int32(cfg.GeminiMaxOutputTokens),
		GenerationTimeout:  time.Duration(cfg.GenerationTimeoutSecs) * time.Second,
		PollInterval:       time.Duration(cfg.ProcessingPollSecs) * time.Second,
		PollMaxWait:        time.Duration(cfg.ProcessingMaxWaitSecs) * time.Second,
		ConcurrentRequests: cfg.GeminiConcurrentReqs,
	}, factory)
	c.KeyPool = services.NewKeyPool(c.Credentials, c.Inference)

	tempDir := filepath.Join(cfg.StoragePath, "tmp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, err
	}
	downloader := services.NewDownloader(&http.Client{Timeout: 30 * time.Minute}, tempDir, cfg.DriveBaseURL)
	youtube := services.NewYouTubeDownloader(tempDir, time.Duration(cfg.MaxVideoMinutes)*time.Minute)
	c.Resolver = services.NewSourceResolver(downloader, youtube, tempDir, int64(cfg.MaxInferenceMB)*1024*1024)

	c.Transcriber = services.NewTranscriber(c.Resolver, c.KeyPool, c.Inference, c.Transcripts, cfg.MaxKeyAttempts)
	c.Chat = services.NewChatService(c.KeyPool, c.Inference, c.Messages, c.Transcripts, cfg.MaxKeyAttempts)
	return c, nil
}
