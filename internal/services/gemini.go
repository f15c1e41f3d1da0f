package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"transcript-tool/internal/models"
)

// RemoteFileState is the provider-side preprocessing state of an uploaded file.
type RemoteFileState int

const (
	RemoteProcessing RemoteFileState = iota
	RemoteReady
	RemoteFailed
)

// RemoteFile is an opaque handle to a file the provider has ingested.
type RemoteFile struct {
	Name     string
	URI      string
	MIMEType string
	State    RemoteFileState
}

type GenerationConfig struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// InferenceBackend is the provider surface, bound to one API key.
type InferenceBackend interface {
	UploadFile(ctx context.Context, path, mimeType, displayName string) (*RemoteFile, error)
	GetFile(ctx context.Context, name string) (*RemoteFile, error)
	Generate(ctx context.Context, file *RemoteFile, prompt string, cfg GenerationConfig) (string, error)
	GenerateText(ctx context.Context, history []*models.Message, prompt string, cfg GenerationConfig) (string, error)
	DeleteFile(ctx context.Context, name string) error
	Close() error
}

// BackendFactory opens a backend for the given API key.
type BackendFactory func(ctx context.Context, apiKey string) (InferenceBackend, error)

type geminiBackend struct {
	client *genai.Client
}

// NewGeminiBackend is the BackendFactory for the Gemini File API.
func NewGeminiBackend(ctx context.Context, apiKey string) (InferenceBackend, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiBackend{client: client}, nil
}

func (b *geminiBackend) Close() error {
	return b.client.Close()
}

func (b *geminiBackend) UploadFile(ctx context.Context, path, mimeType, displayName string) (*RemoteFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := b.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		DisplayName: displayName,
		MIMEType:    mimeType,
	})
	if err != nil {
		return nil, err
	}
	return toRemoteFile(file), nil
}

func (b *geminiBackend) GetFile(ctx context.Context, name string) (*RemoteFile, error) {
	file, err := b.client.GetFile(ctx, name)
	if err != nil {
		return nil, err
	}
	return toRemoteFile(file), nil
}

func (b *geminiBackend) DeleteFile(ctx context.Context, name string) error {
	return b.client.DeleteFile(ctx, name)
}

func (b *geminiBackend) Generate(ctx context.Context, file *RemoteFile, prompt string, cfg GenerationConfig) (string, error) {
	model := b.model(cfg)
	resp, err := model.GenerateContent(ctx,
		genai.FileData{MIMEType: file.MIMEType, URI: file.URI},
		genai.Text(prompt),
	)
	if err != nil {
		return "", err
	}
	logFinishReasons(resp)
	return extractText(resp), nil
}

func (b *geminiBackend) GenerateText(ctx context.Context, history []*models.Message, prompt string, cfg GenerationConfig) (string, error) {
	model := b.model(cfg)
	if len(history) == 0 {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}
		return extractText(resp), nil
	}

	cs := model.StartChat()
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	logFinishReasons(resp)
	return extractText(resp), nil
}

func (b *geminiBackend) model(cfg GenerationConfig) *genai.GenerativeModel {
	model := b.client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	return model
}

func toRemoteFile(f *genai.File) *RemoteFile {
	state := RemoteProcessing
	switch f.State {
	case genai.FileStateActive:
		state = RemoteReady
	case genai.FileStateFailed:
		state = RemoteFailed
	}
	return &RemoteFile{Name: f.Name, URI: f.URI, MIMEType: f.MIMEType, State: state}
}

func logFinishReasons(resp *genai.GenerateContentResponse) {
	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
