package services

import (
	"context"
	"fmt"
	"strings"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

const maxTranscriptContext = 30000

type MessageStore interface {
	Create(ctx context.Context, sessionID, role, content string) (*models.Message, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.Message, error)
}

type LatestTranscript interface {
	Latest(ctx context.Context, sessionID string) (*models.TranscriptRecord, error)
}

// Chatter answers a prompt with one API key.
type Chatter interface {
	Chat(ctx context.Context, apiKey string, history []*models.Message, prompt string) (string, error)
}

// ChatService answers questions about a session's latest transcript.
type ChatService struct {
	pool        *KeyPool
	chatter     Chatter
	messages    MessageStore
	transcripts LatestTranscript
	maxAttempts int
}

func NewChatService(pool *KeyPool, chatter Chatter, messages MessageStore, transcripts LatestTranscript, maxAttempts int) *ChatService {
	return &ChatService{
		pool:        pool,
		chatter:     chatter,
		messages:    messages,
		transcripts: transcripts,
		maxAttempts: maxAttempts,
	}
}

// Reply stores the user's message, asks the model and stores the answer.
func (s *ChatService) Reply(ctx context.Context, sessionID, message string) (*models.Message, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "message is required")
	}

	history, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	transcript, err := s.transcripts.Latest(ctx, sessionID)
	if err != nil && !apperrors.Is(err, apperrors.KindNotFound) {
		return nil, err
	}
	history = append(transcriptContext(transcript), history...)

	if _, err := s.messages.Create(ctx, sessionID, models.RoleUser, message); err != nil {
		return nil, err
	}

	reply, err := s.ask(ctx, history, message)
	if err != nil {
		return nil, err
	}
	return s.messages.Create(ctx, sessionID, models.RoleAssistant, reply)
}

func (s *ChatService) ask(ctx context.Context, history []*models.Message, prompt string) (string, error) {
	attempts := s.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var tried []string
	for attempt := 1; ; attempt++ {
		cred, err := s.pool.AcquireWorking(ctx, tried...)
		if err != nil {
			return "", err
		}
		tried = append(tried, cred.Fingerprint)

		reply, err := s.chatter.Chat(ctx, cred.Value, history, prompt)
		if err == nil {
			s.pool.store.MarkUsed(ctx, cred.Fingerprint)
			return reply, nil
		}
		s.pool.ReportFailure(ctx, cred.Fingerprint, err)
		if !apperrors.IsRotatable(err) || attempt >= attempts {
			return "", err
		}
	}
}

// transcriptContext primes the conversation with the transcript as an
// opening exchange. It is empty when the session has no transcript.
func transcriptContext(transcript *models.TranscriptRecord) []*models.Message {
	if transcript == nil || transcript.Text == "" {
		return nil
	}
	text := cutAtRune(transcript.Text, maxTranscriptContext)
	primer := fmt.Sprintf(`You are helping a user with a video transcript. Answer using the transcript below. If the answer is not in it, say so.

Video: %s

Transcript:
%s`, transcript.VideoName, text)

	return []*models.Message{
		{SessionID: transcript.SessionID, Role: models.RoleUser, Content: primer},
		{SessionID: transcript.SessionID, Role: models.RoleAssistant, Content: "Understood. Ask me anything about this transcript."},
	}
}
