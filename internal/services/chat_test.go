package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

type memMessageStore struct {
	messages []*models.Message
}

func (m *memMessageStore) Create(ctx context.Context, sessionID, role, content string) (*models.Message, error) {
	msg := &models.Message{ID: int64(len(m.messages) + 1), SessionID: sessionID, Role: role, Content: content}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memMessageStore) ListBySession(ctx context.Context, sessionID string) ([]*models.Message, error) {
	var out []*models.Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type fixedTranscript struct {
	record *models.TranscriptRecord
}

func (f fixedTranscript) Latest(ctx context.Context, sessionID string) (*models.TranscriptRecord, error) {
	if f.record == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "session has no transcript yet")
	}
	return f.record, nil
}

type scriptedChatter struct {
	errs    map[string]error
	keys    []string
	history [][]*models.Message
	prompts []string
}

func (s *scriptedChatter) Chat(ctx context.Context, apiKey string, history []*models.Message, prompt string) (string, error) {
	s.keys = append(s.keys, apiKey)
	s.history = append(s.history, history)
	s.prompts = append(s.prompts, prompt)
	if err := s.errs[apiKey]; err != nil {
		return "", err
	}
	return "It is about databases.", nil
}

func TestChatService_ReplyWithTranscriptContext(t *testing.T) {
	store := seedStore(t, "AIzaSyChatKey0000000")
	messages := &memMessageStore{}
	chatter := &scriptedChatter{}
	transcript := &models.TranscriptRecord{SessionID: "s1", VideoName: "db.mp4", Text: "[00:00] - Today: indexes."}
	svc := NewChatService(NewKeyPool(store, &stubProber{}), chatter, messages, fixedTranscript{transcript}, 3)

	reply, err := svc.Reply(context.Background(), "s1", "  What is this about? ")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAssistant, reply.Role)
	assert.Equal(t, "It is about databases.", reply.Content)

	require.Len(t, messages.messages, 2)
	assert.Equal(t, "What is this about?", messages.messages[0].Content)

	require.Len(t, chatter.history[0], 2)
	assert.Contains(t, chatter.history[0][0].Content, "[00:00] - Today: indexes.")
	assert.Equal(t, "What is this about?", chatter.prompts[0])

	_, err = svc.Reply(context.Background(), "s1", "And then?")
	require.NoError(t, err)
	assert.Len(t, chatter.history[1], 4, "primer plus the previous exchange")
}

func TestChatService_NoTranscript(t *testing.T) {
	chatter := &scriptedChatter{}
	svc := NewChatService(NewKeyPool(seedStore(t, "AIzaSyChatKey0000000"), &stubProber{}), chatter, &memMessageStore{}, fixedTranscript{}, 3)

	_, err := svc.Reply(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Empty(t, chatter.history[0])
}

func TestChatService_RotatesOnQuota(t *testing.T) {
	keys := []string{"AIzaSyChatQuota00000", "AIzaSyChatGood000000"}
	store := seedStore(t, keys...)
	chatter := &scriptedChatter{errs: map[string]error{
		keys[0]: apperrors.Wrap(errors.New("429 quota"), apperrors.KindQuota, "chat failed"),
	}}
	svc := NewChatService(NewKeyPool(store, &stubProber{}), chatter, &memMessageStore{}, fixedTranscript{}, 3)

	_, err := svc.Reply(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, keys, chatter.keys)

	first, _ := store.Get(Fingerprint(keys[0]))
	assert.Equal(t, models.CredentialExpired, first.Status)
}

func TestChatService_EmptyMessage(t *testing.T) {
	svc := NewChatService(NewKeyPool(NewCredentialStore(nil), &stubProber{}), &scriptedChatter{}, &memMessageStore{}, fixedTranscript{}, 3)
	_, err := svc.Reply(context.Background(), "s1", "   ")
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}

func TestTranscriptContext_LongMultibyteTranscript(t *testing.T) {
	record := &models.TranscriptRecord{
		SessionID: "s1",
		VideoName: "lecture.mp4",
		Text:      "a" + strings.Repeat("中", 20000),
	}

	msgs := transcriptContext(record)
	require.NotEmpty(t, msgs)
	primer := msgs[0].Content
	assert.True(t, utf8.ValidString(primer))
	assert.Contains(t, primer, "a中中")
	assert.Less(t, len(primer), len(record.Text))
}
