package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type stubSessions struct {
	mu      sync.Mutex
	known   map[string]bool
	deleted []string
}

func newStubSessions(ids ...string) *stubSessions {
	s := &stubSessions{known: map[string]bool{}}
	for _, id := range ids {
		s.known[id] = true
	}
	return s
}

func (s *stubSessions) Create(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[id] = true
	return nil
}

func (s *stubSessions) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.known[id], nil
}

func (s *stubSessions) GetByID(ctx context.Context, id string) (*models.Session, error) {
	ok, _ := s.Exists(ctx, id)
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "session not found")
	}
	return &models.Session{ID: id}, nil
}

func (s *stubSessions) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.known, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubJobs struct {
	created []*models.Job
	byID    map[uuid.UUID]*models.Job
}

func (s *stubJobs) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = models.JobPending
	s.created = append(s.created, j)
	if s.byID == nil {
		s.byID = map[uuid.UUID]*models.Job{}
	}
	s.byID[j.ID] = j
	return nil
}

func (s *stubJobs) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if j, ok := s.byID[id]; ok {
		return j, nil
	}
	return nil, apperrors.New(apperrors.KindNotFound, "job not found")
}

type stubQueue struct {
	err      error
	enqueued []*models.Job
}

func (q *stubQueue) Enqueue(ctx context.Context, job *models.Job) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

type stubTranscripts struct {
	records []*models.TranscriptRecord
}

func (s *stubTranscripts) GetByID(ctx context.Context, id uuid.UUID) (*models.TranscriptRecord, error) {
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, apperrors.New(apperrors.KindNotFound, "transcript not found")
}

func (s *stubTranscripts) ListBySession(ctx context.Context, sessionID string) ([]*models.TranscriptRecord, error) {
	var out []*models.TranscriptRecord
	for _, r := range s.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type stubMessages struct {
	msgs    []*models.Message
	cleared bool
}

func (s *stubMessages) ListBySession(ctx context.Context, sessionID string) ([]*models.Message, error) {
	return s.msgs, nil
}

func (s *stubMessages) DeleteBySession(ctx context.Context, sessionID string) error {
	s.cleared = true
	s.msgs = nil
	return nil
}

type stubReplier struct {
	reply string
	err   error
	asked []string
}

func (s *stubReplier) Reply(ctx context.Context, sessionID, message string) (*models.Message, error) {
	s.asked = append(s.asked, message)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Message{SessionID: sessionID, Role: models.RoleAssistant, Content: s.reply}, nil
}

type stubCredentials struct {
	creds map[string]models.Credential
}

func (s *stubCredentials) Views() []models.CredentialView {
	var out []models.CredentialView
	for _, c := range s.creds {
		out = append(out, viewOf(c))
	}
	return out
}

func (s *stubCredentials) Add(ctx context.Context, value string) (models.Credential, bool, error) {
	if len(value) <= 10 {
		return models.Credential{}, false, apperrors.New(apperrors.KindInvalidArgument, "API key is too short")
	}
	fp := "fp-" + value[len(value)-4:]
	if c, ok := s.creds[fp]; ok {
		return c, false, nil
	}
	c := models.Credential{Fingerprint: fp, Value: value, Status: models.CredentialUnknown}
	s.creds[fp] = c
	return c, true, nil
}

func (s *stubCredentials) Get(fp string) (models.Credential, bool) {
	c, ok := s.creds[fp]
	return c, ok
}

func (s *stubCredentials) Reset(ctx context.Context, fp string) error {
	c, ok := s.creds[fp]
	if !ok {
		return apperrors.New(apperrors.KindNotFound, "credential not found")
	}
	c.Status = models.CredentialActive
	c.ErrorCount = 0
	s.creds[fp] = c
	return nil
}

func (s *stubCredentials) Remove(ctx context.Context, fp string) error {
	if _, ok := s.creds[fp]; !ok {
		return apperrors.New(apperrors.KindNotFound, "credential not found")
	}
	delete(s.creds, fp)
	return nil
}

type stubProber struct {
	ok     bool
	detail string
}

func (p stubProber) Probe(ctx context.Context, c models.Credential) (bool, string) {
	return p.ok, p.detail
}
