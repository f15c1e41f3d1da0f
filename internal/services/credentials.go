package services

import (
	"context"
	"encoding/hex"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

// CredentialRepository persists credentials and their health transitions.
type CredentialRepository interface {
	Save(ctx context.Context, c *models.Credential) error
	List(ctx context.Context) ([]*models.Credential, error)
	MarkExpired(ctx context.Context, fingerprint, errMsg string) error
	MarkUsed(ctx context.Context, fingerprint string) error
	Reset(ctx context.Context, fingerprint string) error
	Delete(ctx context.Context, fingerprint string) error
}

// minCredentialLength rejects obviously truncated keys.
const minCredentialLength = 10

// Fingerprint identifies a credential without revealing it.
func Fingerprint(value string) string {
	sum := blake2b.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}

// MaskCredential keeps the first 10 and last 4 characters.
func MaskCredential(value string) string {
	if len(value) <= 14 {
		return strings.Repeat("*", len(value))
	}
	return value[:10] + "..." + value[len(value)-4:]
}

type credentialRecord struct {
	mu   sync.Mutex
	seq  int
	cred models.Credential
}

// CredentialStore is the process-wide credential table. Each record has its
// own lock so health read-modify-write cycles never interleave. Only health
// transitions are written through to the repository; the soft error counter
// for transient failures lives in memory.
type CredentialStore struct {
	mu      sync.RWMutex
	records map[string]*credentialRecord
	nextSeq int
	repo    CredentialRepository
}

// NewCredentialStore creates a store. A nil repo keeps everything in memory.
func NewCredentialStore(repo CredentialRepository) *CredentialStore {
	return &CredentialStore{
		records: make(map[string]*credentialRecord),
		repo:    repo,
	}
}

// Load pulls persisted credentials into the table, preserving their stored order and health.
func (s *CredentialStore) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	stored, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range stored {
		if _, ok := s.records[c.Fingerprint]; ok {
			continue
		}
		s.records[c.Fingerprint] = &credentialRecord{seq: s.nextSeq, cred: *c}
		s.nextSeq++
	}
	return nil
}

// Add registers a credential. Re-adding a known key returns the existing
// record untouched, so an expired key is not revived.
func (s *CredentialStore) Add(ctx context.Context, value string) (models.Credential, bool, error) {
	value = strings.TrimSpace(value)
	if len(value) <= minCredentialLength {
		return models.Credential{}, false, apperrors.New(apperrors.KindInvalidArgument, "API key is too short")
	}
	fp := Fingerprint(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[fp]; ok {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.cred, false, nil
	}

	cred := models.Credential{Fingerprint: fp, Value: value, Status: models.CredentialUnknown, CreatedAt: time.Now()}
	if s.repo != nil {
		if err := s.repo.Save(ctx, &cred); err != nil {
			return models.Credential{}, false, err
		}
	}
	s.records[fp] = &credentialRecord{seq: s.nextSeq, cred: cred}
	s.nextSeq++
	return cred, true, nil
}

// Get returns a copy of the credential with the given fingerprint.
func (s *CredentialStore) Get(fingerprint string) (models.Credential, bool) {
	rec := s.record(fingerprint)
	if rec == nil {
		return models.Credential{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.cred, true
}

// Snapshot returns copies of every credential in insertion order.
func (s *CredentialStore) Snapshot() []models.Credential {
	s.mu.RLock()
	recs := make([]*credentialRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := make([]models.Credential, len(recs))
	for i, rec := range recs {
		rec.mu.Lock()
		out[i] = rec.cred
		rec.mu.Unlock()
	}
	return out
}

// Views returns the masked listing for administration screens.
func (s *CredentialStore) Views() []models.CredentialView {
	creds := s.Snapshot()
	views := make([]models.CredentialView, len(creds))
	for i, c := range creds {
		views[i] = models.CredentialView{
			Fingerprint: c.Fingerprint,
			Masked:      MaskCredential(c.Value),
			Status:      c.Status,
			LastUsed:    c.LastUsed,
			ErrorCount:  c.ErrorCount,
			LastError:   c.LastError,
		}
	}
	return views
}

// MarkExpired moves the credential to expired. It is a no-op for unknown fingerprints.
func (s *CredentialStore) MarkExpired(ctx context.Context, fingerprint, errMsg string) {
	rec := s.record(fingerprint)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := time.Now()
	rec.cred.Status = models.CredentialExpired
	rec.cred.ErrorCount++
	rec.cred.LastError = &errMsg
	rec.cred.LastUsed = &now

	if s.repo != nil {
		if err := s.repo.MarkExpired(ctx, fingerprint, errMsg); err != nil {
			log.Printf("failed to persist expiry for credential %s: %v", fingerprint, err)
		}
	}
}

// RecordTransientError bumps the soft error counter used for ordering only.
func (s *CredentialStore) RecordTransientError(fingerprint, errMsg string) {
	rec := s.record(fingerprint)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.cred.ErrorCount++
	rec.cred.LastError = &errMsg
}

// MarkUsed stamps last-used and promotes unknown to active. Expired stays expired.
func (s *CredentialStore) MarkUsed(ctx context.Context, fingerprint string) {
	rec := s.record(fingerprint)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := time.Now()
	rec.cred.LastUsed = &now
	if rec.cred.Status == models.CredentialUnknown {
		rec.cred.Status = models.CredentialActive
	}

	if s.repo != nil {
		if err := s.repo.MarkUsed(ctx, fingerprint); err != nil {
			log.Printf("failed to persist last-used for credential %s: %v", fingerprint, err)
		}
	}
}

// Reset reactivates a credential and clears its error history.
func (s *CredentialStore) Reset(ctx context.Context, fingerprint string) error {
	rec := s.record(fingerprint)
	if rec == nil {
		return apperrors.New(apperrors.KindNotFound, "credential not found")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Reset(ctx, fingerprint); err != nil {
			return err
		}
	}
	rec.cred.Status = models.CredentialActive
	rec.cred.ErrorCount = 0
	rec.cred.LastError = nil
	return nil
}

func (s *CredentialStore) Remove(ctx context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[fingerprint]; !ok {
		return apperrors.New(apperrors.KindNotFound, "credential not found")
	}
	if s.repo != nil {
		if err := s.repo.Delete(ctx, fingerprint); err != nil {
			return err
		}
	}
	delete(s.records, fingerprint)
	return nil
}

func (s *CredentialStore) record(fingerprint string) *credentialRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[fingerprint]
}
