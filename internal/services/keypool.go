package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode/utf8"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

// Prober issues a minimal inference call with the given API key.
type Prober interface {
	Probe(ctx context.Context, apiKey string) error
}

// KeyPool hands out credentials in health order and records their failures.
type KeyPool struct {
	store  *CredentialStore
	prober Prober
}

func NewKeyPool(store *CredentialStore, prober Prober) *KeyPool {
	return &KeyPool{store: store, prober: prober}
}

// ListCandidates returns non-expired credentials ordered by ascending error
// count, ties broken by insertion order. Fingerprints in exclude are skipped.
func (p *KeyPool) ListCandidates(exclude ...string) []models.Credential {
	skip := make(map[string]bool, len(exclude))
	for _, fp := range exclude {
		skip[fp] = true
	}

	all := p.store.Snapshot()
	candidates := make([]models.Credential, 0, len(all))
	for _, c := range all {
		if c.Status == models.CredentialExpired || skip[c.Fingerprint] {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ErrorCount < candidates[j].ErrorCount
	})
	return candidates
}

// Probe checks one credential with a cheap call. Failures classified as
// credential expiry mark it expired; anything else only bumps the soft counter.
func (p *KeyPool) Probe(ctx context.Context, c models.Credential) (bool, string) {
	err := p.prober.Probe(ctx, c.Value)
	if err == nil {
		p.store.MarkUsed(ctx, c.Fingerprint)
		return true, ""
	}

	detail := err.Error()
	if apperrors.IsCredentialExpiry(detail) {
		p.store.MarkExpired(ctx, c.Fingerprint, detail)
	} else {
		p.store.RecordTransientError(c.Fingerprint, detail)
	}
	return false, detail
}

// AcquireWorking probes candidates in order and returns the first that works.
// Each candidate is probed at most once per call.
func (p *KeyPool) AcquireWorking(ctx context.Context, exclude ...string) (models.Credential, error) {
	candidates := p.ListCandidates(exclude...)
	if len(candidates) == 0 {
		return models.Credential{}, apperrors.New(apperrors.KindNoUsableCredential, "no API keys available")
	}

	var failures []string
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return models.Credential{}, apperrors.Wrap(err, apperrors.KindTimeout, "key selection cancelled")
		}
		ok, detail := p.Probe(ctx, c)
		if ok {
			return c, nil
		}
		log.Printf("Credential %s failed probe: %s", MaskCredential(c.Value), truncate(detail, 80))
		failures = append(failures, fmt.Sprintf("%s: %s", MaskCredential(c.Value), truncate(detail, 50)))
	}

	return models.Credential{}, apperrors.Newf(apperrors.KindNoUsableCredential,
		"all %d API keys failed (%s)", len(candidates), strings.Join(failures, "; "))
}

// ReportFailure records an inference failure against the credential that produced it.
func (p *KeyPool) ReportFailure(ctx context.Context, fingerprint string, err error) {
	if err == nil {
		return
	}
	if apperrors.IsRotatable(err) {
		p.store.MarkExpired(ctx, fingerprint, err.Error())
		return
	}
	if apperrors.KindOf(err) == apperrors.KindProviderError {
		p.store.RecordTransientError(fingerprint, err.Error())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return cutAtRune(s, n) + "..."
}

// cutAtRune returns at most the first n bytes of s without splitting a
// multi-byte character.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
