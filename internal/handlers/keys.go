package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"transcript-tool/internal/models"
	"transcript-tool/internal/services"
)

type credentialAdmin interface {
	Views() []models.CredentialView
	Add(ctx context.Context, value string) (models.Credential, bool, error)
	Get(fingerprint string) (models.Credential, bool)
	Reset(ctx context.Context, fingerprint string) error
	Remove(ctx context.Context, fingerprint string) error
}

type credentialProber interface {
	Probe(ctx context.Context, c models.Credential) (bool, string)
}

type KeyHandler struct {
	store  credentialAdmin
	prober credentialProber
}

func NewKeyHandler(store credentialAdmin, prober credentialProber) *KeyHandler {
	return &KeyHandler{store: store, prober: prober}
}

func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	views := h.store.Views()
	if views == nil {
		views = []models.CredentialView{}
	}
	active := 0
	for _, v := range views {
		if v.Status != models.CredentialExpired {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys":   views,
		"total":  len(views),
		"usable": active,
	})
}

func (h *KeyHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req models.AddCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_ARGUMENT", "Invalid request body", r))
		return
	}
	cred, created, err := h.store.Add(r.Context(), req.Key)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, viewOf(cred))
}

func (h *KeyHandler) Reset(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	if err := h.store.Reset(r.Context(), fp); err != nil {
		handleServiceError(w, r, err)
		return
	}
	cred, _ := h.store.Get(fp)
	writeJSON(w, http.StatusOK, viewOf(cred))
}

// Probe makes one cheap call with the key and reports whether it worked.
func (h *KeyHandler) Probe(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.store.Get(chi.URLParam(r, "fingerprint"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Key not found", r))
		return
	}
	working, detail := h.prober.Probe(r.Context(), cred)
	cred, _ = h.store.Get(cred.Fingerprint)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":     viewOf(cred),
		"working": working,
		"detail":  detail,
	})
}

func (h *KeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Remove(r.Context(), chi.URLParam(r, "fingerprint")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func viewOf(c models.Credential) models.CredentialView {
	return models.CredentialView{
		Fingerprint: c.Fingerprint,
		Masked:      services.MaskCredential(c.Value),
		Status:      c.Status,
		LastUsed:    c.LastUsed,
		ErrorCount:  c.ErrorCount,
		LastError:   c.LastError,
	}
}
