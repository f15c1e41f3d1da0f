package models

import "time"

type CredentialStatus string

const (
	CredentialUnknown CredentialStatus = "unknown"
	CredentialActive  CredentialStatus = "active"
	CredentialExpired CredentialStatus = "expired"
)

// Credential is one API key and its health. Value never leaves the process in JSON.
type Credential struct {
	ID          int64            `json:"-"`
	Fingerprint string           `json:"fingerprint"`
	Value       string           `json:"-"`
	Status      CredentialStatus `json:"status"`
	LastError   *string          `json:"last_error"`
	LastUsed    *time.Time       `json:"last_used"`
	ErrorCount  int              `json:"error_count"`
	CreatedAt   time.Time        `json:"created_at"`
}

// CredentialView is what the key administration surface exposes.
type CredentialView struct {
	Fingerprint string           `json:"fingerprint"`
	Masked      string           `json:"key"`
	Status      CredentialStatus `json:"status"`
	LastUsed    *time.Time       `json:"last_used"`
	ErrorCount  int              `json:"error_count"`
	LastError   *string          `json:"last_error"`
}

type AddCredentialRequest struct {
	Key string `json:"key"`
}
