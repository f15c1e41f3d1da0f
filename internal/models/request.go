package models

import (
	"fmt"
	"sync"
	"time"
)

type RequestState string

const (
	StatePending          RequestState = "pending"
	StateResolvingSource  RequestState = "resolving_source"
	StateUploading        RequestState = "uploading_to_inference"
	StateProcessingRemote RequestState = "processing_remote"
	StateGenerating       RequestState = "generating"
	StateCompleted        RequestState = "completed"
	StateFailed           RequestState = "failed"
)

var validTransitions = map[RequestState][]RequestState{
	StatePending:          {StateResolvingSource, StateFailed},
	StateResolvingSource:  {StateUploading, StateFailed},
	StateUploading:        {StateProcessingRemote, StateUploading, StateFailed},
	StateProcessingRemote: {StateProcessingRemote, StateGenerating, StateUploading, StateFailed},
	StateGenerating:       {StateCompleted, StateUploading, StateFailed},
}

// IsTerminal reports whether no further transitions are possible.
func (s RequestState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

type StateChange struct {
	From RequestState
	To   RequestState
	At   time.Time
}

// TranscriptionRequest is one user-initiated job as it moves through the pipeline.
type TranscriptionRequest struct {
	SessionID      string
	Source         VideoSource
	SourceLanguage string
	TargetLanguage string

	mu         sync.Mutex
	state      RequestState
	history    []StateChange
	credential string
	attempts   int
	mediaPath  string
	mediaKind  MediaKind
}

func NewTranscriptionRequest(sessionID string, source VideoSource, sourceLang, targetLang string) *TranscriptionRequest {
	return &TranscriptionRequest{
		SessionID:      sessionID,
		Source:         source,
		SourceLanguage: SourceLanguage(sourceLang),
		TargetLanguage: TargetLanguage(targetLang),
		state:          StatePending,
	}
}

func (r *TranscriptionRequest) State() RequestState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Transition moves the request to the given state, rejecting moves the
// lifecycle does not allow.
func (r *TranscriptionRequest) Transition(to RequestState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !isValidTransition(r.state, to) {
		return fmt.Errorf("invalid transition from %s to %s", r.state, to)
	}
	r.history = append(r.history, StateChange{From: r.state, To: to, At: time.Now()})
	r.state = to
	return nil
}

func (r *TranscriptionRequest) History() []StateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StateChange, len(r.history))
	copy(out, r.history)
	return out
}

// BeginAttempt records the credential used for the next upload+generate cycle.
func (r *TranscriptionRequest) BeginAttempt(fingerprint string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credential = fingerprint
	r.attempts++
	return r.attempts
}

func (r *TranscriptionRequest) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *TranscriptionRequest) Credential() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.credential
}

func (r *TranscriptionRequest) SetMedia(path string, kind MediaKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mediaPath = path
	r.mediaKind = kind
}

func isValidTransition(from, to RequestState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (r *TranscriptionRequest) Media() (string, MediaKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mediaPath, r.mediaKind
}
