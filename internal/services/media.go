package services

import (
	"log"
	"os"
	"sync"

	"transcript-tool/internal/models"
)

// LocalMedia is a resolved file on local disk, owned by the transcription
// attempt that created it.
type LocalMedia struct {
	Path        string
	Size        int64
	Kind        models.MediaKind
	DisplayName string
	MIMEType    string

	cleanup sync.Once
}

// Cleanup removes the file. It is safe to call more than once and never fails.
func (m *LocalMedia) Cleanup() {
	if m == nil || m.Path == "" {
		return
	}
	m.cleanup.Do(func() {
		if err := os.Remove(m.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove temporary media %s: %v", m.Path, err)
		}
	})
}
