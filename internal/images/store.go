// Package images stores chat message attachments on disk.
package images

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore writes decoded image payloads into a directory and hands back
// the generated filename. Serving the files is the outer application's
// concern.
type DiskStore struct {
	dir string
}

// NewDiskStore ensures the directory exists and returns a store over it.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save decodes a base64 payload (optionally a full data URI) and writes it
// under a random collision-resistant filename.
func (s *DiskStore) Save(encoded string) (string, error) {
	// Data URIs carry a "data:image/png;base64," prefix; the payload is
	// everything after the comma.
	if i := strings.IndexByte(encoded, ','); i >= 0 {
		encoded = encoded[i+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	name := uuid.NewString() + ".png"
	if err := os.WriteFile(filepath.Join(s.dir, name), raw, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return name, nil
}
