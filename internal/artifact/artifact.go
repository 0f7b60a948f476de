// Package artifact reads model artifacts from disk.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	ErrNotFound = errors.New("artifact: not found")
	ErrEmpty    = errors.New("artifact: empty")
)

// Artifact is a loaded model binary and its identity.
type Artifact struct {
	Path     string
	Code     []byte
	Checksum string
}

// Load reads the artifact at path. A missing file yields ErrNotFound.
func Load(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return code, nil
}

// Open loads the artifact at path together with its checksum.
func Open(path string) (*Artifact, error) {
	code, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Artifact{Path: path, Code: code, Checksum: Checksum(code)}, nil
}

// Checksum returns the hex-encoded SHA-256 digest of code.
func Checksum(code []byte) string {
	sum := sha256.Sum256(code)
	return hex.EncodeToString(sum[:])
}
