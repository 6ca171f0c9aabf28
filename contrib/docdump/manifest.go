package docdump

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/pkg/constants"
)

// ErrNoManifest is returned by ReadManifest when a backup has no sidecar manifest.
var ErrNoManifest = errors.New("manifest not found")

// Manifest describes a finished backup file.
type Manifest struct {
	// File information
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Encrypted bool      `json:"encrypted,omitempty"`

	// Source collection
	Database   string `json:"database"`
	Collection string `json:"collection"`

	Records int `json:"records"`
	Pages   int `json:"pages"`

	// Checksum of the file as stored, i.e. of the ciphertext for encrypted backups
	SHA256 string `json:"sha256"`
}

// Validate validates the manifest fields for consistency and completeness
func (m *Manifest) Validate() error {
	if m.Database == "" {
		return fmt.Errorf("manifest missing database")
	}
	if m.Collection == "" {
		return fmt.Errorf("manifest missing collection")
	}
	if m.SHA256 == "" {
		return fmt.Errorf("manifest missing sha256")
	}
	if m.Records < 0 || m.Pages < 0 || m.Size < 0 {
		return fmt.Errorf("manifest has negative counters")
	}
	return nil
}

// ManifestPath returns the sidecar path of a backup file.
func ManifestPath(backupPath string) string {
	return backupPath + constants.ManifestSuffix
}

// WriteManifest writes a manifest file alongside the backup
func WriteManifest(backupPath string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(ManifestPath(backupPath), data, filePerm)
}

// ReadManifest reads the manifest of a backup.
// It returns an error wrapping ErrNoManifest if there is none.
func ReadManifest(backupPath string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(backupPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w for %s", ErrNoManifest, backupPath)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// Verify checks the size and SHA256 of the file at backupPath against the manifest.
// A mismatch is reported as *docmigrate.DecodeError.
func Verify(backupPath string, manifest *Manifest) error {
	f, err := os.Open(backupPath)
	if err != nil {
		return &docmigrate.IOError{Op: "open", Path: backupPath, Err: err}
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, f)
	if err != nil {
		return &docmigrate.IOError{Op: "read", Path: backupPath, Err: err}
	}
	if size != manifest.Size {
		return &docmigrate.DecodeError{Err: fmt.Errorf("%s is %d bytes, manifest records %d", backupPath, size, manifest.Size)}
	}
	if sum := fmt.Sprintf("%x", hash.Sum(nil)); sum != manifest.SHA256 {
		return &docmigrate.DecodeError{Err: fmt.Errorf("%s checksum %s does not match manifest %s", backupPath, sum, manifest.SHA256)}
	}
	return nil
}
