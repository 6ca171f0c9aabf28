package docrestore

import (
	"strings"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/pkg/constants"
	"github.com/docmigrate/docmigrate/pkg/remote"
)

// Config holds all configuration options for restore operations
type Config struct {
	// Target collection
	Remote *remote.Config

	// Backup file to restore
	Input string
	// age identity file, required for ".age" inputs
	IdentityFile string
	// Skip the manifest checksum check
	SkipVerify bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Remote: remote.NewConfig(),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return docmigrate.Usagef("input file is required for restore")
	}
	if c.Remote == nil {
		return docmigrate.Usagef("remote collection is not configured")
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	if c.Encrypted() && c.IdentityFile == "" {
		return docmigrate.Usagef("%s is encrypted: an age identity file is required", c.Input)
	}
	return nil
}

// Encrypted reports whether the input is an age encrypted backup.
func (c *Config) Encrypted() bool {
	return strings.HasSuffix(c.Input, constants.EncryptedSuffix)
}
