package docdump

import (
	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/pkg/constants"
	"github.com/docmigrate/docmigrate/pkg/remote"
)

// Config holds all configuration options for backup operations
type Config struct {
	// Remote collection to back up
	Remote *remote.Config

	// Page size of every list call
	Limit int
	// Directory the backup file is created in
	Dir string

	// age recipients ("age1..." keys or recipient files). When set, the backup is encrypted.
	Recipients []string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Remote: remote.NewConfig(),
		Limit:  constants.DefaultLimit,
		Dir:    constants.DefaultDir,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Remote == nil {
		return docmigrate.Usagef("remote collection is not configured")
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	if c.Limit <= 0 {
		return &docmigrate.UsageError{Msg: constants.ErrBadLimit.Error()}
	}
	return nil
}

// GetDir returns the output directory, defaulting to the working directory.
func (c *Config) GetDir() string {
	if c.Dir == "" {
		return constants.DefaultDir
	}
	return c.Dir
}
