package docwipe

import (
	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/pkg/constants"
	"github.com/docmigrate/docmigrate/pkg/remote"
)

// Config holds all configuration options for wipe operations
type Config struct {
	// Collection to empty
	Remote *remote.Config
	// Page size of every list call
	Limit int
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Remote: remote.NewConfig(),
		Limit:  constants.DefaultLimit,
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
