package remote

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/pkg/constants"
	"github.com/docmigrate/docmigrate/pkg/query"
)

// Config identifies one remote collection and how to reach it.
type Config struct {
	// API endpoint including the version prefix (e.g., "https://cloud.appwrite.io/v1")
	Endpoint string
	APIKey   string
	Project  string

	Database   string
	Collection string

	// Deadline applied to every remote call. Zero disables it.
	Timeout time.Duration
	// Wire syntax of list queries
	QuerySyntax query.Syntax

	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Timeout:     constants.DefaultHTTPTimeout,
		QuerySyntax: query.SyntaxJSON,
	}
}

// Validate checks that every required field is present.
// Failures are reported as *docmigrate.UsageError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return &docmigrate.UsageError{Msg: constants.ErrNoEndpoint.Error()}
	}
	u, err := url.ParseRequestURI(c.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return docmigrate.Usagef("invalid endpoint %q: want an http(s) URL", c.Endpoint)
	}
	if strings.TrimSpace(c.Project) == "" {
		return &docmigrate.UsageError{Msg: constants.ErrNoProject.Error()}
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return &docmigrate.UsageError{Msg: constants.ErrNoAPIKey.Error()}
	}
	if strings.TrimSpace(c.Database) == "" {
		return &docmigrate.UsageError{Msg: constants.ErrNoDatabase.Error()}
	}
	if strings.TrimSpace(c.Collection) == "" {
		return &docmigrate.UsageError{Msg: constants.ErrNoCollection.Error()}
	}
	if c.Timeout < 0 {
		return docmigrate.Usagef("timeout must not be negative")
	}
	if _, err := query.ParseSyntax(string(c.QuerySyntax)); err != nil {
		return &docmigrate.UsageError{Msg: err.Error()}
	}
	return nil
}

// documentsURL returns the base URL of the collection's documents resource.
func (c *Config) documentsURL() string {
	return strings.TrimRight(strings.TrimSpace(c.Endpoint), "/") +
		"/databases/" + url.PathEscape(c.Database) +
		"/collections/" + url.PathEscape(c.Collection) +
		"/documents"
}
