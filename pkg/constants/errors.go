package constants

import "errors"

var (
	ErrNoEndpoint   = errors.New("endpoint is required")
	ErrNoProject    = errors.New("project id is required")
	ErrNoAPIKey     = errors.New("api key is required")
	ErrNoDatabase   = errors.New("database id is required")
	ErrNoCollection = errors.New("collection id is required")
	ErrBadLimit     = errors.New("limit must be positive")
)
