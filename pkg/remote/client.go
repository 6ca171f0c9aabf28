// Package remote is the client for one collection of the remote documents API.
//
// The client exposes the three calls the migration pipelines need (list, create, delete).
// It keeps no cache and never retries: a failed call is returned to the caller as a *docmigrate.RemoteError.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/pkg/constants"
	"github.com/docmigrate/docmigrate/pkg/models"
	"github.com/docmigrate/docmigrate/pkg/query"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 8 << 10

// Client talks to a single collection.
type Client struct {
	conf       Config
	base       string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a client for the collection described by conf.
// The configuration is validated first.
func New(conf *Config, log zerolog.Logger) (*Client, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	httpClient := conf.HTTPClient
	if httpClient == nil {
		// Deadlines come from the per-call context.
		httpClient = &http.Client{}
	}
	return &Client{
		conf:       *conf,
		base:       conf.documentsURL(),
		httpClient: httpClient,
		log: log.With().
			Str("database", conf.Database).
			Str("collection", conf.Collection).
			Logger(),
	}, nil
}

type listResponse struct {
	Total     int             `json:"total"`
	Documents []models.Record `json:"documents"`
}

type createRequest struct {
	DocumentID  string         `json:"documentId"`
	Data        map[string]any `json:"data"`
	Permissions []string       `json:"permissions"`
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

// List returns one page of documents, in server order, filtered by queries.
func (c *Client) List(ctx context.Context, queries ...query.Query) ([]models.Record, error) {
	params := url.Values{}
	for _, q := range queries {
		s, err := q.Build(c.conf.QuerySyntax)
		if err != nil {
			return nil, &docmigrate.RemoteError{Op: "list", Kind: docmigrate.KindUnexpected, Err: err}
		}
		params.Add("queries[]", s)
	}

	var out listResponse
	if err := c.do(ctx, "list", "", http.MethodGet, c.base, params, nil, &out); err != nil {
		return nil, err
	}
	if out.Documents == nil {
		out.Documents = []models.Record{}
	}
	return out.Documents, nil
}

// Create stores a new document with the given id.
// It fails with an error matching docmigrate.ErrConflict when the id is taken.
func (c *Client) Create(ctx context.Context, id string, data map[string]any, permissions []string) (models.Record, error) {
	if data == nil {
		data = map[string]any{}
	}
	if permissions == nil {
		permissions = []string{}
	}
	body := createRequest{DocumentID: id, Data: data, Permissions: permissions}

	var out models.Record
	if err := c.do(ctx, "create", id, http.MethodPost, c.base, nil, body, &out); err != nil {
		return models.Record{}, err
	}
	return out, nil
}

// Delete removes the document with the given id.
// It fails with an error matching docmigrate.ErrNotFound when there is no such document.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete", id, http.MethodDelete, c.base+"/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, op, id, method, target string, params url.Values, reqBody, dst any) error {
	if c.conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.conf.Timeout)
		defer cancel()
	}

	var body io.Reader = http.NoBody
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return &docmigrate.RemoteError{Op: op, ID: id, Kind: docmigrate.KindUnexpected, Err: err}
		}
		body = bytes.NewReader(b)
	}
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &docmigrate.RemoteError{Op: op, ID: id, Kind: docmigrate.KindUnexpected, Err: err}
	}
	requestID := uuid.Must(uuid.NewV4()).String()
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(constants.HeaderProject, c.conf.Project)
	req.Header.Set(constants.HeaderKey, c.conf.APIKey)
	req.Header.Set(constants.HeaderRequestID, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Str("op", op).Str("request_id", requestID).Err(err).Msg("request failed")
		return &docmigrate.RemoteError{Op: op, ID: id, Kind: docmigrate.KindTransport, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("op", op).
		Str("id", id).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("remote call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(op, id, resp)
	}
	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &docmigrate.RemoteError{
			Op:     op,
			ID:     id,
			Status: resp.StatusCode,
			Kind:   docmigrate.KindUnexpected,
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

func responseError(op, id string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	out := &docmigrate.RemoteError{
		Op:     op,
		ID:     id,
		Status: resp.StatusCode,
		Kind:   kindForStatus(resp.StatusCode),
	}

	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
		out.Message = apiErr.Message
		out.Type = apiErr.Type
	} else {
		out.Message = strings.TrimSpace(string(raw))
	}
	if out.Message == "" {
		out.Message = resp.Status
	}
	out.Err = errors.New(out.Message)
	return out
}

func kindForStatus(status int) docmigrate.RemoteKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return docmigrate.KindUnauthorized
	case status == http.StatusNotFound:
		return docmigrate.KindNotFound
	case status == http.StatusConflict:
		return docmigrate.KindConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return docmigrate.KindValidation
	case status >= 500:
		return docmigrate.KindServer
	default:
		return docmigrate.KindUnexpected
	}
}
