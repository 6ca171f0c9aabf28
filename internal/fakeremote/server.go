// Package fakeremote provides an in-process fake of the remote documents API for tests.
//
// The server keeps documents in creation order, which is the order list calls return them in,
// and understands the limit and cursorAfter queries in both wire syntaxes.
//
// To exercise failure paths, calls can be made to fail by operation and call number,
// and the server can be told to break the ordering guarantee the wipe loop relies on.
package fakeremote

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/docmigrate/docmigrate/pkg/constants"
	"github.com/docmigrate/docmigrate/pkg/models"
	"github.com/docmigrate/docmigrate/pkg/query"
)

// Operation names used for failure injection.
const (
	OpList   = "list"
	OpCreate = "create"
	OpDelete = "delete"
)

// DefaultListLimit is the page size used when a list call carries no limit query.
const DefaultListLimit = 25

// Failure makes the Nth call (1-based) of an operation fail with the given status.
type Failure struct {
	Op      string
	Call    int
	Status  int
	Type    string
	Message string
	// Delay is slept before answering, to exercise client deadlines.
	Delay time.Duration
}

type document struct {
	rec       models.Record
	createdAt time.Time
	sequence  int
}

// Server is a fake documents API.
type Server struct {
	Project string
	APIKey  string

	mu       sync.Mutex
	docs     []*document
	seq      int
	calls    map[string]int
	failures []Failure
	// revive re-lists deleted documents on the next first-page call
	revive  bool
	deleted []*document
	queries [][]string

	httpServer *httptest.Server
}

// New creates a server that accepts the given credentials.
// Empty credentials disable the corresponding check.
func New(project, apiKey string) *Server {
	return &Server{
		Project: project,
		APIKey:  apiKey,
		calls:   make(map[string]int),
	}
}

// Start serves the API on a local listener and returns the endpoint URL.
func (s *Server) Start() string {
	s.httpServer = httptest.NewServer(s.Router())
	return s.httpServer.URL + "/v1"
}

// Close stops the listener started by Start.
func (s *Server) Close() {
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

// Router returns the HTTP routes of the fake API.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/v1/databases/{database}/collections/{collection}/documents").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/{id}", s.handleDelete).Methods(http.MethodDelete)
	return r
}

// Seed appends records as if they had been created in order.
func (s *Server) Seed(records ...models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.insert(rec)
	}
}

// Fail registers failures to inject.
func (s *Server) Fail(failures ...Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failures...)
}

// ReviveDeleted makes deleted documents reappear at the front of the next list call,
// simulating a backend whose ordering is not stable under deletion.
func (s *Server) ReviveDeleted(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revive = on
}

// Records returns a snapshot of the stored records in list order.
func (s *Server) Records() []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Record, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d.rec)
	}
	return out
}

// Calls returns how many times an operation was requested.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// ListQueries returns the raw queries of every list call, in call order.
func (s *Server) ListQueries() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.queries))
	copy(out, s.queries)
	return out
}

func (s *Server) insert(rec models.Record) {
	s.seq++
	if rec.Permissions == nil {
		rec.Permissions = []string{}
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	s.docs = append(s.docs, &document{rec: rec, createdAt: time.Now().UTC(), sequence: s.seq})
}

func (s *Server) indexOf(id string) int {
	for i, d := range s.docs {
		if d.rec.ID == id {
			return i
		}
	}
	return -1
}

// enter counts the call and returns the failure to inject, if any.
func (s *Server) enter(op string) *Failure {
	s.mu.Lock()
	s.calls[op]++
	n := s.calls[op]
	var hit *Failure
	for i := range s.failures {
		if s.failures[i].Op == op && s.failures[i].Call == n {
			f := s.failures[i]
			hit = &f
			break
		}
	}
	s.mu.Unlock()

	if hit != nil && hit.Delay > 0 {
		time.Sleep(hit.Delay)
	}
	return hit
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Project != "" && r.Header.Get(constants.HeaderProject) != s.Project {
			writeError(w, http.StatusNotFound, "project_not_found", "Project with the requested ID could not be found.")
			return
		}
		if s.APIKey != "" && r.Header.Get(constants.HeaderKey) != s.APIKey {
			writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "The current user is not authorized to perform the requested action.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if f := s.enter(OpList); f != nil && f.Status != 0 {
		writeFailure(w, f)
		return
	}

	rawQueries := r.URL.Query()["queries[]"]
	limit := DefaultListLimit
	cursor := ""
	for _, raw := range rawQueries {
		q, err := query.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "general_query_invalid", err.Error())
			return
		}
		switch q.Method {
		case query.MethodLimit:
			n, err := q.IntValue()
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "general_query_invalid", fmt.Sprintf("invalid limit: %v", raw))
				return
			}
			limit = n
		case query.MethodCursorAfter:
			id, err := q.StringValue()
			if err != nil {
				writeError(w, http.StatusBadRequest, "general_query_invalid", err.Error())
				return
			}
			cursor = id
		default:
			writeError(w, http.StatusBadRequest, "general_query_invalid", "unsupported query method "+q.Method)
			return
		}
	}

	s.mu.Lock()
	s.queries = append(s.queries, rawQueries)
	docs := s.docs
	if s.revive && cursor == "" && len(s.deleted) > 0 {
		docs = append(append([]*document{}, s.deleted...), s.docs...)
		s.deleted = nil
	}
	start := 0
	if cursor != "" {
		idx := s.indexOf(cursor)
		if idx < 0 {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "general_cursor_not_found", fmt.Sprintf("Document '%s' for the 'cursor' value not found.", cursor))
			return
		}
		start = idx + 1
	}
	end := start + limit
	if end > len(docs) {
		end = len(docs)
	}
	page := make([]map[string]any, 0, end-start)
	for _, d := range docs[start:end] {
		page = append(page, render(r, d))
	}
	total := len(s.docs)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"total": total, "documents": page})
}

type createBody struct {
	DocumentID  string         `json:"documentId"`
	Data        map[string]any `json:"data"`
	Permissions []string       `json:"permissions"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if f := s.enter(OpCreate); f != nil && f.Status != 0 {
		writeFailure(w, f)
		return
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body createBody
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "general_argument_invalid", err.Error())
		return
	}
	if strings.TrimSpace(body.DocumentID) == "" {
		writeError(w, http.StatusBadRequest, "general_argument_invalid", "Param \"documentId\" is not optional.")
		return
	}
	for k := range body.Data {
		if strings.HasPrefix(k, "$") {
			writeError(w, http.StatusBadRequest, "document_invalid_structure", fmt.Sprintf("Invalid document structure: Unknown attribute: \"%s\"", k))
			return
		}
	}

	s.mu.Lock()
	if s.indexOf(body.DocumentID) >= 0 {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "document_already_exists", "Document with the requested ID already exists.")
		return
	}
	s.insert(models.Record{ID: body.DocumentID, Data: body.Data, Permissions: body.Permissions})
	doc := s.docs[len(s.docs)-1]
	out := render(r, doc)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if f := s.enter(OpDelete); f != nil && f.Status != 0 {
		writeFailure(w, f)
		return
	}

	id := mux.Vars(r)["id"]
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "document_not_found", "Document with the requested ID could not be found.")
		return
	}
	removed := s.docs[idx]
	s.docs = append(s.docs[:idx], s.docs[idx+1:]...)
	if s.revive {
		s.deleted = append(s.deleted, removed)
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func render(r *http.Request, d *document) map[string]any {
	vars := mux.Vars(r)
	out := make(map[string]any, len(d.rec.Data)+7)
	for k, v := range d.rec.Data {
		out[k] = v
	}
	ts := d.createdAt.Format("2006-01-02T15:04:05.000-07:00")
	out[models.KeyID] = d.rec.ID
	out[models.KeyPermissions] = d.rec.Permissions
	out[models.KeyCollectionID] = vars["collection"]
	out[models.KeyDatabaseID] = vars["database"]
	out[models.KeyCreatedAt] = ts
	out[models.KeyUpdatedAt] = ts
	out[models.KeySequence] = d.sequence
	return out
}

func writeFailure(w http.ResponseWriter, f *Failure) {
	typ := f.Type
	if typ == "" {
		typ = "general_server_error"
	}
	msg := f.Message
	if msg == "" {
		msg = fmt.Sprintf("injected %s failure on call %d", f.Op, f.Call)
	}
	writeError(w, f.Status, typ, msg)
}

func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]any{
		"message": msg,
		"code":    status,
		"type":    typ,
		"version": "fake",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
