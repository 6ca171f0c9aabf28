// Package csvcodec converts records to and from rows of the backup CSV format.
//
// A backup file starts with the header row "id,permissions,data". Every following row holds one record:
// the raw id, the permissions as a compact JSON array and the data as a compact JSON object.
// Quoting follows RFC 4180, so JSON fields may contain commas, quotes and newlines.
package csvcodec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/pkg/models"
)

// Column names
const (
	ColumnID          = "id"
	ColumnPermissions = "permissions"
	ColumnData        = "data"
)

// Header is the first row of every backup file.
var Header = []string{ColumnID, ColumnPermissions, ColumnData}

// Encoder writes records as CSV rows.
type Encoder struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: csv.NewWriter(w)}
}

// WriteHeader writes the header row. Encode calls it on first use.
func (e *Encoder) WriteHeader() error {
	if e.wroteHeader {
		return nil
	}
	if err := e.w.Write(Header); err != nil {
		return err
	}
	e.wroteHeader = true
	return nil
}

// Encode writes one record.
func (e *Encoder) Encode(r models.Record) error {
	if err := e.WriteHeader(); err != nil {
		return err
	}
	row, err := EncodeRow(r)
	if err != nil {
		return err
	}
	return e.w.Write(row)
}

// Flush writes buffered rows to the underlying writer.
func (e *Encoder) Flush() error {
	e.w.Flush()
	return e.w.Error()
}

// EncodeRow returns the CSV fields of one record.
func EncodeRow(r models.Record) ([]string, error) {
	if r.ID == "" {
		return nil, errors.New("record has no id")
	}
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	data := r.Data
	if data == nil {
		data = map[string]any{}
	}

	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("encode permissions of %q: %w", r.ID, err)
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode data of %q: %w", r.ID, err)
	}
	return []string{r.ID, string(permsJSON), string(dataJSON)}, nil
}

// Decoder reads records from CSV rows.
// Columns are located by header name, so their order does not matter and extra columns are ignored.
type Decoder struct {
	r      *csv.Reader
	cols   map[string]int
	row    int
	header bool
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &Decoder{r: cr}
}

// Decode returns the next record. It returns io.EOF when the input is exhausted.
// Malformed rows are reported as *docmigrate.DecodeError.
func (d *Decoder) Decode() (models.Record, error) {
	if !d.header {
		if err := d.readHeader(); err != nil {
			return models.Record{}, err
		}
	}

	fields, err := d.r.Read()
	if err == io.EOF {
		return models.Record{}, io.EOF
	}
	d.row++
	if err != nil {
		return models.Record{}, d.parseError(err)
	}
	line, _ := d.r.FieldPos(0)

	get := func(col string) (string, bool) {
		i := d.cols[col]
		if i >= len(fields) {
			return "", false
		}
		return fields[i], true
	}

	id, ok := get(ColumnID)
	if !ok || id == "" {
		return models.Record{}, &docmigrate.DecodeError{Row: d.row, Line: line, Field: ColumnID, Err: errors.New("missing id")}
	}
	rawPerms, ok := get(ColumnPermissions)
	if !ok {
		return models.Record{}, &docmigrate.DecodeError{Row: d.row, Line: line, Field: ColumnPermissions, Err: errors.New("missing field")}
	}
	rawData, ok := get(ColumnData)
	if !ok {
		return models.Record{}, &docmigrate.DecodeError{Row: d.row, Line: line, Field: ColumnData, Err: errors.New("missing field")}
	}

	perms, err := decodePermissions(rawPerms)
	if err != nil {
		return models.Record{}, &docmigrate.DecodeError{Row: d.row, Line: line, Field: ColumnPermissions, Err: err}
	}
	data, err := decodeData(rawData)
	if err != nil {
		return models.Record{}, &docmigrate.DecodeError{Row: d.row, Line: line, Field: ColumnData, Err: err}
	}
	return models.Record{ID: id, Permissions: perms, Data: data}, nil
}

// Row returns the number of data rows read so far.
func (d *Decoder) Row() int {
	return d.row
}

func (d *Decoder) readHeader() error {
	fields, err := d.r.Read()
	if err == io.EOF {
		return &docmigrate.DecodeError{Err: errors.New("empty input: missing header row")}
	}
	if err != nil {
		return d.parseError(err)
	}

	cols := make(map[string]int, len(fields))
	for i, name := range fields {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, want := range Header {
		if _, ok := cols[want]; !ok {
			return &docmigrate.DecodeError{Line: 1, Err: fmt.Errorf("header has no %q column", want)}
		}
	}
	d.cols = cols
	d.header = true
	return nil
}

func (d *Decoder) parseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &docmigrate.DecodeError{Row: d.row, Line: pe.StartLine, Err: pe.Err}
	}
	return &docmigrate.DecodeError{Row: d.row, Err: err}
}

func decodePermissions(raw string) ([]string, error) {
	var perms []string
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	if perms == nil {
		if strings.TrimSpace(raw) == "null" {
			return nil, errors.New("permissions must be a JSON array, got null")
		}
		return []string{}, nil
	}
	return perms, nil
}

func decodeData(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	if data == nil {
		return nil, errors.New("data must be a JSON object, got null")
	}
	for k := range data {
		if models.IsMetadataKey(k) {
			return nil, fmt.Errorf("data holds reserved attribute %q", k)
		}
	}
	return data, nil
}
