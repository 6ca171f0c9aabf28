package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Document attribute names the remote API attaches next to user data.
const (
	KeyID           = "$id"
	KeyPermissions  = "$permissions"
	KeyCollectionID = "$collectionId"
	KeyDatabaseID   = "$databaseId"
	KeyCreatedAt    = "$createdAt"
	KeyUpdatedAt    = "$updatedAt"
	KeySequence     = "$sequence"
	KeyInternalID   = "$internalId"
	KeyTenant       = "$tenant"

	// Attributes sent by older API versions.
	KeyCollection = "$collection"
	KeyRead       = "$read"
	KeyWrite      = "$write"
)

// MetadataKeys is the full set of attributes that never belong to Record.Data.
var MetadataKeys = []string{
	KeyID,
	KeyPermissions,
	KeyCollectionID,
	KeyDatabaseID,
	KeyCreatedAt,
	KeyUpdatedAt,
	KeySequence,
	KeyInternalID,
	KeyTenant,
	KeyCollection,
	KeyRead,
	KeyWrite,
}

var metadataKeySet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(MetadataKeys))
	for _, k := range MetadataKeys {
		set[k] = struct{}{}
	}
	return set
}()

// IsMetadataKey reports whether key is one of MetadataKeys.
func IsMetadataKey(key string) bool {
	_, ok := metadataKeySet[key]
	return ok
}

// Record is one document of a collection.
// Metadata and user data are kept apart: Data never holds a metadata key.
type Record struct {
	ID          string
	Permissions []string
	Data        map[string]any
}

// UnmarshalJSON decodes a document as returned by the remote API,
// moving $id and $permissions to their fields and dropping the other metadata keys.
// Numbers in Data are kept as json.Number so they re-encode unchanged.
func (r *Record) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("document is null")
	}

	id, ok := raw[KeyID].(string)
	if !ok || id == "" {
		return fmt.Errorf("document has no %s", KeyID)
	}

	perms, err := toStrings(raw[KeyPermissions])
	if err != nil {
		return fmt.Errorf("document %s: %s: %w", id, KeyPermissions, err)
	}

	data := make(map[string]any, len(raw))
	for k, v := range raw {
		if IsMetadataKey(k) {
			continue
		}
		data[k] = v
	}

	*r = Record{ID: id, Permissions: perms, Data: data}
	return nil
}

func toStrings(v any) ([]string, error) {
	if v == nil {
		return []string{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("element %d: expected string, got %T", i, item)
		}
		out = append(out, s)
	}
	return out, nil
}
