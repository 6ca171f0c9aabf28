package constants

import "time"

// Defaults
const (
	DefaultLimit       = 100
	DefaultHTTPTimeout = 30 * time.Second
	DefaultDir         = "."
)

// Request headers understood by the remote API.
const (
	HeaderProject   = "X-Appwrite-Project"
	HeaderKey       = "X-Appwrite-Key"
	HeaderRequestID = "X-Request-Id"
)

// Actions accepted by the docmigrate command.
const (
	ActionBackup  = "documents-backup"
	ActionRestore = "documents-restore"
	ActionWipe    = "documents-wipe"
)

// ManifestSuffix is appended to a backup path to name its manifest.
const ManifestSuffix = ".manifest.json"

// EncryptedSuffix is appended to backups written for age recipients.
const EncryptedSuffix = ".age"
