// The [docmigrate] package holds the error taxonomy shared by the docmigrate tools.
//
// # Tools
//
// docmigrate moves documents between a remote document-database collection and local CSV files.
// Three pipelines are available, each in its own package under contrib:
//
//   - [github.com/docmigrate/docmigrate/contrib/docdump] backs a collection up to a CSV file.
//   - [github.com/docmigrate/docmigrate/contrib/docrestore] creates documents from a CSV file.
//   - [github.com/docmigrate/docmigrate/contrib/docwipe] deletes every document in a collection.
//
// The cmd/docmigrate command selects one of them with the --action flag.
//
// # Errors
//
// Every failure is fatal to the running pipeline. Errors are one of [UsageError], [RemoteError],
// [DecodeError] or [IOError], and [ExitCode] maps them to the process exit status.
//
// # Interchange Format
//
// Backups are UTF-8 CSV files with the header "id,permissions,data". The permissions and data columns hold
// compact JSON documents, quoted per RFC 4180. See [github.com/docmigrate/docmigrate/pkg/csvcodec].
package docmigrate
