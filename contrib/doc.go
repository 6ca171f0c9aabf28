// Package contrib holds the document pipelines built on top of the core docmigrate packages.
//
// [github.com/docmigrate/docmigrate/contrib/docdump] backs a collection up to a CSV file with a checksum
// manifest, [github.com/docmigrate/docmigrate/contrib/docrestore] replays such a file into a collection,
// and [github.com/docmigrate/docmigrate/contrib/docwipe] deletes every document of a collection.
// Each package exposes a Config with NewConfig and Validate, and a Do entry point used by the command line.
package contrib
