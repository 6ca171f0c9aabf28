package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/internal/cli"
	"github.com/docmigrate/docmigrate/internal/fakeremote"
	"github.com/docmigrate/docmigrate/pkg/models"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli.Run(context.Background(), args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// isolate keeps the user's profile file out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func startServer(t *testing.T, seed int) (*fakeremote.Server, string) {
	t.Helper()
	srv := fakeremote.New("proj", "secret")
	for i := 0; i < seed; i++ {
		srv.Seed(models.Record{
			ID:          fmt.Sprintf("doc%d", i),
			Permissions: []string{`read("any")`},
			Data:        map[string]any{"n": i, "title": fmt.Sprintf("Title, %d", i)},
		})
	}
	endpoint := srv.Start()
	t.Cleanup(srv.Close)
	return srv, endpoint
}

func remoteArgs(endpoint string) []string {
	return []string{
		"--endpoint", endpoint,
		"--project", "proj",
		"--api-key", "secret",
		"--database", "main",
		"--collection", "books",
	}
}

func TestRun_BackupRestoreWipe(t *testing.T) {
	isolate(t)
	source, sourceEndpoint := startServer(t, 5)
	target, targetEndpoint := startServer(t, 0)
	dir := t.TempDir()

	res := run(t, append(remoteArgs(sourceEndpoint), "--action", "documents-backup", "--limit", "2", "--dir", dir)...)
	require.Equal(t, docmigrate.ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Backed up 5 documents")
	assert.Equal(t, 4, source.Calls(fakeremote.OpList))

	files, err := filepath.Glob(filepath.Join(dir, "backup_main_books_*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	res = run(t, append(remoteArgs(targetEndpoint), "--action", "documents-restore", "--file", files[0])...)
	require.Equal(t, docmigrate.ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Restored 5 documents")
	require.Len(t, target.Records(), 5)
	assert.Equal(t, "doc4", target.Records()[4].ID)

	res = run(t, append(remoteArgs(targetEndpoint), "--action", "documents-wipe", "--limit", "2")...)
	require.Equal(t, docmigrate.ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Deleted 5 documents")
	assert.Empty(t, target.Records())
}

func TestRun_UsageErrors(t *testing.T) {
	isolate(t)
	_, endpoint := startServer(t, 0)

	cases := map[string][]string{
		"NoAction":       remoteArgs(endpoint),
		"UnknownAction":  append(remoteArgs(endpoint), "--action", "documents-export"),
		"RestoreNoFile":  append(remoteArgs(endpoint), "--action", "documents-restore"),
		"MissingKey":     {"--endpoint", endpoint, "--project", "p", "--database", "d", "--collection", "c", "--action", "documents-wipe"},
		"UnknownFlag":    append(remoteArgs(endpoint), "--action", "documents-wipe", "--force"),
		"BadLimit":       append(remoteArgs(endpoint), "--action", "documents-backup", "--limit", "0"),
		"BadSyntax":      append(remoteArgs(endpoint), "--action", "documents-wipe", "--query-syntax", "sql"),
		"UnknownProfile": append(remoteArgs(endpoint), "--action", "documents-wipe", "--profile", "nope"),
		"PositionalArgs": append(remoteArgs(endpoint), "--action", "documents-wipe", "extra"),
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			res := run(t, args...)
			assert.Equal(t, docmigrate.ExitUsage, res.code, res.stderr)
			assert.Contains(t, res.stderr, "Error:")
			assert.Contains(t, res.stderr, "--help")
		})
	}
}

func TestRun_RuntimeErrors(t *testing.T) {
	isolate(t)
	srv, endpoint := startServer(t, 3)

	t.Run("Unauthorized", func(t *testing.T) {
		args := []string{
			"--endpoint", endpoint, "--project", "proj", "--api-key", "wrong",
			"--database", "main", "--collection", "books", "--action", "documents-wipe",
		}
		res := run(t, args...)
		assert.Equal(t, docmigrate.ExitRuntime, res.code)
		assert.Contains(t, res.stderr, "unauthorized")
		assert.Len(t, srv.Records(), 3)
	})

	t.Run("BackupFailureLeavesNoFile", func(t *testing.T) {
		srv.Fail(fakeremote.Failure{Op: fakeremote.OpList, Call: srv.Calls(fakeremote.OpList) + 2, Status: 500})
		dir := t.TempDir()
		res := run(t, append(remoteArgs(endpoint), "--action", "documents-backup", "--limit", "1", "--dir", dir)...)
		assert.Equal(t, docmigrate.ExitRuntime, res.code)
		assert.Contains(t, res.stderr, "partial file removed")

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("MissingInput", func(t *testing.T) {
		res := run(t, append(remoteArgs(endpoint), "--action", "documents-restore", "--file", filepath.Join(t.TempDir(), "gone.csv"))...)
		assert.Equal(t, docmigrate.ExitRuntime, res.code)
	})
}

func TestRun_ProfileAndEnvironment(t *testing.T) {
	isolate(t)
	srv, endpoint := startServer(t, 3)

	config := filepath.Join(t.TempDir(), "config.toml")
	content := fmt.Sprintf(`
endpoint = %q
project = "proj"

[profiles.test]
database = "main"
collection = "books"
limit = 1
`, endpoint)
	require.NoError(t, os.WriteFile(config, []byte(content), 0600))
	t.Setenv("DOCMIGRATE_API_KEY", "secret")

	res := run(t, "--config", config, "--profile", "test", "--action", "documents-wipe")
	require.Equal(t, docmigrate.ExitOK, res.code, res.stderr)
	assert.Empty(t, srv.Records())
	assert.Equal(t, 4, srv.Calls(fakeremote.OpList), "limit 1 from the profile")
}

func TestRun_FlagsOverrideEnvironment(t *testing.T) {
	isolate(t)
	srv, endpoint := startServer(t, 2)
	t.Setenv("DOCMIGRATE_API_KEY", "wrong")
	t.Setenv("DOCMIGRATE_LIMIT", "1")

	res := run(t, append(remoteArgs(endpoint), "--action", "documents-wipe", "--limit", "10")...)
	require.Equal(t, docmigrate.ExitOK, res.code, res.stderr)
	assert.Equal(t, 2, srv.Calls(fakeremote.OpList))
}

func TestRun_LogFile(t *testing.T) {
	isolate(t)
	_, endpoint := startServer(t, 2)
	logPath := filepath.Join(t.TempDir(), "run.log")

	res := run(t, append(remoteArgs(endpoint), "--action", "documents-backup", "--dir", t.TempDir(),
		"--verbose", "--log-file", logPath, "--query-syntax", "legacy")...)
	require.Equal(t, docmigrate.ExitOK, res.code, res.stderr)

	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logged), `"message":"page processed"`)
	assert.Contains(t, string(logged), `"message":"backup complete"`)
	assert.Contains(t, res.stderr, "backup complete")
}
