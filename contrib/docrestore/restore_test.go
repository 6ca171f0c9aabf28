package docrestore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/contrib/docdump"
	"github.com/docmigrate/docmigrate/contrib/docrestore"
	"github.com/docmigrate/docmigrate/internal/fakeremote"
	"github.com/docmigrate/docmigrate/pkg/models"
	"github.com/docmigrate/docmigrate/pkg/remote"
)

func remoteConfig(t *testing.T, srv *fakeremote.Server) *remote.Config {
	t.Helper()
	endpoint := srv.Start()
	t.Cleanup(srv.Close)

	conf := remote.NewConfig()
	conf.Endpoint = endpoint
	conf.Project = "proj"
	conf.APIKey = "secret"
	conf.Database = "main"
	conf.Collection = "books"
	return conf
}

func newClient(t *testing.T, srv *fakeremote.Server) *remote.Client {
	t.Helper()
	client, err := remote.New(remoteConfig(t, srv), zerolog.Nop())
	require.NoError(t, err)
	return client
}

func seedABC(srv *fakeremote.Server) {
	srv.Seed(
		models.Record{ID: "a", Permissions: []string{}, Data: map[string]any{"x": 1}},
		models.Record{ID: "b", Permissions: []string{"read"}, Data: map[string]any{"y": []any{1, 2}}},
		models.Record{ID: "c", Permissions: []string{}, Data: map[string]any{}},
	)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func assertSameRecords(t *testing.T, want, got []models.Record) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Permissions, got[i].Permissions)

		wantData, err := json.Marshal(want[i].Data)
		require.NoError(t, err)
		gotData, err := json.Marshal(got[i].Data)
		require.NoError(t, err)
		assert.JSONEq(t, string(wantData), string(gotData))
	}
}

func TestBackupAndRestore(t *testing.T) {
	source := fakeremote.New("proj", "secret")
	seedABC(source)
	backup, err := docdump.New(newClient(t, source), "main", "books", 2, zerolog.Nop()).
		Backup(context.Background(), t.TempDir())
	require.NoError(t, err)

	target := fakeremote.New("proj", "secret")
	stats, err := docrestore.New(newClient(t, target), zerolog.Nop()).Restore(context.Background(), backup.Path)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.RecordsRestored)
	assert.True(t, stats.Verified)
	assert.Equal(t, 3, target.Calls(fakeremote.OpCreate))
	assertSameRecords(t, source.Records(), target.Records())
}

func TestBackupAndRestore_Encrypted(t *testing.T) {
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	source := fakeremote.New("proj", "secret")
	seedABC(source)
	backup, err := docdump.New(newClient(t, source), "main", "books", 2, zerolog.Nop()).
		WithRecipients(id.Recipient()).
		Backup(context.Background(), t.TempDir())
	require.NoError(t, err)

	target := fakeremote.New("proj", "secret")
	restorer := docrestore.New(newClient(t, target), zerolog.Nop())

	_, err = restorer.Restore(context.Background(), backup.Path)
	var decErr *docmigrate.DecodeError
	require.ErrorAs(t, err, &decErr, "no identity")
	assert.Equal(t, 0, target.Calls(fakeremote.OpCreate))

	stats, err := restorer.WithIdentities(id).Restore(context.Background(), backup.Path)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.RecordsRestored)
	assertSameRecords(t, source.Records(), target.Records())
}

func TestRestore_StopsAtMalformedRow(t *testing.T) {
	path := writeFile(t, "id,permissions,data\n"+
		`a,[],"{""x"":1}"`+"\n"+
		`b,"[""read""]","{""y"":[1,2]}"`+"\n"+
		`c,[],"{""z"":"`+"\n"+
		"d,[],{}\n")

	target := fakeremote.New("proj", "secret")
	stats, err := docrestore.New(newClient(t, target), zerolog.Nop()).Restore(context.Background(), path)
	require.Error(t, err)

	var decErr *docmigrate.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, 3, decErr.Row)
	assert.Equal(t, "data", decErr.Field)

	assert.Equal(t, 2, stats.RecordsRestored)
	assert.Equal(t, 2, target.Calls(fakeremote.OpCreate))
	require.Len(t, target.Records(), 2)
	assert.Equal(t, "b", target.Records()[1].ID)
}

func TestRestore_StopsAtConflict(t *testing.T) {
	path := writeFile(t, "id,permissions,data\na,[],{}\nb,[],{}\nc,[],{}\n")

	target := fakeremote.New("proj", "secret")
	target.Seed(models.Record{ID: "b"})
	stats, err := docrestore.New(newClient(t, target), zerolog.Nop()).Restore(context.Background(), path)

	assert.ErrorIs(t, err, docmigrate.ErrConflict)
	assert.Contains(t, err.Error(), "row 2")
	assert.Equal(t, 1, stats.RecordsRestored)
	assert.Equal(t, 2, target.Calls(fakeremote.OpCreate))
}

func TestRestore_ChecksumMismatch(t *testing.T) {
	source := fakeremote.New("proj", "secret")
	seedABC(source)
	backup, err := docdump.New(newClient(t, source), "main", "books", 2, zerolog.Nop()).
		Backup(context.Background(), t.TempDir())
	require.NoError(t, err)

	content, err := os.ReadFile(backup.Path)
	require.NoError(t, err)
	tampered := strings.Replace(string(content), "c,[],{}", "e,[],{}", 1)
	require.NoError(t, os.WriteFile(backup.Path, []byte(tampered), 0600))

	target := fakeremote.New("proj", "secret")
	client := newClient(t, target)

	_, err = docrestore.New(client, zerolog.Nop()).Restore(context.Background(), backup.Path)
	var decErr *docmigrate.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, 0, target.Calls(fakeremote.OpCreate))

	stats, err := docrestore.New(client, zerolog.Nop()).SkipVerify(true).Restore(context.Background(), backup.Path)
	require.NoError(t, err)
	assert.False(t, stats.Verified)
	assert.Equal(t, 3, stats.RecordsRestored)
}

func TestRestore_WithoutManifest(t *testing.T) {
	path := writeFile(t, "id,permissions,data\na,[],{}\n")

	target := fakeremote.New("proj", "secret")
	stats, err := docrestore.New(newClient(t, target), zerolog.Nop()).Restore(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, stats.Verified)
	assert.Equal(t, 1, stats.RecordsRestored)
}

func TestRestore_HeaderOnly(t *testing.T) {
	path := writeFile(t, "id,permissions,data\n")

	target := fakeremote.New("proj", "secret")
	stats, err := docrestore.New(newClient(t, target), zerolog.Nop()).Restore(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, stats.RecordsRestored)
}

func TestRestore_Inputs(t *testing.T) {
	restorer := docrestore.New(nil, zerolog.Nop())

	_, err := restorer.Restore(context.Background(), "")
	assert.Equal(t, docmigrate.ExitUsage, docmigrate.ExitCode(err))

	_, err = restorer.Restore(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	var ioErr *docmigrate.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open", ioErr.Op)
}

func TestRestore_Cancelled(t *testing.T) {
	path := writeFile(t, "id,permissions,data\na,[],{}\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := fakeremote.New("proj", "secret")
	_, err := docrestore.New(newClient(t, target), zerolog.Nop()).Restore(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, target.Calls(fakeremote.OpCreate))
}
