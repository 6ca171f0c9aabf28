package remote_test

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmigrate/docmigrate"
	"github.com/docmigrate/docmigrate/internal/fakeremote"
	"github.com/docmigrate/docmigrate/pkg/models"
	"github.com/docmigrate/docmigrate/pkg/query"
	"github.com/docmigrate/docmigrate/pkg/remote"
)

func newClient(t *testing.T, srv *fakeremote.Server, mutate ...func(*remote.Config)) *remote.Client {
	t.Helper()
	endpoint := srv.Start()
	t.Cleanup(srv.Close)

	conf := remote.NewConfig()
	conf.Endpoint = endpoint
	conf.Project = "proj"
	conf.APIKey = "secret"
	conf.Database = "main"
	conf.Collection = "books"
	for _, m := range mutate {
		m(conf)
	}

	client, err := remote.New(conf, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestClient_List(t *testing.T) {
	srv := fakeremote.New("proj", "secret")
	srv.Seed(
		models.Record{ID: "a", Permissions: []string{}, Data: map[string]any{"x": 1}},
		models.Record{ID: "b", Permissions: []string{"read(\"any\")"}, Data: map[string]any{"y": []any{1, 2}}},
		models.Record{ID: "c", Permissions: []string{}, Data: map[string]any{}},
	)
	client := newClient(t, srv)
	ctx := context.Background()

	page, err := client.List(ctx, query.Limit(2))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "b", page[1].ID)
	assert.Equal(t, []string{`read("any")`}, page[1].Permissions)
	assert.Equal(t, map[string]any{"x": json.Number("1")}, page[0].Data)

	page, err = client.List(ctx, query.Limit(2), query.CursorAfter("b"))
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)
	assert.Empty(t, page[0].Data)

	page, err = client.List(ctx, query.Limit(2), query.CursorAfter("c"))
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.NotNil(t, page)
}

func TestClient_List_LegacySyntax(t *testing.T) {
	srv := fakeremote.New("proj", "secret")
	srv.Seed(models.Record{ID: "a"}, models.Record{ID: "b"})
	client := newClient(t, srv, func(c *remote.Config) { c.QuerySyntax = query.SyntaxLegacy })

	page, err := client.List(context.Background(), query.Limit(1), query.CursorAfter("a"))
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)
	assert.Equal(t, [][]string{{"limit(1)", `cursorAfter("a")`}}, srv.ListQueries())
}

func TestClient_Create(t *testing.T) {
	srv := fakeremote.New("proj", "secret")
	client := newClient(t, srv)
	ctx := context.Background()

	rec, err := client.Create(ctx, "n1", map[string]any{"title": "Dune"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "n1", rec.ID)
	assert.Equal(t, []string{}, rec.Permissions)
	assert.Equal(t, map[string]any{"title": "Dune"}, rec.Data)

	_, err = client.Create(ctx, "n1", map[string]any{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, docmigrate.ErrConflict)

	var remoteErr *docmigrate.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, 409, remoteErr.Status)
	assert.Equal(t, "document_already_exists", remoteErr.Type)

	_, err = client.Create(ctx, "n2", map[string]any{"$id": "x"}, nil)
	assert.ErrorIs(t, err, docmigrate.ErrValidation)
}

func TestClient_Delete(t *testing.T) {
	srv := fakeremote.New("proj", "secret")
	srv.Seed(models.Record{ID: "a"})
	client := newClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.Delete(ctx, "a"))
	assert.Empty(t, srv.Records())

	err := client.Delete(ctx, "a")
	assert.ErrorIs(t, err, docmigrate.ErrNotFound)
}

func TestClient_Unauthorized(t *testing.T) {
	srv := fakeremote.New("proj", "other-key")
	client := newClient(t, srv)

	_, err := client.List(context.Background(), query.Limit(1))
	assert.ErrorIs(t, err, docmigrate.ErrUnauthorized)
}

func TestClient_ServerError(t *testing.T) {
	srv := fakeremote.New("proj", "secret")
	srv.Fail(fakeremote.Failure{Op: fakeremote.OpList, Call: 1, Status: 503, Message: "maintenance"})
	client := newClient(t, srv)

	_, err := client.List(context.Background(), query.Limit(1))
	var remoteErr *docmigrate.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, docmigrate.KindServer, remoteErr.Kind)
	assert.Equal(t, "maintenance", remoteErr.Message)
	assert.Equal(t, "list", remoteErr.Op)
}

func TestClient_Timeout(t *testing.T) {
	srv := fakeremote.New("proj", "secret")
	srv.Fail(fakeremote.Failure{Op: fakeremote.OpList, Call: 1, Delay: 300 * time.Millisecond})
	client := newClient(t, srv, func(c *remote.Config) { c.Timeout = 50 * time.Millisecond })

	_, err := client.List(context.Background(), query.Limit(1))
	var remoteErr *docmigrate.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, docmigrate.KindTransport, remoteErr.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *remote.Config {
		c := remote.NewConfig()
		c.Endpoint = "https://db.example.com/v1"
		c.Project = "p"
		c.APIKey = "k"
		c.Database = "d"
		c.Collection = "c"
		return c
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(*remote.Config){
		"MissingEndpoint":   func(c *remote.Config) { c.Endpoint = "" },
		"RelativeEndpoint":  func(c *remote.Config) { c.Endpoint = "db.example.com" },
		"WebsocketEndpoint": func(c *remote.Config) { c.Endpoint = "ws://db.example.com" },
		"MissingProject":    func(c *remote.Config) { c.Project = " " },
		"MissingKey":        func(c *remote.Config) { c.APIKey = "" },
		"MissingDatabase":   func(c *remote.Config) { c.Database = "" },
		"MissingCollection": func(c *remote.Config) { c.Collection = "" },
		"NegativeTimeout":   func(c *remote.Config) { c.Timeout = -time.Second },
		"BadSyntax":         func(c *remote.Config) { c.QuerySyntax = "sql" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Equal(t, docmigrate.ExitUsage, docmigrate.ExitCode(err))
		})
	}
}
