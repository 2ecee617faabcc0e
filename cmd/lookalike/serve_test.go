package main

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rupamthxt/lookalike/internal/cluster"
	"github.com/rupamthxt/lookalike/internal/config"
	vectorHttp "github.com/rupamthxt/lookalike/internal/http"
	"github.com/rupamthxt/lookalike/internal/logging"
	"github.com/rupamthxt/lookalike/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	homerCatalog    = `[{"id": 1, "name": "Homer Simpson", "embedding": [1, 0]}]`
	intruderCatalog = `[{"id": 9, "name": "Intruder", "embedding": [0, 1]}]`
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newLocalSetup(t *testing.T, allowOverride bool) (*store.Engine, *localReloader, string) {
	t.Helper()
	dir := t.TempDir()
	configured := writeFile(t, dir, "prototypes.json", homerCatalog)

	cat, err := store.LoadSource(context.Background(), store.FileSource{Path: configured}, 2)
	require.NoError(t, err)
	engine, err := store.NewEngine(cat, store.MatchOptions{})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Catalog.Path = configured
	cfg.Server.AllowReloadSource = allowOverride
	return engine, &localReloader{
		engine:  engine,
		dim:     2,
		resolve: sourceResolver(cfg),
		pin:     pinFor(cfg),
		log:     logging.Noop(),
	}, configured
}

func servedName(e *store.Engine) string {
	return e.Catalog().Character(0).Name()
}

func TestSourcePin(t *testing.T) {
	pinned := sourcePin{location: "data/prototypes.json"}

	loc, err := pinned.resolve("")
	require.NoError(t, err)
	assert.Equal(t, "data/prototypes.json", loc)

	loc, err = pinned.resolve("data/prototypes.json")
	require.NoError(t, err)
	assert.Equal(t, "data/prototypes.json", loc)

	_, err = pinned.resolve("s3://elsewhere/evil.json")
	assert.ErrorIs(t, err, vectorHttp.ErrSourceNotAllowed)

	open := sourcePin{location: "data/prototypes.json", allowOverride: true}
	loc, err = open.resolve("s3://catalogs/v2.json")
	require.NoError(t, err)
	assert.Equal(t, "s3://catalogs/v2.json", loc)
}

func TestLocalReloader(t *testing.T) {
	ctx := context.Background()

	t.Run("ConfiguredCatalog", func(t *testing.T) {
		engine, r, configured := newLocalSetup(t, false)
		require.NoError(t, os.WriteFile(configured, []byte(`[
			{"id": 1, "name": "Homer Simpson", "embedding": [1, 0]},
			{"id": 2, "name": "Marge Simpson", "embedding": [0, 1]}
		]`), 0o644))

		rows, sum, err := r.Reload(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, 2, rows)
		assert.Equal(t, engine.Catalog().Checksum(), sum)
		assert.Equal(t, 2, engine.Catalog().Len())
	})

	t.Run("OtherSourceRefused", func(t *testing.T) {
		engine, r, _ := newLocalSetup(t, false)
		other := writeFile(t, t.TempDir(), "other.json", intruderCatalog)

		_, _, err := r.Reload(ctx, other, "")
		assert.ErrorIs(t, err, vectorHttp.ErrSourceNotAllowed)
		assert.Equal(t, "Homer Simpson", servedName(engine))
	})

	t.Run("OtherSourceAllowed", func(t *testing.T) {
		engine, r, _ := newLocalSetup(t, true)
		other := writeFile(t, t.TempDir(), "other.json", intruderCatalog)

		rows, _, err := r.Reload(ctx, other, "")
		require.NoError(t, err)
		assert.Equal(t, 1, rows)
		assert.Equal(t, "Intruder", servedName(engine))
	})

	t.Run("ChecksumMismatchKeepsCatalog", func(t *testing.T) {
		engine, r, _ := newLocalSetup(t, false)
		before := engine.Catalog()

		_, _, err := r.Reload(ctx, "", "deadbeef")
		assert.ErrorIs(t, err, store.ErrChecksumMismatch)
		assert.Same(t, before, engine.Catalog())
	})
}

func doRequest(t *testing.T, app *fiber.App, path, body string, headers ...string) int {
	t.Helper()
	req := httptest.NewRequest(nethttp.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func TestServerAdminReloadDefaults(t *testing.T) {
	engine, r, _ := newLocalSetup(t, false)
	other := writeFile(t, t.TempDir(), "other.json", intruderCatalog)
	body := `{"source": "` + other + `"}`

	cfg := config.Default()
	app := newServer(cfg, engine, store.ScorePercent, r, nil, logging.Noop(), false)
	assert.Equal(t, fiber.StatusForbidden, doRequest(t, app, "/admin/reload", body))
	assert.Equal(t, fiber.StatusForbidden, doRequest(t, app, "/admin/reload", ""))
	assert.Equal(t, "Homer Simpson", servedName(engine))

	cfg.Server.AdminToken = "secret"
	app = newServer(cfg, engine, store.ScorePercent, r, nil, logging.Noop(), false)
	assert.Equal(t, fiber.StatusUnauthorized, doRequest(t, app, "/admin/reload", body))
	assert.Equal(t, fiber.StatusForbidden, doRequest(t, app, "/admin/reload", body, "Authorization", "Bearer secret"))
	assert.Equal(t, "Homer Simpson", servedName(engine))

	assert.Equal(t, fiber.StatusOK, doRequest(t, app, "/admin/reload", "", "Authorization", "Bearer secret"))
}

type fakeReplicator struct {
	leader   string
	location string
	res      cluster.ApplyResult
	err      error
}

func (f *fakeReplicator) Reload(location, _ string) (cluster.ApplyResult, error) {
	f.location = location
	return f.res, f.err
}

func (f *fakeReplicator) Leader() string { return f.leader }

func TestRaftReloader(t *testing.T) {
	ctx := context.Background()
	pin := sourcePin{location: "data/prototypes.json"}

	t.Run("ProposesConfiguredCatalog", func(t *testing.T) {
		node := &fakeReplicator{res: cluster.ApplyResult{Rows: 4, Checksum: "abc"}}
		r := &raftReloader{node: node, pin: pin}

		rows, sum, err := r.Reload(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, 4, rows)
		assert.Equal(t, "abc", sum)
		assert.Equal(t, "data/prototypes.json", node.location)
	})

	t.Run("OtherSourceRefused", func(t *testing.T) {
		node := &fakeReplicator{}
		r := &raftReloader{node: node, pin: pin}

		_, _, err := r.Reload(ctx, "s3://elsewhere/evil.json", "")
		assert.ErrorIs(t, err, vectorHttp.ErrSourceNotAllowed)
		assert.Empty(t, node.location)
	})

	t.Run("FollowerNamesLeader", func(t *testing.T) {
		node := &fakeReplicator{leader: "10.0.0.1:19000", err: cluster.ErrNotLeader}
		r := &raftReloader{node: node, pin: pin}

		_, _, err := r.Reload(ctx, "", "")
		assert.ErrorIs(t, err, cluster.ErrNotLeader)
		assert.ErrorContains(t, err, "10.0.0.1:19000")
	})

	t.Run("NoLeaderKnown", func(t *testing.T) {
		r := &raftReloader{node: &fakeReplicator{err: cluster.ErrNotLeader}, pin: pin}

		_, _, err := r.Reload(ctx, "", "")
		assert.Equal(t, cluster.ErrNotLeader, err)
	})

	t.Run("ApplyFailure", func(t *testing.T) {
		applyErr := errors.New("apply timed out")
		r := &raftReloader{node: &fakeReplicator{err: applyErr}, pin: pin}

		_, _, err := r.Reload(ctx, "", "")
		assert.ErrorIs(t, err, applyErr)
	})
}
