package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brutus5000/bireus/strategy"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestCreateScaffoldsRepository(t *testing.T) {
	root := t.TempDir()

	repo, err := Create(root, "demo", "v1", &strategy.Incremental{Bidirectional: true})
	require.NoError(t, err)

	assert.Equal(t, "demo", repo.Info.Name)
	assert.Equal(t, "v1", repo.Info.FirstVersion)
	assert.Equal(t, "v1", repo.Info.LatestVersion)
	assert.Equal(t, "inc-bi", repo.Info.Strategy)
	assert.True(t, repo.Graph.HasNode("v1"))

	_, err = os.Stat(filepath.Join(root, "demo", "v1"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "demo", "info.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "demo", "versions.gml"))
	require.NoError(t, err)
}

func TestOpenRoundTripsCreate(t *testing.T) {
	root := t.TempDir()

	_, err := Create(root, "demo", "v1", &strategy.Incremental{Bidirectional: false})
	require.NoError(t, err)

	reopened, err := Open(filepath.Join(root, "demo"))
	require.NoError(t, err)
	assert.Equal(t, "demo", reopened.Info.Name)
	assert.Equal(t, "inc-fo", reopened.Info.Strategy)
	assert.True(t, reopened.Graph.HasNode("v1"))
}

func TestOpenRejectsMissingInfo(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "demo", "v1"), 0o755))

	_, err := Open(filepath.Join(root, "demo"))
	assert.Error(t, err)
}

func TestUpdateIngestsNewSnapshotsAndGeneratesPatches(t *testing.T) {
	root := t.TempDir()

	repo, err := Create(root, "demo", "v1", &strategy.Incremental{Bidirectional: true})
	require.NoError(t, err)

	writeFile(t, filepath.Join(repo.Path, "v1", "unchanged.txt"), "same contents")
	writeFile(t, filepath.Join(repo.Path, "v1", "changed.bin"), "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	ctx := context.Background()
	require.NoError(t, repo.Update(ctx))

	_, err = os.Stat(filepath.Join(repo.Path, LatestArchiveName))
	require.NoError(t, err)
	assert.Equal(t, "v1", repo.Info.LatestVersion)

	writeFile(t, filepath.Join(repo.Path, "v2", "unchanged.txt"), "same contents")
	writeFile(t, filepath.Join(repo.Path, "v2", "changed.bin"), "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	require.NoError(t, repo.Update(ctx))

	assert.Equal(t, "v2", repo.Info.LatestVersion)
	assert.True(t, repo.Graph.HasNode("v2"))

	_, err = os.Stat(filepath.Join(repo.Path, PatchesDirName, "v1_to_v2.tar.xz"))
	require.NoError(t, err)

	reopened, err := Open(filepath.Join(root, "demo"))
	require.NoError(t, err)
	assert.Equal(t, "v2", reopened.Info.LatestVersion)
	assert.True(t, reopened.Graph.HasEdge("v1", "v2"))
}

func TestUpdateIsIdempotent(t *testing.T) {
	root := t.TempDir()

	repo, err := Create(root, "demo", "v1", &strategy.Instant{})
	require.NoError(t, err)
	writeFile(t, filepath.Join(repo.Path, "v1", "a.txt"), "hello")

	ctx := context.Background()
	require.NoError(t, repo.Update(ctx))
	require.NoError(t, repo.Update(ctx))

	assert.Equal(t, "v1", repo.Info.LatestVersion)
}

func TestCleanupRemovesPatchesDir(t *testing.T) {
	root := t.TempDir()
	repo, err := Create(root, "demo", "v1", &strategy.Instant{})
	require.NoError(t, err)

	patchesDir := filepath.Join(repo.Path, PatchesDirName)
	require.NoError(t, os.MkdirAll(patchesDir, 0o755))
	writeFile(t, filepath.Join(patchesDir, "v1_to_v2.tar.xz"), "stale")

	require.NoError(t, repo.Cleanup())

	_, err = os.Stat(patchesDir)
	assert.True(t, os.IsNotExist(err))
}
