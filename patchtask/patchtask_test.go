package patchtask

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brutus5000/bireus/comparetask"
	"github.com/brutus5000/bireus/content"
)

type fakeDownloader struct {
	files map[string][]byte
}

func (f *fakeDownloader) Download(ctx context.Context, url, destPath string) error {
	data, ok := f.files[url]
	if !ok {
		return os.ErrNotExist
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (f *fakeDownloader) Read(ctx context.Context, url string) ([]byte, error) {
	data, ok := f.files[url]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

// buildAndApply runs CompareTask over repo/v1 -> repo/v2, applies the
// resulting archive to a fresh copy of v1, and returns the patched tree's
// path; callers compare it against v2.
func buildAndApply(t *testing.T, repo string, downloader *fakeDownloader) string {
	t.Helper()
	ctx := context.Background()

	_, err := comparetask.Run(ctx, repo, "demo", "v1", "v2", comparetask.WithDeltaFile())
	require.NoError(t, err)

	workingTree := t.TempDir()
	require.NoError(t, copyTree(filepath.Join(repo, "v1"), workingTree))

	if downloader == nil {
		downloader = &fakeDownloader{files: map[string][]byte{}}
	}
	task := New(downloader, "https://example.invalid/demo")

	archivePath := filepath.Join(repo, "__patches__", "v1_to_v2.tar.xz")
	require.NoError(t, task.Apply(ctx, archivePath, workingTree))

	return workingTree
}

func assertTreesEqual(t *testing.T, a, b string) {
	t.Helper()
	var names []string
	err := filepath.Walk(a, func(p string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a, p)
		require.NoError(t, err)
		names = append(names, rel)
		return nil
	})
	require.NoError(t, err)

	for _, name := range names {
		equal, err := content.FilesEqual(filepath.Join(a, name), filepath.Join(b, name))
		require.NoError(t, err)
		assert.True(t, equal, "file %s differs", name)
	}
}

func TestApplyRoundTripBasic(t *testing.T) {
	repo := t.TempDir()

	writeFile(t, filepath.Join(repo, "v1", "unchanged.txt"), "same contents")
	writeFile(t, filepath.Join(repo, "v1", "removed.txt"), "going away")
	writeFile(t, filepath.Join(repo, "v1", "changed.bin"), "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	writeFile(t, filepath.Join(repo, "v2", "unchanged.txt"), "same contents")
	writeFile(t, filepath.Join(repo, "v2", "added.txt"), "brand new")
	writeFile(t, filepath.Join(repo, "v2", "changed.bin"), "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaab")

	patched := buildAndApply(t, repo, nil)
	assertTreesEqual(t, filepath.Join(repo, "v2"), patched)

	_, err := os.Stat(filepath.Join(patched, "removed.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestApplyRoundTripNestedDirectories(t *testing.T) {
	repo := t.TempDir()

	writeFile(t, filepath.Join(repo, "v1", "olddir", "x.txt"), "x")
	writeFile(t, filepath.Join(repo, "v1", "olddir", "nested", "y.txt"), "y")
	writeFile(t, filepath.Join(repo, "v1", "kept", "k.txt"), "keep me")

	writeFile(t, filepath.Join(repo, "v2", "newdir", "z.txt"), "z")
	writeFile(t, filepath.Join(repo, "v2", "kept", "k.txt"), "keep me")

	patched := buildAndApply(t, repo, nil)
	assertTreesEqual(t, filepath.Join(repo, "v2"), patched)

	_, err := os.Stat(filepath.Join(patched, "olddir"))
	assert.True(t, os.IsNotExist(err))
}

func TestApplyRoundTripZipDelta(t *testing.T) {
	repo := t.TempDir()

	makeZip := func(path string, files map[string]string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		f, err := os.Create(path)
		require.NoError(t, err)
		defer f.Close()
		zw := zip.NewWriter(f)
		for name, contents := range files {
			w, err := zw.Create(name)
			require.NoError(t, err)
			_, err = w.Write([]byte(contents))
			require.NoError(t, err)
		}
		require.NoError(t, zw.Close())
	}

	makeZip(filepath.Join(repo, "v1", "bundle.zip"), map[string]string{
		"inner.txt": "hello from v1",
	})
	makeZip(filepath.Join(repo, "v2", "bundle.zip"), map[string]string{
		"inner.txt": "hello from v2, changed enough to not bsdiff trivially",
	})

	patched := buildAndApply(t, repo, nil)

	extracted := t.TempDir()
	require.NoError(t, content.UnpackZip(filepath.Join(patched, "bundle.zip"), extracted))
	data, err := os.ReadFile(filepath.Join(extracted, "inner.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello from v2, changed enough to not bsdiff trivially", string(data))
}

func TestApplyPreservesMetadataDir(t *testing.T) {
	repo := t.TempDir()

	writeFile(t, filepath.Join(repo, "v1", "a.txt"), "hello v1")
	writeFile(t, filepath.Join(repo, "v2", "a.txt"), "hello v2")

	ctx := context.Background()
	_, err := comparetask.Run(ctx, repo, "demo", "v1", "v2", comparetask.WithDeltaFile())
	require.NoError(t, err)

	workingTree := t.TempDir()
	require.NoError(t, copyTree(filepath.Join(repo, "v1"), workingTree))

	writeFile(t, filepath.Join(workingTree, ".bireus", "info.json"), `{"config":{"name":"demo"}}`)
	writeFile(t, filepath.Join(workingTree, ".bireus", "versions.gml"), "digraph bireus {\n}\n")
	writeFile(t, filepath.Join(workingTree, ".bireus", "__temp__", "leftover.tmp"), "scratch")

	downloader := &fakeDownloader{files: map[string][]byte{}}
	task := New(downloader, "https://example.invalid/demo")

	archivePath := filepath.Join(repo, "__patches__", "v1_to_v2.tar.xz")
	require.NoError(t, task.Apply(ctx, archivePath, workingTree))

	data, err := os.ReadFile(filepath.Join(workingTree, ".bireus", "info.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"config":{"name":"demo"}}`, string(data))

	data, err = os.ReadFile(filepath.Join(workingTree, ".bireus", "versions.gml"))
	require.NoError(t, err)
	assert.Equal(t, "digraph bireus {\n}\n", string(data))

	_, err = os.Stat(filepath.Join(workingTree, ".bireus", "__temp__", "leftover.tmp"))
	assert.True(t, os.IsNotExist(err), "scratch subtree should not be carried across the swap")
}

func TestApplyFallsBackOnCorruptBaseFile(t *testing.T) {
	repo := t.TempDir()

	writeFile(t, filepath.Join(repo, "v1", "data.bin"), "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	writeFile(t, filepath.Join(repo, "v2", "data.bin"), "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaab")

	ctx := context.Background()
	_, err := comparetask.Run(ctx, repo, "demo", "v1", "v2", comparetask.WithDeltaFile())
	require.NoError(t, err)

	workingTree := t.TempDir()
	require.NoError(t, copyTree(filepath.Join(repo, "v1"), workingTree))
	// A third party corrupts the base file after the working tree was set up.
	writeFile(t, filepath.Join(workingTree, "data.bin"), "corrupted contents, does not match recorded base_crc")

	targetBytes, err := os.ReadFile(filepath.Join(repo, "v2", "data.bin"))
	require.NoError(t, err)

	downloader := &fakeDownloader{files: map[string][]byte{
		"https://example.invalid/demo/v2/data.bin": targetBytes,
	}}
	task := New(downloader, "https://example.invalid/demo")

	archivePath := filepath.Join(repo, "__patches__", "v1_to_v2.tar.xz")
	require.NoError(t, task.Apply(ctx, archivePath, workingTree))

	patchedBytes, err := os.ReadFile(filepath.Join(workingTree, "data.bin"))
	require.NoError(t, err)
	assert.Equal(t, targetBytes, patchedBytes)
}
