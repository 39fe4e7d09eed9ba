// Package patchtask implements the client-side application of a patch
// archive to a working tree, per spec.md §4.6: unpack, validate protocol,
// recursively apply, verify CRCs, and fall back to a full-file download on
// mismatch.
package patchtask

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/brutus5000/bireus/bierrors"
	"github.com/brutus5000/bireus/content"
	"github.com/brutus5000/bireus/diffmodel"
	"github.com/brutus5000/bireus/logctx"
	"github.com/brutus5000/bireus/transport"
)

// TaskRunner applies one protocol version's patch semantics. Dispatch by
// DiffHead.Protocol is a compile-time table, not a reflection-driven
// registry, mirroring the original's versioned client/patch_tasks/ layout
// without its subclass-registry mechanism.
type TaskRunner interface {
	Run(ctx context.Context, workingRoot, patchRoot, stagingRoot string, head *diffmodel.DiffHead) error
}

var protocolRunners = map[int]func(*Task) TaskRunner{
	diffmodel.SupportedProtocol: func(t *Task) TaskRunner { return &v1Runner{task: t} },
}

// metadataDirName is the working tree's reserved metadata subdirectory
// (info.json, versions.gml, cached patch archives, scratch space).
const metadataDirName = ".bireus"

// tempDirName is metadataDirName's scratch subtree, excluded whenever the
// metadata directory is carried across the staging swap.
const tempDirName = "__temp__"

// Task applies patch archives to a single working tree, using downloader
// for the fallback whole-file recovery path.
type Task struct {
	Downloader transport.Downloader
	// BaseURL is the repository's remote root; fallback downloads fetch
	// <BaseURL>/<target_version>/<relative_path>.
	BaseURL string
}

// New returns a Task wired to the given downloader and remote repository
// root.
func New(downloader transport.Downloader, baseURL string) *Task {
	return &Task{Downloader: downloader, BaseURL: baseURL}
}

// Apply unpacks the patch archive at archivePath and applies it to
// workingRoot in place, via a staging-directory swap: the patched tree is
// assembled alongside the original, then swapped in with two renames so a
// crash mid-patch leaves the working tree fully at the pre- or post-state,
// never a mix (spec.md §4.6's atomicity contract).
func (t *Task) Apply(ctx context.Context, archivePath, workingRoot string) error {
	logger := logctx.GetLogger(ctx)

	tempRoot := filepath.Join(workingRoot, metadataDirName, tempDirName)
	if err := os.MkdirAll(tempRoot, 0o755); err != nil {
		return err
	}

	suffix := rand.Int63()
	extractDir := filepath.Join(tempRoot, fmt.Sprintf("extract-%d", suffix))
	defer os.RemoveAll(extractDir)

	if err := content.UnpackXZTar(archivePath, extractDir); err != nil {
		return err
	}

	head, err := diffmodel.LoadDiffHead(filepath.Join(extractDir, diffmodel.ManifestFileName))
	if err != nil {
		return err
	}

	runnerFactory, ok := protocolRunners[head.Protocol]
	if !ok {
		return &bierrors.ProtocolMismatch{Seen: head.Protocol, Supported: diffmodel.SupportedProtocol}
	}

	logger.Infof("patchtask: applying %s -> %s", head.BaseVersion, head.TargetVersion)

	// The staging and backup directories must live outside workingRoot's own
	// subtree: the final swap renames workingRoot itself, which is invalid
	// if the rename target is nested inside the source.
	parent := filepath.Dir(workingRoot)
	base := filepath.Base(workingRoot)
	stagingDir := filepath.Join(parent, fmt.Sprintf(".%s.staging-%d", base, suffix))
	backupDir := filepath.Join(parent, fmt.Sprintf(".%s.backup-%d", base, suffix))
	defer os.RemoveAll(stagingDir)
	defer os.RemoveAll(backupDir)

	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return err
	}

	// The staging tree starts empty; carry the working tree's existing
	// metadata dir (info.json, versions.gml, cached patch archives) across
	// ahead of the swap, since runner.Run only ever materializes paths from
	// head.Root().Items, which never includes .bireus itself.
	if err := seedStagingMetadata(workingRoot, stagingDir); err != nil {
		return err
	}

	runner := runnerFactory(t)
	if err := runner.Run(ctx, workingRoot, extractDir, stagingDir, head); err != nil {
		return err
	}

	if err := os.Rename(workingRoot, backupDir); err != nil {
		return err
	}
	if err := os.Rename(stagingDir, workingRoot); err != nil {
		// Best effort: restore the original tree so the caller is left at
		// the pre-state rather than with no working tree at all.
		os.Rename(backupDir, workingRoot)
		return err
	}
	os.RemoveAll(backupDir)

	logger.Infof("patchtask: applied %s -> %s", head.BaseVersion, head.TargetVersion)
	return nil
}

// seedStagingMetadata copies workingRoot's metadata dir into stagingDir,
// excluding the scratch subtree, so the staging swap preserves info.json,
// the cached version graph, and cached patch archives. A working tree with
// no metadata dir yet (shouldn't happen in practice, but harmless) is a
// no-op.
func seedStagingMetadata(workingRoot, stagingDir string) error {
	srcMeta := filepath.Join(workingRoot, metadataDirName)
	entries, err := os.ReadDir(srcMeta)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	dstMeta := filepath.Join(stagingDir, metadataDirName)
	if err := os.MkdirAll(dstMeta, 0o755); err != nil {
		return err
	}

	for _, e := range entries {
		if e.Name() == tempDirName {
			continue
		}

		src := filepath.Join(srcMeta, e.Name())
		dst := filepath.Join(dstMeta, e.Name())

		if e.IsDir() {
			if err := copyTree(src, dst); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}

	return nil
}
