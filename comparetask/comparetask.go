// Package comparetask implements the server-side recursive structural diff
// between two version trees and the patch archive that carries it, per
// spec.md §4.3. The walk order is a deterministic union of base/target
// entry names, so re-running CompareTask on identical inputs reproduces a
// byte-identical manifest (spec.md §8's determinism property).
package comparetask

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/brutus5000/bireus/content"
	"github.com/brutus5000/bireus/diffmodel"
	"github.com/brutus5000/bireus/logctx"
)

// Progress describes one DiffItem as it is produced, for an optional
// caller-supplied reporter. BiReUS's core never renders progress itself
// (spec.md §1 scopes notification/progress reporting out) — it only offers
// the callback contract.
type Progress struct {
	Path   string
	Action diffmodel.Action
}

// Option configures a Run invocation.
type Option func(*options)

type options struct {
	isZipDelta     bool
	writeDeltaFile bool
	progress       func(Progress)
}

// WithZipDelta marks the comparison as the recursive sub-compare run inside
// a zip file, per spec.md §4.3 case 4. Not meant to be set by top-level
// callers.
func WithZipDelta() Option {
	return func(o *options) { o.isZipDelta = true }
}

// WithDeltaFile requests that a patch archive be written to
// <repo>/__patches__/<base>_to_<target>.tar.xz.
func WithDeltaFile() Option {
	return func(o *options) { o.writeDeltaFile = true }
}

// WithProgress registers a callback fired once per DiffItem produced.
func WithProgress(fn func(Progress)) Option {
	return func(o *options) { o.progress = fn }
}

// Run compares the base and target version subdirectories of repoPath and
// returns the resulting DiffHead. When WithDeltaFile is set, it also writes
// the patch archive to <repoPath>/__patches__/<base>_to_<target>.tar.xz.
func Run(ctx context.Context, repoPath, name, base, target string, opts ...Option) (*diffmodel.DiffHead, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	baseRoot := filepath.Join(repoPath, base)
	targetRoot := filepath.Join(repoPath, target)

	var deltaRoot string
	if o.writeDeltaFile {
		deltaRoot = filepath.Join(repoPath, "__patches__", fmt.Sprintf("%s_to_%s", base, target))
		if err := os.RemoveAll(deltaRoot); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(deltaRoot, 0o755); err != nil {
			return nil, err
		}
		defer os.RemoveAll(deltaRoot)
	}

	children, err := diffDirChildren(ctx, baseRoot, targetRoot, deltaRoot, "", o)
	if err != nil {
		return nil, err
	}

	root := &diffmodel.DiffItem{
		Type:   diffmodel.TypeDirectory,
		Name:   "",
		Action: diffmodel.ActionDelta,
		Items:  children,
	}

	if o.isZipDelta {
		// With WithZipDelta the head's Items are the children themselves,
		// with no synthetic root, and no patch archive is written. This
		// package's own zipdelta handling (diffZipDelta) does not go
		// through Run; it calls diffDirChildren directly.
		return &diffmodel.DiffHead{
			Repository:    name,
			BaseVersion:   base,
			TargetVersion: target,
			Protocol:      diffmodel.SupportedProtocol,
			Items:         children,
		}, nil
	}

	head := &diffmodel.DiffHead{
		Repository:    name,
		BaseVersion:   base,
		TargetVersion: target,
		Protocol:      diffmodel.SupportedProtocol,
		Items:         []*diffmodel.DiffItem{root},
	}

	if o.writeDeltaFile {
		if err := diffmodel.WriteDiffHead(head, filepath.Join(deltaRoot, diffmodel.ManifestFileName)); err != nil {
			return nil, err
		}

		archivePath := filepath.Join(repoPath, "__patches__", fmt.Sprintf("%s_to_%s.tar.xz", base, target))
		if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
			return nil, err
		}
		if err := content.PackXZTar(deltaRoot, archivePath); err != nil {
			return nil, err
		}

		logctx.GetLogger(ctx).Infof("comparetask: wrote patch archive %s", archivePath)
	}

	return head, nil
}

func diffDirChildren(ctx context.Context, baseDir, targetDir, deltaDir, relPath string, o *options) ([]*diffmodel.DiffItem, error) {
	names, err := unionEntryNames(baseDir, targetDir)
	if err != nil {
		return nil, err
	}

	items := make([]*diffmodel.DiffItem, 0, len(names))
	for _, name := range names {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		produced, err := diffEntry(ctx, baseDir, targetDir, deltaDir, relPath, name, o)
		if err != nil {
			return nil, err
		}
		items = append(items, produced...)

		if o.progress != nil {
			for _, item := range produced {
				o.progress(Progress{Path: filepath.ToSlash(filepath.Join(relPath, name)), Action: item.Action})
			}
		}
	}

	return items, nil
}

// entryKind classifies one side of a comparison.
type entryKind int

const (
	kindMissing entryKind = iota
	kindFile
	kindDirectory
)

func classify(dir, name string) (entryKind, error) {
	p := filepath.Join(dir, name)
	info, err := os.Lstat(p)
	if os.IsNotExist(err) {
		return kindMissing, nil
	}
	if err != nil {
		return kindMissing, err
	}
	switch {
	case info.IsDir():
		return kindDirectory, nil
	case info.Mode().IsRegular():
		return kindFile, nil
	default:
		return kindMissing, content.ErrUnsupportedFileType{Path: p}
	}
}

// diffEntry diffs base/target's `name` child of the directory currently
// being walked (relPath), returning one DiffItem normally, or two when the
// entry changed kind between base and target (file<->directory), per
// spec.md §8's boundary behavior for such transitions.
func diffEntry(ctx context.Context, baseDir, targetDir, deltaDir, relPath, name string, o *options) ([]*diffmodel.DiffItem, error) {
	baseKind, err := classify(baseDir, name)
	if err != nil {
		return nil, err
	}
	targetKind, err := classify(targetDir, name)
	if err != nil {
		return nil, err
	}

	childRel := filepath.Join(relPath, name)

	if baseKind != kindMissing && targetKind != kindMissing && baseKind != targetKind {
		removed, err := diffEntryAsKind(ctx, baseDir, targetDir, deltaDir, relPath, name, baseKind, kindMissing, o)
		if err != nil {
			return nil, err
		}
		added, err := diffEntryAsKind(ctx, baseDir, targetDir, deltaDir, relPath, name, kindMissing, targetKind, o)
		if err != nil {
			return nil, err
		}
		return append(removed, added...), nil
	}

	item, err := diffEntryAsKind(ctx, baseDir, targetDir, deltaDir, relPath, name, baseKind, targetKind, o)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("comparetask: no item produced for %s", childRel)
	}
	return []*diffmodel.DiffItem{item}, nil
}

func diffEntryAsKind(ctx context.Context, baseDir, targetDir, deltaDir, relPath, name string, baseKind, targetKind entryKind, o *options) ([]*diffmodel.DiffItem, error) {
	if baseKind == kindDirectory || targetKind == kindDirectory {
		item, err := diffDirectory(ctx, baseDir, targetDir, deltaDir, relPath, name, baseKind, targetKind, o)
		if err != nil {
			return nil, err
		}
		return []*diffmodel.DiffItem{item}, nil
	}
	item, err := diffFile(baseDir, targetDir, deltaDir, relPath, name, baseKind, targetKind, o)
	if err != nil {
		return nil, err
	}
	return []*diffmodel.DiffItem{item}, nil
}

func diffDirectory(ctx context.Context, baseDir, targetDir, deltaDir, relPath, name string, baseKind, targetKind entryKind, o *options) (*diffmodel.DiffItem, error) {
	baseSub := filepath.Join(baseDir, name)
	targetSub := filepath.Join(targetDir, name)
	childRel := filepath.Join(relPath, name)

	switch {
	case baseKind == kindDirectory && targetKind == kindMissing:
		children, err := informationalTree(baseSub, diffmodel.ActionRemove)
		if err != nil {
			return nil, err
		}
		return &diffmodel.DiffItem{Type: diffmodel.TypeDirectory, Name: name, Action: diffmodel.ActionRemove, Items: children}, nil

	case baseKind == kindMissing && targetKind == kindDirectory:
		if deltaDir != "" {
			dest := filepath.Join(deltaDir, childRel)
			if err := copyTree(targetSub, dest); err != nil {
				return nil, err
			}
		}
		children, err := informationalTree(targetSub, diffmodel.ActionAdd)
		if err != nil {
			return nil, err
		}
		return &diffmodel.DiffItem{Type: diffmodel.TypeDirectory, Name: name, Action: diffmodel.ActionAdd, Items: children}, nil

	case baseKind == kindDirectory && targetKind == kindDirectory:
		children, err := diffDirChildren(ctx, baseSub, targetSub, deltaDir, childRel, o)
		if err != nil {
			return nil, err
		}
		return &diffmodel.DiffItem{Type: diffmodel.TypeDirectory, Name: name, Action: diffmodel.ActionDelta, Items: children}, nil

	default:
		return nil, fmt.Errorf("comparetask: invalid directory transition for %s", childRel)
	}
}

func diffFile(baseDir, targetDir, deltaDir, relPath, name string, baseKind, targetKind entryKind, o *options) (*diffmodel.DiffItem, error) {
	basePath := filepath.Join(baseDir, name)
	targetPath := filepath.Join(targetDir, name)
	childRel := filepath.Join(relPath, name)

	switch {
	case baseKind == kindMissing && targetKind == kindFile:
		crc, err := content.CRC32(targetPath)
		if err != nil {
			return nil, err
		}
		if deltaDir != "" {
			if err := copyFile(targetPath, filepath.Join(deltaDir, childRel)); err != nil {
				return nil, err
			}
		}
		return &diffmodel.DiffItem{Type: diffmodel.TypeFile, Name: name, Action: diffmodel.ActionAdd, TargetCRC: crc}, nil

	case baseKind == kindFile && targetKind == kindMissing:
		crc, err := content.CRC32(basePath)
		if err != nil {
			return nil, err
		}
		return &diffmodel.DiffItem{Type: diffmodel.TypeFile, Name: name, Action: diffmodel.ActionRemove, BaseCRC: crc}, nil

	case baseKind == kindFile && targetKind == kindFile:
		equal, err := content.FilesEqual(basePath, targetPath)
		if err != nil {
			return nil, err
		}
		if equal {
			crc, err := content.CRC32(basePath)
			if err != nil {
				return nil, err
			}
			return &diffmodel.DiffItem{Type: diffmodel.TypeFile, Name: name, Action: diffmodel.ActionUnchanged, BaseCRC: crc, TargetCRC: crc}, nil
		}

		isZip, err := content.IsZip(basePath)
		if err != nil {
			return nil, err
		}
		if isZip {
			return diffZipDelta(basePath, targetPath, deltaDir, relPath, name, o)
		}

		return diffBSDiff(basePath, targetPath, deltaDir, childRel, name)

	default:
		return nil, fmt.Errorf("comparetask: invalid file transition for %s", childRel)
	}
}

func diffBSDiff(basePath, targetPath, deltaDir, childRel, name string) (*diffmodel.DiffItem, error) {
	baseCRC, err := content.CRC32(basePath)
	if err != nil {
		return nil, err
	}
	targetCRC, err := content.CRC32(targetPath)
	if err != nil {
		return nil, err
	}

	if deltaDir != "" {
		baseBytes, err := os.ReadFile(basePath)
		if err != nil {
			return nil, err
		}
		targetBytes, err := os.ReadFile(targetPath)
		if err != nil {
			return nil, err
		}
		patch, err := content.BSDiff(baseBytes, targetBytes)
		if err != nil {
			return nil, err
		}
		dest := filepath.Join(deltaDir, childRel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(dest, patch, 0o644); err != nil {
			return nil, err
		}
	}

	return &diffmodel.DiffItem{Type: diffmodel.TypeFile, Name: name, Action: diffmodel.ActionBSDiff, BaseCRC: baseCRC, TargetCRC: targetCRC}, nil
}

func diffZipDelta(basePath, targetPath, deltaDir, relPath, name string, o *options) (*diffmodel.DiffItem, error) {
	baseTemp, err := os.MkdirTemp("", "bireus-zip-base-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(baseTemp)

	targetTemp, err := os.MkdirTemp("", "bireus-zip-target-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(targetTemp)

	if err := content.UnpackZip(basePath, baseTemp); err != nil {
		return nil, err
	}
	if err := content.UnpackZip(targetPath, targetTemp); err != nil {
		return nil, err
	}

	var childDeltaDir string
	if deltaDir != "" {
		childDeltaDir = filepath.Join(deltaDir, relPath, name)
		if err := os.MkdirAll(childDeltaDir, 0o755); err != nil {
			return nil, err
		}
	}

	nestedOpts := &options{isZipDelta: true, writeDeltaFile: o.writeDeltaFile, progress: o.progress}
	children, err := diffDirChildren(context.Background(), baseTemp, targetTemp, childDeltaDir, "", nestedOpts)
	if err != nil {
		return nil, err
	}

	return &diffmodel.DiffItem{
		Type:      diffmodel.TypeFile,
		Name:      name,
		Action:    diffmodel.ActionZipDelta,
		BaseCRC:   content.ZipFileCRC,
		TargetCRC: content.ZipFileCRC,
		Items:     children,
	}, nil
}

func unionEntryNames(baseDir, targetDir string) ([]string, error) {
	set := make(map[string]bool)

	for _, dir := range []string{baseDir, targetDir} {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			set[e.Name()] = true
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// informationalTree builds DiffItems describing an entire subtree without
// writing any payload — used for the children of an `add`/`remove`
// directory item, which spec.md §4.3 calls "purely informational" since the
// wholesale add/remove at the parent already carries the execution intent.
func informationalTree(dir string, action diffmodel.Action) ([]*diffmodel.DiffItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	items := make([]*diffmodel.DiffItem, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		info, err := os.Lstat(p)
		if err != nil {
			return nil, err
		}

		if info.IsDir() {
			children, err := informationalTree(p, action)
			if err != nil {
				return nil, err
			}
			items = append(items, &diffmodel.DiffItem{Type: diffmodel.TypeDirectory, Name: name, Action: action, Items: children})
			continue
		}

		if !info.Mode().IsRegular() {
			return nil, content.ErrUnsupportedFileType{Path: p}
		}

		item := &diffmodel.DiffItem{Type: diffmodel.TypeFile, Name: name, Action: action}
		if action == diffmodel.ActionAdd {
			crc, err := content.CRC32(p)
			if err != nil {
				return nil, err
			}
			item.TargetCRC = crc
		} else {
			crc, err := content.CRC32(p)
			if err != nil {
				return nil, err
			}
			item.BaseCRC = crc
		}
		items = append(items, item)
	}

	return items, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !info.Mode().IsRegular() {
			return content.ErrUnsupportedFileType{Path: p}
		}
		return copyFile(p, target)
	})
}
