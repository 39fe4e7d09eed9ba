package patchtask

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/brutus5000/bireus/bierrors"
	"github.com/brutus5000/bireus/content"
	"github.com/brutus5000/bireus/diffmodel"
)

// v1Runner implements protocol version 1's patch semantics: the recursive
// walk described in spec.md §4.6, staging the result rather than mutating
// workingRoot directly (Task.Apply performs the final swap).
type v1Runner struct {
	task *Task
}

func (r *v1Runner) Run(ctx context.Context, workingRoot, patchRoot, stagingRoot string, head *diffmodel.DiffHead) error {
	root, err := head.Root()
	if err != nil {
		return err
	}
	return r.applyChildren(ctx, workingRoot, patchRoot, stagingRoot, "", root.Items, false, head.TargetVersion)
}

func (r *v1Runner) applyChildren(ctx context.Context, basePath, patchPath, stagingPath, relPath string, items []*diffmodel.DiffItem, insideZip bool, targetVersion string) error {
	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var err error
		switch item.Type {
		case diffmodel.TypeDirectory:
			err = r.applyDirectoryItem(ctx, basePath, patchPath, stagingPath, relPath, item, insideZip, targetVersion)
		case diffmodel.TypeFile:
			err = r.applyFileItem(ctx, basePath, patchPath, stagingPath, relPath, item, insideZip, targetVersion)
		default:
			err = fmt.Errorf("patchtask: unknown item type %q", item.Type)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *v1Runner) applyDirectoryItem(ctx context.Context, basePath, patchPath, stagingPath, relPath string, item *diffmodel.DiffItem, insideZip bool, targetVersion string) error {
	childRel := filepath.Join(relPath, item.Name)

	switch item.Action {
	case diffmodel.ActionDelta:
		newStaging := filepath.Join(stagingPath, item.Name)
		if err := os.MkdirAll(newStaging, 0o755); err != nil {
			return err
		}
		return r.applyChildren(ctx,
			filepath.Join(basePath, item.Name),
			filepath.Join(patchPath, item.Name),
			newStaging,
			childRel, item.Items, insideZip, targetVersion)

	case diffmodel.ActionAdd:
		return copyTree(filepath.Join(patchPath, item.Name), filepath.Join(stagingPath, item.Name))

	case diffmodel.ActionRemove:
		// Omitted from staging: a rebuilt tree simply never gets this entry.
		return nil

	default:
		return fmt.Errorf("patchtask: illegal directory action %q for %s", item.Action, childRel)
	}
}

func (r *v1Runner) applyFileItem(ctx context.Context, basePath, patchPath, stagingPath, relPath string, item *diffmodel.DiffItem, insideZip bool, targetVersion string) error {
	childRel := filepath.Join(relPath, item.Name)
	baseFile := filepath.Join(basePath, item.Name)
	patchFile := filepath.Join(patchPath, item.Name)
	stagingFile := filepath.Join(stagingPath, item.Name)

	switch item.Action {
	case diffmodel.ActionAdd:
		return copyFile(patchFile, stagingFile)

	case diffmodel.ActionRemove:
		return nil

	case diffmodel.ActionUnchanged:
		return copyFile(baseFile, stagingFile)

	case diffmodel.ActionBSDiff:
		return r.applyBSDiff(ctx, baseFile, patchFile, stagingFile, childRel, item, insideZip, targetVersion)

	case diffmodel.ActionZipDelta:
		return r.applyZipDelta(ctx, baseFile, patchFile, stagingFile, childRel, item, insideZip, targetVersion)

	default:
		return fmt.Errorf("patchtask: illegal file action %q for %s", item.Action, childRel)
	}
}

func (r *v1Runner) applyBSDiff(ctx context.Context, baseFile, patchFile, stagingFile, relPath string, item *diffmodel.DiffItem, insideZip bool, targetVersion string) error {
	crcBefore, err := content.CRC32(baseFile)
	if err != nil {
		return err
	}
	if crcBefore != item.BaseCRC {
		return r.onMismatch(ctx, stagingFile, relPath, targetVersion, insideZip, item.BaseCRC, crcBefore)
	}

	baseBytes, err := os.ReadFile(baseFile)
	if err != nil {
		return err
	}
	patchBytes, err := os.ReadFile(patchFile)
	if err != nil {
		return err
	}
	patched, err := content.BSPatch(baseBytes, patchBytes)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(stagingFile), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(stagingFile, patched, 0o644); err != nil {
		return err
	}

	crcAfter, err := content.CRC32(stagingFile)
	if err != nil {
		return err
	}
	if crcAfter != item.TargetCRC {
		return r.onMismatch(ctx, stagingFile, relPath, targetVersion, insideZip, item.TargetCRC, crcAfter)
	}

	return nil
}

func (r *v1Runner) applyZipDelta(ctx context.Context, baseFile, patchFile, stagingFile, relPath string, item *diffmodel.DiffItem, insideZip bool, targetVersion string) error {
	baseTemp, err := os.MkdirTemp("", "bireus-patch-zip-base-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(baseTemp)

	if err := content.UnpackZip(baseFile, baseTemp); err != nil {
		return err
	}

	zipStaging, err := os.MkdirTemp("", "bireus-patch-zip-staging-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(zipStaging)

	err = r.applyChildren(ctx, baseTemp, patchFile, zipStaging, "", item.Items, true, targetVersion)
	if err != nil {
		var mismatch *bierrors.CrcMismatch
		if errors.As(err, &mismatch) {
			// Cannot fall back on individual inner files; the whole zip is
			// fetched instead.
			return r.fallbackDownload(ctx, stagingFile, relPath, targetVersion)
		}
		return err
	}

	if err := os.MkdirAll(filepath.Dir(stagingFile), 0o755); err != nil {
		return err
	}
	return content.PackZip(zipStaging, stagingFile)
}

func (r *v1Runner) onMismatch(ctx context.Context, stagingFile, relPath, targetVersion string, insideZip bool, expected, actual string) error {
	if insideZip {
		return &bierrors.CrcMismatch{File: relPath, Expected: expected, Actual: actual}
	}
	return r.fallbackDownload(ctx, stagingFile, relPath, targetVersion)
}

func (r *v1Runner) fallbackDownload(ctx context.Context, stagingFile, relPath, targetVersion string) error {
	if err := os.MkdirAll(filepath.Dir(stagingFile), 0o755); err != nil {
		return err
	}
	url := r.task.BaseURL + "/" + path.Join(targetVersion, filepath.ToSlash(relPath))
	return r.task.Downloader.Download(ctx, url, stagingFile)
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
