package content

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ulikunitz/xz"
)

// PackXZTar walks dir and writes an xz-compressed tar archive of its
// contents to archivePath. Entries are emitted in lexicographic path order
// so the resulting archive is byte-reproducible for identical inputs.
func PackXZTar(dir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	xw, err := xz.NewWriter(out)
	if err != nil {
		return err
	}
	defer xw.Close()

	tw := tar.NewWriter(xw)
	defer tw.Close()

	var paths []string
	err = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(paths)

	for _, p := range paths {
		info, err := os.Lstat(p)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if info.IsDir() {
			hdr.Name += "/"
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			continue
		}

		if !info.Mode().IsRegular() {
			return ErrUnsupportedFileType{Path: p}
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if err := copyFileInto(tw, p); err != nil {
			return err
		}
	}

	return nil
}

func copyFileInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// UnpackXZTar extracts the xz-tar archive at archivePath into dir, creating
// dir if necessary.
func UnpackXZTar(archivePath, dir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer in.Close()

	xr, err := xz.NewReader(in)
	if err != nil {
		return err
	}

	tr := tar.NewReader(xr)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(dir, filepath.FromSlash(hdr.Name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		default:
			return ErrUnsupportedFileType{Path: hdr.Name}
		}
	}
}

// ErrUnsupportedFileType is returned when a directory walk encounters
// anything other than a regular file or directory (symlinks, devices, etc).
type ErrUnsupportedFileType struct {
	Path string
}

func (e ErrUnsupportedFileType) Error() string {
	return "content: unsupported file type at " + e.Path
}
