// Package bundle moves the asset cache between machines as a single
// compressed tar archive, for installs without network access.
package bundle

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/cache"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/errdefs"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
)

// Format is the compression applied around the tar stream.
type Format string

const (
	Zstd Format = "zst"
	XZ   Format = "xz"
)

// FormatFromPath picks the format from an archive file name.
func FormatFromPath(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return Zstd, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return XZ, nil
	default:
		return "", fmt.Errorf("unsupported bundle %s: expected .tar.zst or .tar.xz", filepath.Base(path))
	}
}

func compressor(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case Zstd:
		return zstd.NewWriter(w)
	case XZ:
		return xz.NewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported bundle format %q", format)
	}
}

func decompressor(r io.Reader, format Format) (io.Reader, func(), error) {
	switch format {
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported bundle format %q", format)
	}
}

// Export writes every cached file to w and returns how many were written.
func Export(w io.Writer, store *cache.Store, format Format) (int, error) {
	entries, err := store.List()
	if err != nil {
		return 0, err
	}

	cw, err := compressor(w, format)
	if err != nil {
		return 0, err
	}
	tw := tar.NewWriter(cw)

	for _, e := range entries {
		if err := addFile(tw, filepath.Join(store.Root(), e.Name), e); err != nil {
			cw.Close()
			return 0, err
		}
		logger.Logger().Debugf("bundled %s (%d bytes)", e.Name, e.Size)
	}

	if err := tw.Close(); err != nil {
		cw.Close()
		return 0, fmt.Errorf("closing tar stream: %w", err)
	}
	if err := cw.Close(); err != nil {
		return 0, fmt.Errorf("closing %s stream: %w", format, err)
	}
	return len(entries), nil
}

func addFile(tw *tar.Writer, path string, e cache.Entry) error {
	f, err := os.Open(path)
	if err != nil {
		return &errdefs.IOError{Op: "open cache file", Path: path, Err: err}
	}
	defer f.Close()

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     e.Name,
		Mode:     0644,
		Size:     e.Size,
		ModTime:  e.ModTime,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %s: %w", e.Name, err)
	}
	if _, err := io.CopyN(tw, f, e.Size); err != nil {
		return &errdefs.IOError{Op: "read cache file", Path: path, Err: err}
	}
	return nil
}

// Import unpacks a bundle into the cache, replacing entries with the same
// name, and returns how many files were written. Only flat regular files
// whose names are already valid cache keys are accepted.
func Import(r io.Reader, store *cache.Store, format Format) (int, error) {
	if err := store.Ensure(); err != nil {
		return 0, err
	}

	dr, closeFn, err := decompressor(r, format)
	if err != nil {
		return 0, fmt.Errorf("opening %s stream: %w", format, err)
	}
	defer closeFn()

	tr := tar.NewReader(dr)
	imported := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("reading bundle: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			return imported, fmt.Errorf("bundle entry %q: only regular files are allowed", hdr.Name)
		}
		if hdr.Name != cache.Sanitize(hdr.Name) {
			return imported, fmt.Errorf("bundle entry %q: not a valid cache key", hdr.Name)
		}

		if err := writeEntry(store, hdr.Name, tr); err != nil {
			return imported, err
		}
		logger.Logger().Debugf("imported %s (%d bytes)", hdr.Name, hdr.Size)
		imported++
	}
	return imported, nil
}

func writeEntry(store *cache.Store, name string, r io.Reader) (err error) {
	dest := filepath.Join(store.Root(), name)
	tmp, err := os.CreateTemp(store.Root(), "."+name+".import-*")
	if err != nil {
		return &errdefs.IOError{Op: "create temp file", Path: dest, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("extracting %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return &errdefs.IOError{Op: "write cache file", Path: dest, Err: err}
	}
	if err = os.Rename(tmpName, dest); err != nil {
		return &errdefs.IOError{Op: "replace cache file", Path: dest, Err: err}
	}
	return nil
}

// ExportFile writes the cache to the archive at path, choosing the format
// from its extension.
func ExportFile(path string, store *cache.Store) (int, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, &errdefs.IOError{Op: "create archive", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	n, err := Export(tmp, store, format)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = &errdefs.IOError{Op: "write archive", Path: path, Err: cerr}
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, &errdefs.IOError{Op: "replace archive", Path: path, Err: err}
	}
	return n, nil
}

// ImportFile loads the archive at path into the cache.
func ImportFile(path string, store *cache.Store) (int, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, &errdefs.IOError{Op: "open archive", Path: path, Err: err}
	}
	defer f.Close()
	return Import(f, store, format)
}
