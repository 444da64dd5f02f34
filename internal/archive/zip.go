package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"

	"github.com/kebairia/mongocli/internal/fsutil"
)

// countingWriter tracks how many bytes have been flushed to the underlying
// stream. The final count is the authoritative archive size: reading it after
// the zip writer closes avoids racing a filesystem stat against stream
// completion.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// BuildZip streams every file under srcDir into a single zip archive at
// destPath, compressed at maximum level. Relative paths inside srcDir are
// preserved; the srcDir name itself is not part of entry names. Parent
// directories of destPath are created as needed. Returns the archive's final
// byte count.
func BuildZip(srcDir, destPath string) (int64, error) {
	if err := fsutil.EnsureDirectoryExist(filepath.Dir(destPath)); err != nil {
		return 0, err
	}

	outFile, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create archive file %q: %w", destPath, err)
	}
	defer outFile.Close()

	counter := &countingWriter{w: outFile}
	zw := zip.NewWriter(counter)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A path that vanished between listing and visiting is benign.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		zw.Close()
		return 0, fmt.Errorf("archive %q: %w", srcDir, walkErr)
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finalize archive: %w", err)
	}
	if err := outFile.Sync(); err != nil {
		return 0, fmt.Errorf("flush archive: %w", err)
	}
	return counter.n, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		// File removed mid-scan; skip it like a vanished walk entry.
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer src.Close()

	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if info, err := src.Stat(); err == nil {
		hdr.Modified = info.ModTime()
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create entry %q: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write entry %q: %w", name, err)
	}
	return nil
}
