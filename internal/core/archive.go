package core

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// BuildArchive zips paths into a bundle called name. Directories contribute
// their contents relative to themselves; files are stored under their base name.
func BuildArchive(name string, paths []string) (*Bundle, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input paths")
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	seen := map[string]bool{}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			if err := addFile(zw, seen, root, filepath.Base(root), info); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			return addFile(zw, seen, path, rel, fi)
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return &Bundle{Name: name, Contents: buf.Bytes()}, nil
}

func addFile(zw *zip.Writer, seen map[string]bool, path, name string, info fs.FileInfo) error {
	name = filepath.ToSlash(name)
	if seen[name] {
		return fmt.Errorf("duplicate archive entry %s", name)
	}
	seen[name] = true

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", path, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}

// Checksum returns the hex SHA-256 of the bundle contents.
func (b *Bundle) Checksum() string {
	sum := sha256.Sum256(b.Contents)
	return hex.EncodeToString(sum[:])
}
