package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// fileRecord is one file found under the source root.
type fileRecord struct {
	Path string // absolute path on disk
	Rel  string // slash separated path relative to the source root
}

// listFiles returns every regular file under root in lexical order.
// A symlinked root is resolved first. Below the root, symlinks are not
// followed into directories; a symlink to a regular file is listed.
func listFiles(root string) ([]fileRecord, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &OpError{Op: "list", Path: root, Kind: FilesystemError, Err: err}
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, &OpError{Op: "list", Path: root, Kind: FilesystemError, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, &OpError{Op: "list", Path: root, Kind: FilesystemError, Err: err}
	}
	if !info.IsDir() {
		return nil, &OpError{Op: "list", Path: root, Kind: FilesystemError, Err: fmt.Errorf("not a directory")}
	}

	var files []fileRecord
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !regularFile(p, d) {
			return nil
		}

		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		files = append(files, fileRecord{Path: p, Rel: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, &OpError{Op: "list", Path: root, Kind: FilesystemError, Err: err}
	}

	return files, nil
}

func regularFile(p string, d fs.DirEntry) bool {
	t := d.Type()
	if t.IsRegular() {
		return true
	}
	if t&fs.ModeSymlink == 0 {
		return false
	}
	target, err := os.Stat(p)
	return err == nil && target.Mode().IsRegular()
}
