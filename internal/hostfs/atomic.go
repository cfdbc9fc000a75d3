package hostfs

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces path with data via a temp file in the same
// directory followed by a rename, so readers never observe a partial
// file. The temp file is fsynced before the rename and the parent
// directory after it.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return writeFileAtomic(path, data, perm, -1, -1)
}

// WriteFileAtomicOwned is WriteFileAtomic with ownership applied to the
// temp file before it is renamed into place, so the target never exists
// with the wrong owner.
func WriteFileAtomicOwned(path string, data []byte, perm os.FileMode, uid, gid int) error {
	return writeFileAtomic(path, data, perm, uid, gid)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode, uid, gid int) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".glsync-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if uid >= 0 || gid >= 0 {
		if err := tmp.Chown(uid, gid); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// EnsureDir creates path (and parents) if absent. An existing directory
// keeps its current mode.
func EnsureDir(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
