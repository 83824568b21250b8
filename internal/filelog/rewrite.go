// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package filelog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BackupSuffix is appended to a log path for the pre-rewrite copy.
const BackupSuffix = ".backup"

// BackupPath returns the backup sibling of a log file.
func BackupPath(path string) string {
	return path + BackupSuffix
}

// Snapshot reads the whole file once and returns its content. The length
// of the result is the offset Rewrite resumes copying from.
func Snapshot(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Rewrite atomically replaces path with the kept blocks followed by any
// bytes appended to path after the first readSize bytes were read. The new
// content is written to a temp file in the same directory, fsynced and
// renamed over the original.
func Rewrite(path string, kept []Block, readSize int64) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return replaceAtomically(path, st.Mode().Perm(), func(w io.Writer) error {
		for _, b := range kept {
			if _, err := w.Write(b.Data); err != nil {
				return err
			}
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		if _, err := src.Seek(readSize, io.SeekStart); err != nil {
			return err
		}
		_, err = io.Copy(w, src)
		return err
	})
}

// CopyFile copies src to dst atomically, preserving the mode and
// modification time of src.
func CopyFile(src, dst string) error {
	st, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	err = replaceAtomically(dst, st.Mode().Perm(), func(w io.Writer) error {
		in, err := os.Open(src)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		return err
	}
	return os.Chtimes(dst, st.ModTime(), st.ModTime())
}

// WriteBackup stores data as the backup of path, with path's mode and
// modification time.
func WriteBackup(path string, data []byte) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	dst := BackupPath(path)
	err = replaceAtomically(dst, st.Mode().Perm(), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return err
	}
	return os.Chtimes(dst, st.ModTime(), st.ModTime())
}

// Restore puts the backup of path back in place.
func Restore(path string) error {
	if err := CopyFile(BackupPath(path), path); err != nil {
		return fmt.Errorf("restore %s from backup: %w", path, err)
	}
	return nil
}

// RemoveBackup deletes the backup of path if present.
func RemoveBackup(path string) error {
	if err := os.Remove(BackupPath(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// replaceAtomically writes through fill into a temp file next to dst and
// renames it over dst. On any error the temp file is removed and dst is
// untouched.
func replaceAtomically(dst string, perm os.FileMode, fill func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", dst, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = fill(tmp); err != nil {
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}
