// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"fmt"
	"path/filepath"
	"syscall"
)

// LockFileName is the name of the lock file created by LockDirectory.
const LockFileName = "~lock"

// LockFile marks the exclusive ownership of a resource shared between
// processes by the existence of a file. The file is removed on Release.
// Locks not released by a process remain in place after the process ended.
type LockFile interface {
	// Release removes the lock file. A lock may only be released once.
	Release() error
	// Valid reports whether the lock is still held.
	Valid() bool
}

type lockFile struct {
	path string
	fd   int
}

// CreateLockFile atomically creates the file with the given path. It fails
// if the file already exists.
func CreateLockFile(path string) (LockFile, error) {
	fd, err := syscall.Open(path, syscall.O_CREAT|syscall.O_EXCL|syscall.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	return &lockFile{path: path, fd: fd}, nil
}

// LockDirectory acquires the lock guarding the given directory, which is
// expected to exist.
func LockDirectory(dir string) (LockFile, error) {
	lock, err := CreateLockFile(filepath.Join(dir, LockFileName))
	if err != nil {
		return nil, fmt.Errorf("directory %s is in use by another process: %w", dir, err)
	}
	return lock, nil
}

func (f *lockFile) Valid() bool {
	return f.fd != 0
}

func (f *lockFile) Release() error {
	if f.fd == 0 {
		return fmt.Errorf("lock %s was already released", f.path)
	}
	if err := syscall.Close(f.fd); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", f.path, err)
	}
	f.fd = 0
	if err := syscall.Unlink(f.path); err != nil {
		return fmt.Errorf("failed to remove lock %s: %w", f.path, err)
	}
	return nil
}
