// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"os"
	"path/filepath"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// FilesUnder walks root (a single file, or a directory tree) and builds
// the TransactionFile rows recorded for the input package, even on a
// later transaction failure.
func FilesUnder(root string) ([]TransactionFile, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.FSError)
	}
	if !info.IsDir() {
		return []TransactionFile{fileRecord(root, info)}, nil
	}

	var out []TransactionFile
	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsPermission(walkErr) || os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		out = append(out, fileRecord(path, info))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.FSError)
	}
	return out, nil
}

func fileRecord(path string, info os.FileInfo) TransactionFile {
	uid, gid, _ := fileOwnership(info)
	return TransactionFile{
		Path: path,
		Size: info.Size(),
		UID:  uid,
		GID:  gid,
		Mode: uint32(info.Mode()),
	}
}
