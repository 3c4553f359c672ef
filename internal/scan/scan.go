// Package scan implements the parallel walk of source and destination
// trees that builds the transfer backlog: it diffs the two trees by
// (mtime, size) and upserts every source file's state into the index
// inside one transaction.
package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mirandadam/hsync/internal/fsutil"
	"github.com/mirandadam/hsync/internal/index"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type destInfo struct {
	modified int64
	size     uint64
}

type sourceInfo struct {
	fsutil.Info
}

// Result summarizes one scan pass.
type Result struct {
	SourceFiles int
	DestFiles   int
	Pending     int
}

// Run walks sourceDir and destDir concurrently, then diffs the two
// resulting maps and upserts every source file's record into idx inside a
// single transaction, per spec.md §4.4.
func Run(ctx context.Context, sourceDir, destDir string, idx *index.Index, log *logrus.Logger) (Result, error) {
	var sourceMap map[string]sourceInfo
	var destMap map[string]destInfo

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sourceMap, err = walkSource(sourceDir)
		return err
	})
	g.Go(func() error {
		var err error
		destMap, err = walkDest(destDir)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, errors.Wrap(err, "scan walk")
	}

	result := Result{SourceFiles: len(sourceMap), DestFiles: len(destMap)}

	tx, err := idx.BeginTx()
	if err != nil {
		return result, err
	}

	for relative, info := range sourceMap {
		sourcePath := filepath.Join(sourceDir, relative)
		destPath := filepath.Join(destDir, relative)

		status := index.StatusPending
		if d, ok := destMap[relative]; ok && d.modified == info.Modified && d.size == info.Size {
			status = index.StatusSynced
		} else {
			result.Pending++
		}

		rec := index.FileRecord{
			SourcePath:   sourcePath,
			DestPath:     destPath,
			CreatedDate:  info.Accessed,
			ChangedDate:  info.Changed,
			ModifiedDate: info.Modified,
			Permissions:  info.Permissions,
			Size:         info.Size,
		}
		if err := tx.Upsert(rec, status); err != nil {
			_ = idx.RollbackTx(tx)
			return result, err
		}
	}

	if err := idx.CommitTx(tx); err != nil {
		return result, err
	}

	if log != nil {
		log.WithFields(logrus.Fields{
			"source_files": result.SourceFiles,
			"dest_files":   result.DestFiles,
			"pending":      result.Pending,
		}).Info("scan complete")
	}

	return result, nil
}

// walkSource builds a relative-path-keyed map of source file metadata.
// Per-entry I/O errors are silently skipped; only a failure to traverse
// at all is returned.
func walkSource(root string) (map[string]sourceInfo, error) {
	out := make(map[string]sourceInfo)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				// The root itself could not be read: the traversal cannot proceed.
				return walkErr
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		info, err := fsutil.Stat(path)
		if err != nil {
			return nil
		}
		out[relative] = sourceInfo{Info: info}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	return out, nil
}

// walkDest builds a relative-path-keyed map of destination (mtime, size).
func walkDest(root string) (map[string]destInfo, error) {
	out := make(map[string]destInfo)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		info, err := fsutil.Stat(path)
		if err != nil {
			return nil
		}
		out[relative] = destInfo{modified: info.Modified, size: info.Size}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	return out, nil
}
