// Package cleanup implements the optional post-transfer sweep that
// deletes destination files with no live source counterpart.
package cleanup

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/mirandadam/hsync/internal/audit"
	"github.com/sirupsen/logrus"
)

// Result summarizes one cleanup pass.
type Result struct {
	Deleted int
	Failed  int
}

// Run walks destDir and deletes every regular file whose counterpart is
// absent from sourceDir at the moment of inspection. This is a live
// filesystem check, not an index lookup, because cleanup may run over
// destinations whose index was pruned or never populated. Directories are
// left alone; per-entry errors are logged and never abort the sweep.
func Run(sourceDir, destDir string, log *logrus.Logger, auditLog *audit.Log) (Result, error) {
	var result Result
	var errs *multierror.Error

	err := filepath.WalkDir(destDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			errs = multierror.Append(errs, walkErr)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(destDir, path)
		if err != nil {
			errs = multierror.Append(errs, err)
			return nil
		}
		sourcePath := filepath.Join(sourceDir, relative)

		if _, err := os.Stat(sourcePath); err == nil {
			return nil
		} else if !os.IsNotExist(err) {
			// An unexpected stat error: be conservative and keep the file.
			errs = multierror.Append(errs, err)
			return nil
		}

		if err := os.Remove(path); err != nil {
			result.Failed++
			errs = multierror.Append(errs, err)
			if log != nil {
				log.WithField("dest", path).Warnf("failed to delete extra file: %v", err)
			}
			return nil
		}

		result.Deleted++
		if log != nil {
			log.WithField("dest", path).Info("deleted extra file")
		}
		if auditLog != nil {
			_ = auditLog.Deleted(path)
		}
		return nil
	})
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	return result, errs.ErrorOrNil()
}
