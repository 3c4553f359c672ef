// Package engine implements the orchestrator: the startup mode decision
// (resume vs. fresh scan), the retry loop around the transfer pipeline,
// and the optional cleanup pass.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mirandadam/hsync/internal/audit"
	"github.com/mirandadam/hsync/internal/cleanup"
	"github.com/mirandadam/hsync/internal/hashsum"
	"github.com/mirandadam/hsync/internal/index"
	"github.com/mirandadam/hsync/internal/ratelimit"
	"github.com/mirandadam/hsync/internal/scan"
	"github.com/mirandadam/hsync/internal/transfer"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config is one invocation's full set of options, corresponding directly
// to the CLI flags in spec.md §6.
type Config struct {
	SourceDir string
	DestDir   string

	Index *index.Index
	Log   *logrus.Logger
	Audit *audit.Log

	Algorithm            hashsum.Type
	BlockSize            int
	QueueCapacity        int
	BandwidthLimit       uint64 // bytes/sec, 0 = unlimited
	RetryAttempts        int
	RetryIntervalSeconds int
	DeleteExtras         bool
	Rescan               bool

	// sleep is overridable in tests so the retry loop doesn't actually
	// block for RetryIntervalSeconds.
	sleep func(time.Duration)
}

// Run executes one full invocation: mode decision, scan if needed, the
// transfer retry loop, and cleanup if enabled.
func Run(ctx context.Context, cfg Config) error {
	sleep := cfg.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	shouldScan, err := decideShouldScan(cfg)
	if err != nil {
		return err
	}

	if shouldScan {
		if cfg.Rescan {
			// rescan means "re-observe the filesystem", not "re-transfer the
			// known set": mark every existing row pending first (preserving
			// hashes) so stale rows not revisited by this scan still surface
			// as pending, then unconditionally re-walk both trees below.
			if err := cfg.Index.ResetForRescan(); err != nil {
				return err
			}
		}

		result, err := scan.Run(ctx, cfg.SourceDir, cfg.DestDir, cfg.Index, cfg.Log)
		if err != nil {
			return err
		}
		if cfg.Log != nil {
			cfg.Log.WithFields(logrus.Fields{
				"source_files": result.SourceFiles,
				"dest_files":   result.DestFiles,
				"pending":      result.Pending,
			}).Info("scan finished")
		}

		if result.Pending == 0 && !cfg.DeleteExtras {
			return nil
		}
	}

	if err := runTransferWithRetry(ctx, cfg, sleep); err != nil {
		return err
	}

	if cfg.DeleteExtras {
		res, err := cleanup.Run(cfg.SourceDir, cfg.DestDir, cfg.Log, cfg.Audit)
		if cfg.Log != nil {
			cfg.Log.WithFields(logrus.Fields{
				"deleted": res.Deleted,
				"failed":  res.Failed,
			}).Info("cleanup finished")
			// Per-entry cleanup errors are reported but never fail the run.
			if err != nil {
				cfg.Log.WithError(err).Warn("cleanup skipped some entries")
			}
		}
	}

	return nil
}

// decideShouldScan implements spec.md §4.7's startup decision exactly:
// --rescan always scans; otherwise a non-empty backlog means resume
// (skip scan); an empty backlog means scan.
func decideShouldScan(cfg Config) (bool, error) {
	if cfg.Rescan {
		return true, nil
	}
	pending, err := cfg.Index.PendingCount()
	if err != nil {
		return false, err
	}
	return pending == 0, nil
}

func runTransferWithRetry(ctx context.Context, cfg Config, sleep func(time.Duration)) error {
	gate := ratelimit.New(cfg.BandwidthLimit)

	var lastErr error
	for attempt := 1; attempt <= cfg.RetryAttempts; attempt++ {
		pending, err := cfg.Index.PendingCount()
		if err != nil {
			return err
		}
		if pending == 0 {
			lastErr = nil
			break
		}

		if attempt > 1 {
			msg := fmt.Sprintf("retry attempt %d/%d after error: %v (waiting %ds)",
				attempt, cfg.RetryAttempts, lastErr, cfg.RetryIntervalSeconds)
			if cfg.Log != nil {
				cfg.Log.Warn(msg)
			}
			if cfg.Audit != nil {
				_ = cfg.Audit.Line(msg)
			}
			sleep(time.Duration(cfg.RetryIntervalSeconds) * time.Second)
		}

		records, err := cfg.Index.ListPending()
		if err != nil {
			return err
		}

		lastErr = transfer.Run(ctx, records, cfg.Index, transfer.Config{
			BlockSize:     cfg.BlockSize,
			Algorithm:     cfg.Algorithm,
			QueueCapacity: cfg.QueueCapacity,
			BandwidthGate: gate,
			Log:           cfg.Log,
			Audit:         cfg.Audit,
		})
		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		pending, err := cfg.Index.PendingCount()
		if err != nil {
			return err
		}
		if pending > 0 {
			msg := fmt.Sprintf("transfer failed after %d attempts: %v", cfg.RetryAttempts, lastErr)
			if cfg.Log != nil {
				cfg.Log.Error(msg)
			}
			if cfg.Audit != nil {
				_ = cfg.Audit.Line(msg)
			}
			return errors.Wrapf(lastErr, "transfer failed after %d attempts", cfg.RetryAttempts)
		}
	}

	return nil
}
