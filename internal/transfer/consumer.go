package transfer

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mirandadam/hsync/internal/audit"
	"github.com/mirandadam/hsync/internal/index"
	"github.com/mirandadam/hsync/internal/ratelimit"
	"github.com/pkg/errors"
)

// Consumer writes each received block to its destination offset, paces
// itself through a bandwidth Gate, and on a file's terminal block restores
// its mtime/atime, marks it synced in the index, and writes an audit
// entry. A write error is fatal to the whole pipeline run: the caller
// tears down and the orchestrator retries.
type Consumer struct {
	In    <-chan Block
	Index *index.Index
	Gate  *ratelimit.Gate
	Audit *audit.Log
}

// Run drains In until it is closed, or until a write fails.
func (c *Consumer) Run() error {
	for blk := range c.In {
		if err := c.writeBlock(blk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) writeBlock(blk Block) error {
	if err := os.MkdirAll(filepath.Dir(blk.DestPath), 0755); err != nil {
		return errors.Wrapf(err, "create destination directory for %q", blk.DestPath)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if blk.Offset == 0 {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(blk.DestPath, flags, 0644)
	if err != nil {
		return errors.Wrapf(err, "open destination %q", blk.DestPath)
	}
	defer f.Close()

	if _, err := f.WriteAt(blk.Data, int64(blk.Offset)); err != nil {
		return errors.Wrapf(err, "write destination %q at offset %d", blk.DestPath, blk.Offset)
	}

	c.Gate.Advance(len(blk.Data))

	if !blk.IsLast {
		return nil
	}

	mtime := time.Unix(blk.ModifiedDate, 0)
	atime := time.Unix(blk.AccessDate, 0)
	if err := os.Chtimes(blk.DestPath, atime, mtime); err != nil {
		return errors.Wrapf(err, "restore timestamps on %q", blk.DestPath)
	}

	if err := c.Index.MarkSynced(blk.SourcePath, blk.FileHash); err != nil {
		return errors.Wrapf(err, "mark %q synced", blk.SourcePath)
	}

	if c.Audit != nil {
		if err := c.Audit.Transferred(blk.SourcePath, blk.DestPath, blk.FileHash); err != nil {
			return errors.Wrap(err, "write audit entry")
		}
	}

	return nil
}
