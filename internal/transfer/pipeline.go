package transfer

import (
	"context"
	"fmt"

	"github.com/mirandadam/hsync/internal/audit"
	"github.com/mirandadam/hsync/internal/hashsum"
	"github.com/mirandadam/hsync/internal/index"
	"github.com/mirandadam/hsync/internal/ratelimit"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Config bundles everything one pipeline run needs beyond the backlog
// itself.
type Config struct {
	BlockSize     int
	Algorithm     hashsum.Type
	QueueCapacity int
	BandwidthGate *ratelimit.Gate
	Log           *logrus.Logger
	Audit         *audit.Log
}

// Run drives one producer + one consumer over a fresh bounded queue until
// the backlog is exhausted or either side fails. The first error from
// either goroutine is returned; a panic in either is recovered and
// surfaced the same way, matching the "thread panic = join failure"
// contract of spec.md §5/§7.
func Run(ctx context.Context, pending []index.FileRecord, idx *index.Index, cfg Config) error {
	queue := make(chan Block, cfg.QueueCapacity)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		defer close(queue)
		defer recoverInto(&err)
		p := &Producer{
			Pending:   pending,
			BlockSize: cfg.BlockSize,
			Algorithm: cfg.Algorithm,
			Out:       queue,
			Log:       cfg.Log,
			Audit:     cfg.Audit,
		}
		return p.Run(gctx)
	})

	g.Go(func() (err error) {
		defer recoverInto(&err)
		c := &Consumer{
			In:    queue,
			Index: idx,
			Gate:  cfg.BandwidthGate,
			Audit: cfg.Audit,
		}
		return c.Run()
	})

	return g.Wait()
}

// recoverInto converts a panic in the calling goroutine into an error
// assigned to *errp, if one occurs.
func recoverInto(errp *error) {
	if r := recover(); r != nil {
		*errp = fmt.Errorf("pipeline goroutine panicked: %v", r)
	}
}
