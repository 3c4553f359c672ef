package transfer

import (
	"context"
	"io"
	"os"

	"github.com/mirandadam/hsync/internal/audit"
	"github.com/mirandadam/hsync/internal/fsutil"
	"github.com/mirandadam/hsync/internal/hashsum"
	"github.com/mirandadam/hsync/internal/index"
	"github.com/sirupsen/logrus"
)

// Producer reads pending records one at a time, splits each into blocks,
// and sends them to Out. A file that is missing or unreadable at transfer
// time is logged as a skip and left pending; it does not abort the run.
type Producer struct {
	Pending   []index.FileRecord
	BlockSize int
	Algorithm hashsum.Type
	Out       chan<- Block
	Log       *logrus.Logger
	Audit     *audit.Log
}

// Run processes every pending record in order, sending blocks to Out. It
// does not close Out; the caller owns that once Run returns.
func (p *Producer) Run(ctx context.Context) error {
	for _, rec := range p.Pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (p *Producer) processRecord(ctx context.Context, rec index.FileRecord) error {
	info, err := fsutil.Stat(rec.SourcePath)
	if err != nil {
		reason := err.Error()
		if os.IsNotExist(err) {
			reason = "source file no longer exists"
		}
		p.logSkip(rec.SourcePath, reason)
		return nil
	}

	hasher, err := hashsum.New(p.Algorithm)
	if err != nil {
		return err
	}

	if info.Size == 0 {
		return p.send(ctx, Block{
			SourcePath:   rec.SourcePath,
			DestPath:     rec.DestPath,
			ModifiedDate: info.Modified,
			AccessDate:   info.Accessed,
			ChangedDate:  info.Changed,
			Permissions:  info.Permissions,
			FileSize:     0,
			Offset:       0,
			IsLast:       true,
			FileHash:     hasher.FinalizeHex(),
			Data:         []byte{},
		})
	}

	f, err := os.Open(rec.SourcePath)
	if err != nil {
		p.logSkip(rec.SourcePath, err.Error())
		return nil
	}
	defer f.Close()

	buf := make([]byte, p.BlockSize)
	var offset uint64
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			hasher.Update(chunk)

			isLast := offset+uint64(n) == info.Size
			blk := Block{
				Data:         chunk,
				Offset:       offset,
				SourcePath:   rec.SourcePath,
				DestPath:     rec.DestPath,
				ModifiedDate: info.Modified,
				AccessDate:   info.Accessed,
				ChangedDate:  info.Changed,
				Permissions:  info.Permissions,
				FileSize:     info.Size,
				IsLast:       isLast,
			}
			if isLast {
				blk.FileHash = hasher.FinalizeHex()
			}

			if err := p.send(ctx, blk); err != nil {
				return err
			}
			offset += uint64(n)
			if isLast {
				break
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			p.logSkip(rec.SourcePath, readErr.Error())
			return nil
		}
	}
	return nil
}

func (p *Producer) send(ctx context.Context, blk Block) error {
	select {
	case p.Out <- blk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) logSkip(sourcePath, reason string) {
	if p.Log != nil {
		p.Log.WithField("source", sourcePath).Warnf("skipping: %s", reason)
	}
	if p.Audit != nil {
		_ = p.Audit.Skipped(sourcePath, reason)
	}
}
