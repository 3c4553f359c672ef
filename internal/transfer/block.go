// Package transfer implements the bounded producer/consumer pipeline:
// the producer reads source files in fixed-size blocks, hashes their
// content, and enqueues them; the consumer writes each block to the
// destination at its offset, paces itself against a bandwidth gate, and
// marks the file synced in the index once its terminal block lands.
package transfer

// Block is one unit of transfer: a slice of one file's content plus the
// metadata needed to finalize the file once this is its terminal block.
type Block struct {
	Data []byte
	// Offset is this block's byte offset within the destination file.
	Offset uint64

	SourcePath string
	DestPath   string

	ModifiedDate int64
	AccessDate   int64
	ChangedDate  int64
	Permissions  uint32

	FileSize uint64
	IsLast   bool
	// FileHash is set only when IsLast is true.
	FileHash string
}
