// Package cli builds the hsync root command and wires its flags through
// to the orchestrator.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/mirandadam/hsync/internal/audit"
	"github.com/mirandadam/hsync/internal/config"
	"github.com/mirandadam/hsync/internal/engine"
	"github.com/mirandadam/hsync/internal/hashsum"
	"github.com/mirandadam/hsync/internal/index"
	"github.com/mirandadam/hsync/internal/logging"
	"github.com/spf13/cobra"
)

// options holds the raw flag values before they're parsed into an
// engine.Config.
type options struct {
	source    string
	dest      string
	dbPath    string
	logPath   string
	bwlimit   string
	blockSize string
	checksum  hashsum.Type

	queueCapacity int
	retryAttempts int
	retryInterval int

	deleteExtras bool
	rescan       bool
}

// BuildRootCmd builds the hsync root command.
func BuildRootCmd() *cobra.Command {
	opts := &options{checksum: hashsum.Default}

	root := &cobra.Command{
		Use:           "hsync --source <dir> --dest <dir>",
		Short:         "Resumable, one-way directory mirroring",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.source, "source", "", "Source directory to mirror from (required)")
	flags.StringVar(&opts.dest, "dest", "", "Destination directory to mirror to (required)")
	flags.StringVar(&opts.dbPath, "db", "hsync.db", "Path to the sqlite index database")
	flags.StringVar(&opts.logPath, "log", "hsync.log", "Path to the audit log")
	flags.StringVar(&opts.bwlimit, "bwlimit", "", "Bandwidth ceiling, e.g. 10M (default unlimited)")
	flags.Var(&opts.checksum, "checksum", "Hash algorithm: md5, sha1 or sha256")
	flags.StringVar(&opts.blockSize, "block-size", "5M", "Transfer block size")
	flags.IntVar(&opts.queueCapacity, "queue-capacity", 20, "Number of in-flight blocks buffered between producer and consumer")
	flags.IntVar(&opts.retryAttempts, "retry-attempts", 10, "Maximum transfer attempts before giving up")
	flags.IntVar(&opts.retryInterval, "retry-interval-seconds", 60, "Delay between retry attempts")
	flags.BoolVar(&opts.deleteExtras, "delete-extras", false, "Delete destination files absent from source after transfer")
	flags.BoolVar(&opts.rescan, "rescan", false, "Force a full rescan instead of resuming the existing backlog")

	_ = root.MarkFlagRequired("source")
	_ = root.MarkFlagRequired("dest")

	return root
}

func runRoot(cmd *cobra.Command, opts *options) error {
	blockSize, err := config.ParseSize(opts.blockSize)
	if err != nil {
		return fmt.Errorf("--block-size: %w", err)
	}

	var bwlimit uint64
	if opts.bwlimit != "" {
		bwlimit, err = config.ParseSize(opts.bwlimit)
		if err != nil {
			return fmt.Errorf("--bwlimit: %w", err)
		}
	}

	idx, err := index.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	log := logging.New(cmd.ErrOrStderr())
	auditLog := audit.Open(opts.logPath)

	err = engine.Run(cmd.Context(), engine.Config{
		SourceDir:            opts.source,
		DestDir:              opts.dest,
		Index:                idx,
		Log:                  log,
		Audit:                auditLog,
		Algorithm:            opts.checksum,
		BlockSize:            int(blockSize),
		QueueCapacity:        opts.queueCapacity,
		BandwidthLimit:       bwlimit,
		RetryAttempts:        opts.retryAttempts,
		RetryIntervalSeconds: opts.retryInterval,
		DeleteExtras:         opts.deleteExtras,
		Rescan:               opts.rescan,
	})
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(cmd.ErrOrStderr(), "hsync failed")
		return err
	}

	color.New(color.FgGreen, color.Bold).Fprintln(cmd.OutOrStdout(), "hsync: up to date")
	return nil
}
