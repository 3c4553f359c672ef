// Command hsync mirrors a source directory tree to a destination,
// resuming after interruption and retrying transient failures.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mirandadam/hsync/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	root := cli.BuildRootCmd()
	root.SetContext(context.Background())
	return root.Execute()
}
