// Package logging builds the operational logger used for scan/transfer/
// retry progress and errors. It is distinct from internal/audit, which
// keeps the spec-mandated transfer ledger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a text-formatted logger writing to out (or os.Stderr if nil).
func New(out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}
