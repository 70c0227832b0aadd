package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"go.viam.com/lcmbridge/logging"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	if _, err := fmt.Fprintf(w, format+"\n", a...); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
	}
}

// newLogger returns the tool's logger, at debug level when --debug was given.
func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewLogger("bridgectl")
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	return logger
}
