// Package main is the bridgectl command itself.
package main

import (
	"os"

	"go.viam.com/lcmbridge/cli"
	"go.viam.com/lcmbridge/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.NewLogger("bridgectl").Fatal(err)
	}
}
