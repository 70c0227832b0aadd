// Package main runs a bridge from LCM viewer channels to ignition topics.
package main

import (
	"go.viam.com/utils"

	"go.viam.com/lcmbridge/bridge/server"
	"go.viam.com/lcmbridge/logging"
)

var logger = logging.NewLogger("lcm-bridge")

func main() {
	utils.ContextualMain(server.RunServer, logger)
}
