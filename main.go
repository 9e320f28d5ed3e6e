// Package main is the entry point for cadence.
package main

import (
	"github.com/cadence-media/cadence/cmd"
	"github.com/cadence-media/cadence/config"
	"github.com/cadence-media/cadence/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
