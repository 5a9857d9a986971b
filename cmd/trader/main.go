package main

import (
	"os"

	"github.com/rustyeddy/regimetrader/cmd/trader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
