package main

import (
	"os"

	relaycmder "github.com/papercomputeco/streamrelay/cmd/relay"
)

func main() {
	cmd := relaycmder.NewRelayCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
