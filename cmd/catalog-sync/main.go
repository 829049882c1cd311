package main

import (
	"os"

	"github.com/custodia-labs/catalog-sync/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetBootstrap(bootstrap)

	// cobra prints the error itself
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
