package main

import (
	"os"

	"github.com/saveenergy/netstrain/internal/cli"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
