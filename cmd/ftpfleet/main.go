package main

import (
	"os"

	"github.com/quocson95/ftpfleet/pkg/cli"
)

var version = "dev"

func main() {
	cli.Version = version
	os.Exit(cli.Execute())
}
