package main

import (
	"os"

	"github.com/baptistax/tunnelprobe/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
