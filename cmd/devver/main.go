package main

import (
	"os"

	"devver/internal/client/cli"
)

func main() {
	os.Exit(cli.New().Execute(os.Args[1:]))
}
