package main

import (
	"fmt"
	"os"

	"github.com/nvr-ai/go-yolov5/cmd/yolov5/commands"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

func main() {
	root := commands.NewRootCmd(fmt.Sprintf("%s (commit: %s)", Version, Commit))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
