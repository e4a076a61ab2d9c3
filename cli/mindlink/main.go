package main

import (
	"os"

	mindlinkcmder "github.com/mindlinkco/mindlink/cmd/mindlink"
)

func main() {
	cmd := mindlinkcmder.NewMindlinkCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
