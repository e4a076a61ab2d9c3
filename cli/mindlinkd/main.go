package main

import (
	"os"

	servecmder "github.com/mindlinkco/mindlink/cmd/mindlink/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "mindlinkd"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Directory containing config.toml")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
