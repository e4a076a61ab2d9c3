// Package mindlinkcmder
package mindlinkcmder

import (
	"github.com/spf13/cobra"

	servecmder "github.com/mindlinkco/mindlink/cmd/mindlink/serve"
	versioncmder "github.com/mindlinkco/mindlink/cmd/version"
)

const mindlinkLongDesc string = `MindLink is a note consolidation and memory engine.

Feed topics raw thoughts; a background pipeline denoises each note and folds
it into the topic's structured crystal. On request the engine synthesizes the
full timeline into a narrative, maintains memory anchors across topics, and
can absorb one topic into another.

Run the engine using:
  mindlink serve       Run the API server`

const mindlinkShortDesc string = "MindLink - note consolidation and memory engine"

func NewMindlinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mindlink",
		Short: mindlinkShortDesc,
		Long:  mindlinkLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Directory containing config.toml")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
