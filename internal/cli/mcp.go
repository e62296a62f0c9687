package cli

import (
	"github.com/spf13/cobra"

	"github.com/saveenergy/netstrain/internal/logging"
	"github.com/saveenergy/netstrain/internal/mcptool"
)

func newMCPCmd(flags *rootFlags, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run as an MCP tool server on stdio",
		Long: `mcp speaks the Model Context Protocol over stdio so agent clients can
trigger measurements as tool calls. The measurement flags set the
per-call defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.load(cmd)
			if err != nil {
				return err
			}
			logging.Setup(settings.Verbose)
			return mcptool.Serve(settings, version)
		},
	}
}
