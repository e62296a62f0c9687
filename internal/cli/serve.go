package cli

import (
	"github.com/spf13/cobra"

	"github.com/saveenergy/netstrain/internal/logging"
	"github.com/saveenergy/netstrain/internal/server"
)

func newServeCmd(flags *rootFlags, version string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as a long-lived HTTP measurement responder",
		Long: `serve exposes the measurement engine over HTTP: GET /report runs a
measurement on demand, /metrics serves the latest completed run in
prometheus exposition format, and /live streams progress events over
websocket. The measurement flags set the per-request defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.load(cmd)
			if err != nil {
				return err
			}
			logging.Setup(settings.Verbose)
			return server.New(settings, version).Start(cmd.Context(), listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8090", "listen address")
	return cmd
}
