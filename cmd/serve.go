package cmd

import (
	"github.com/spf13/cobra"

	"github.com/s0up4200/mircrew/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search, details and magnet operations as JSON over HTTP",
	Long: `Start an HTTP server exposing:

  GET /api/search?title=<title>
  GET /api/movies/<id>
  GET /api/movies/<id>/magnet
  GET /healthz

Errors are returned as {"kind": "...", "message": "..."}.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Server.Addr
	if cmd.Flags().Changed("addr") {
		addr = serveAddr
	}

	defer client.Close()

	// Log in up front so bad credentials fail at startup
	if _, err := client.Authenticate(cmd.Context()); err != nil {
		return describeError(err)
	}

	return server.New(addr, client, logger).Run(cmd.Context())
}
