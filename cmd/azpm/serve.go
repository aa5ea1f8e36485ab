package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pegodk/azpm/internal/mcpserver"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	transport string
	port      int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server exposing the backlog tools",
	Long: `Run the MCP server exposing the backlog tools.

With --transport stdio (the default) the server speaks MCP over
stdin/stdout, which is how editor and assistant integrations launch it.
With --transport http it serves streamable HTTP on /mcp.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := connectClient()
		if err != nil {
			return err
		}

		srv := mcpserver.New(client, cfg.OutputDir)

		switch serveFlags.transport {
		case "stdio":
			return srv.ServeStdio()
		case "http":
			if _, err := srv.StartHTTP(serveFlags.port); err != nil {
				return err
			}
			fmt.Printf("MCP server listening on %s\n", srv.URL())

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return srv.Stop()
		default:
			return fmt.Errorf("unknown transport %q (want stdio or http)", serveFlags.transport)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.transport, "transport", "stdio", "Transport: stdio or http")
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 8000, "Port for the http transport")
}
