package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"revitmcp/internal/app"
	"revitmcp/internal/config"
	"revitmcp/internal/listener"
	"revitmcp/internal/revit"
)

const appVersion = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "revitmcp",
		Short:         "LLM bridge for Revit: gateway, tool dispatch and a development listener",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newListenerCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway: chat API, tool dispatch, workflow scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			srv, err := app.NewServer(cfg)
			if err != nil {
				return fmt.Errorf("init server: %w", err)
			}
			defer srv.Close()
			addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
			log.Printf("gateway listening on %s", addr)
			return http.ListenAndServe(addr, srv.Handler())
		},
	}
}

func newListenerCmd() *cobra.Command {
	var modelPath string
	cmd := &cobra.Command{
		Use:   "listener",
		Short: "Run a development listener over an in-memory model",
		Long: "Serves the Revit-side routes against a YAML model file, so the gateway " +
			"can be exercised without a running Revit host.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			var session revit.Session
			if modelPath == "" {
				log.Printf("no model file given, starting with no document")
				session = revit.NewEmptySession()
			} else {
				loaded, err := revit.LoadMemorySession(modelPath)
				if err != nil {
					return fmt.Errorf("load model: %w", err)
				}
				session = loaded
			}
			addr := fmt.Sprintf("%s:%s", cfg.ListenerHost, cfg.ListenerPort)
			log.Printf("listener serving %s%s", addr, listener.RoutePrefix)
			return http.ListenAndServe(addr, listener.NewServer(session, nil).Router())
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "", "path to a YAML model file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("revitmcp %s\n", appVersion)
		},
	}
}
