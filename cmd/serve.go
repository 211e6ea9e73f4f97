package cmd

import (
	"github.com/revrun/revrun/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server for running commands over revision ranges",
	Long: `Start a RESTful HTTP server through which runs can be started and their
reports fetched.

POST /runs starts a run from a JSON body and returns its id, GET /runs/:id
returns the run's status and aggregate counts, and GET /runs/:id/report the
full per-commit outcomes once the run finished.`,
	Run: func(cmd *cobra.Command, args []string) {
		serverType := server.HTTP
		if _, err := server.NewServer(serverType, servePort, newLogger()); err != nil {
			logrus.Fatalf("Failed to start webserver - %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 40033, "The port on which to start the server")
}
