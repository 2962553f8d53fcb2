package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/medsage/medsage-server/client"
)

var (
	apiFlag   string
	tokenFlag string
	rootCmd   = &cobra.Command{
		Use:   "consultctl",
		Short: "CLI client for the consultation backend REST API",
	}
)

// newClient builds an SDK client from the persistent flags. The token can
// also come from CONSULTCTL_TOKEN so login output can be exported once.
func newClient() *client.Client {
	token := tokenFlag
	if token == "" {
		token = os.Getenv("CONSULTCTL_TOKEN")
	}
	if token != "" {
		return client.New(apiFlag, client.WithToken(token))
	}
	return client.New(apiFlag)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Consultation backend base URL")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Access token (or set CONSULTCTL_TOKEN)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
