package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the Azure DevOps connection and credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := connectClient()
		if err != nil {
			return err
		}

		ok, message := client.ValidateConnection(cmd.Context())
		if !ok {
			return fmt.Errorf("%s", message)
		}
		fmt.Printf("%s (organization %s, project %s)\n", message, cfg.Organization, cfg.Project)
		return nil
	},
}
