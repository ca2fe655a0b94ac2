package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"svload/internal/config"
)

func newValidateCmd(a *app) *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a manifest without connecting or reading files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := config.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			m.Connection = m.Connection.ApplyEnv(getenv)

			issues := config.ValidateManifest(m)
			a.reportIssues(issues)
			if err := config.FirstError(issues); err != nil {
				return fmt.Errorf("configuration is invalid: %s", manifestPath)
			}
			fmt.Fprintf(a.stdout, "Configuration is valid: %s (%d jobs, connection %s)\n", manifestPath, len(m.Jobs), m.Connection)
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "config", "c", "svload.yaml", "manifest path")
	return cmd
}
