package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"svload/internal/storage"
)

func newBackendsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the storage kinds built into this binary",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, k := range storage.ListKinds() {
				fmt.Fprintln(a.stdout, k)
			}
			return nil
		},
	}
}
