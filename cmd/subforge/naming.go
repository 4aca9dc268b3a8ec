package main

import (
	"fmt"

	"github.com/John-Robertt/subforge/internal/naming"
	"github.com/spf13/cobra"
)

func newNamingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "naming",
		Short: "Naming template tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate TEMPLATE",
		Short: "Check a naming template for syntax errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := naming.Validate(args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	})
	return cmd
}
