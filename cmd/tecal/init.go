package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tecal/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter config file (default tecal.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "tecal.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := config.Init(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}
