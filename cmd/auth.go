package cmd

import (
	"dropfiles/internal/auth"
	"fmt"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:       "auth [gdrive|dropbox]",
	Short:     "Authenticate with a cloud destination",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"gdrive", "dropbox"},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := auth.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown provider: %s", args[0])
		}

		if err := p.Authorize(cmd.Context()); err != nil {
			return err
		}

		fmt.Printf("Authenticated with %s\n", p.Name())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
