package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *App) keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the local keyring cache",
	}
	cmd.AddCommand(
		a.keysSyncCmd(),
		a.keysImportCmd(),
		a.keysImportPrivateCmd(),
		a.keysListCmd(),
		a.keysClearCmd(),
	)
	return cmd
}

func (a *App) keysSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch public keys changed since the last sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.keyring.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d keys\n", n)
			return nil
		},
	}
}

func (a *App) keysImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <user-id> <armored-key-file>",
		Short: "Import another user's public key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			armored, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			if err := a.keyring.ImportPublic(cmd.Context(), string(armored), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported public key for %s\n", args[0])
			return nil
		},
	}
}

func (a *App) keysImportPrivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-private <armored-key-file>",
		Short: "Import the device owner's private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			armored, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := a.keyring.ImportPrivate(cmd.Context(), string(armored)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Private key imported")
			return nil
		},
	}
}

func (a *App) keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached public keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.keys.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No keys cached")
				return nil
			}
			bold := color.New(color.Bold)
			for _, rec := range recs {
				bold.Fprintf(cmd.OutOrStdout(), "%s\n", rec.UserID)
				fmt.Fprintf(cmd.OutOrStdout(), "  fingerprint: %s\n  algorithm:   %s\n  created:     %s\n",
					rec.Fingerprint, rec.Algorithm, rec.CreatedAt.Format("2006-01-02"))
				if !rec.ExpiresAt.IsZero() {
					fmt.Fprintf(cmd.OutOrStdout(), "  expires:     %s\n", rec.ExpiresAt.Format("2006-01-02"))
				}
			}
			return nil
		},
	}
}

func (a *App) keysClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Flush every cached key and the sync watermark",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.keyring.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Keyring cache cleared")
			return nil
		},
	}
}
