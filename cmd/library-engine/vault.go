package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/library-engine/pkg/types"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage stored provider credentials",
	Long: `Vault stores provider login credentials encrypted at rest. The symmetric
key is generated on first use and kept next to the store with owner-only
permissions. Secrets are never printed back.`,
}

var vaultSetCmd = &cobra.Command{
	Use:   "set <provider>",
	Short: "Store credentials for a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runVaultSet,
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers with stored credentials",
	RunE:  runVaultList,
}

var vaultDeleteCmd = &cobra.Command{
	Use:   "delete <provider>",
	Short: "Remove a provider's stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runVaultDelete,
}

func init() {
	vaultSetCmd.Flags().String("username", "", "login name or email")
	vaultSetCmd.Flags().String("secret", "", "password (omit to read from stdin)")

	vaultCmd.AddCommand(vaultSetCmd, vaultListCmd, vaultDeleteCmd)
	rootCmd.AddCommand(vaultCmd)
}

func runVaultSet(cmd *cobra.Command, args []string) error {
	id, err := types.ParseProvider(args[0])
	if err != nil {
		return err
	}

	username, _ := cmd.Flags().GetString("username")
	if username == "" {
		return fmt.Errorf("--username is required")
	}

	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		fmt.Fprint(os.Stderr, "Secret: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading secret: %w", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}
	if secret == "" {
		return fmt.Errorf("secret must not be empty")
	}

	v, err := openVault()
	if err != nil {
		return err
	}
	if err := v.Save(id, username, secret); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Stored credentials for %s\n", id)
	return nil
}

func runVaultList(cmd *cobra.Command, args []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}

	providers, err := v.List()
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		fmt.Fprintln(os.Stdout, "No stored credentials.")
		return nil
	}
	for _, p := range providers {
		fmt.Fprintln(os.Stdout, p)
	}
	return nil
}

func runVaultDelete(cmd *cobra.Command, args []string) error {
	id, err := types.ParseProvider(args[0])
	if err != nil {
		return err
	}

	v, err := openVault()
	if err != nil {
		return err
	}
	removed, err := v.Delete(id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no stored credentials for %s", id)
	}
	fmt.Fprintf(os.Stdout, "Removed credentials for %s\n", id)
	return nil
}
