package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docaudit/internal/store/postgres"
)

var labKeyCmd = &cobra.Command{
	Use:   "lab-key",
	Short: "Manage lab-specific LLM API keys",
}

var labKeySetCmd = &cobra.Command{
	Use:   "set <lab-id> <api-key>",
	Short: "Store the API key used for a lab's audits",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		labID, key := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
		if labID == "" || key == "" {
			return fmt.Errorf("lab id and api key must not be empty")
		}

		db, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.NewLabKeyStore(db.DB).SetLabAPIKey(ctx, labID, key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored API key for lab %s\n", labID)
		return nil
	},
}

var labKeyGetCmd = &cobra.Command{
	Use:   "check <lab-id>",
	Short: "Report whether a lab has its own API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		key, err := postgres.NewLabKeyStore(db.DB).LabAPIKey(ctx, args[0])
		if err != nil {
			return err
		}
		if key == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "lab %s has no key; the service default is used\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "lab %s has a key ending in %s\n", args[0], lastN(key, 4))
		return nil
	},
}

func init() {
	labKeyCmd.AddCommand(labKeySetCmd, labKeyGetCmd)
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return strings.Repeat("*", len(s))
	}
	return s[len(s)-n:]
}
