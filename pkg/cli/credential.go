package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/flowforge/pkg/storage"
)

// NewCredentialCommand creates the credential management command
func NewCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the Gemini API credential",
		Long: `Manage the Gemini API key used for AI enhancement. The key is stored
in your system's native credential store (Keychain on macOS, Credential
Manager on Windows, Secret Service on Linux) and never in plain text
files.`,
	}

	cmd.AddCommand(newCredentialSetKeyCommand())
	cmd.AddCommand(newCredentialStatusCommand())
	cmd.AddCommand(newCredentialDeleteCommand())

	return cmd
}

func newCredentialSetKeyCommand() *cobra.Command {
	var useStdin bool

	cmd := &cobra.Command{
		Use:   "set-key",
		Short: "Store the Gemini API key",
		Long: `Store the Gemini API key in the system keyring.

Examples:
  # Interactive prompt (recommended for local use)
  flowforge credential set-key

  # From stdin (recommended for automation)
  printf '%s' "$GEMINI_API_KEY" | flowforge credential set-key --stdin

Security:
  - The key is stored in your system keyring, never in plain text
  - The interactive prompt avoids shell history exposure
  - The key value is never displayed by flowforge commands`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var apiKey string

			if useStdin {
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read API key from stdin: %w", err)
				}
				apiKey = strings.TrimRight(line, "\r\n")
			} else {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), "Gemini API key: ")
				keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("failed to read API key: %w", err)
				}
				apiKey = string(keyBytes)
			}

			if strings.TrimSpace(apiKey) == "" {
				return fmt.Errorf("API key cannot be empty")
			}

			store := storage.NewKeyringCredentialStore()
			if err := store.Set(storage.GeminiAPIKeyName, apiKey); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Gemini API key stored")
			return nil
		},
	}

	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read the API key from stdin")

	return cmd
}

func newCredentialStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether a Gemini API key is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := storage.NewKeyringCredentialStore().Get(storage.GeminiAPIKeyName)
			if err != nil {
				if errors.Is(err, storage.ErrCredentialNotFound) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✗ No Gemini API key stored")
					return nil
				}
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Gemini API key is stored")
			return nil
		},
	}
}

func newCredentialDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored Gemini API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := storage.NewKeyringCredentialStore().Delete(storage.GeminiAPIKeyName)
			if err != nil {
				if errors.Is(err, storage.ErrCredentialNotFound) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✗ No Gemini API key stored")
					return nil
				}
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Gemini API key removed")
			return nil
		},
	}
}
