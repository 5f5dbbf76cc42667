// Package cli implements the gatectl operator CLI.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		host  string
		token string
	)

	rootCmd := &cobra.Command{
		Use:           "gatectl",
		Short:         "Operator CLI for the query gateway",
		Long:          "gatectl runs ad-hoc queries and inspects tenant tables through a running query gateway.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Precedence: flag > env > prompt.
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("GATEWAY_HOST"); v != "" {
					host = v
				}
			}
			if !cmd.Flags().Changed("token") {
				if v := os.Getenv("GATEWAY_TOKEN"); v != "" {
					token = v
				}
			}
			if token == "" {
				prompted, err := promptToken()
				if err != nil {
					return err
				}
				token = prompted
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "gateway base URL (env: GATEWAY_HOST)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "operator assertion token (env: GATEWAY_TOKEN)")

	client := func() *Client { return NewClient(strings.TrimRight(host, "/"), token) }
	rootCmd.AddCommand(newQueryCmd(client))
	rootCmd.AddCommand(newTablesCmd(client))
	return rootCmd
}

// promptToken reads the operator token from the terminal without echo. A
// non-TTY stdin is an error rather than a silent empty token.
func promptToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no token: set GATEWAY_TOKEN or pass --token")
	}
	fmt.Fprint(os.Stderr, "Operator token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}
