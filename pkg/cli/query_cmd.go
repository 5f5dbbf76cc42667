package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd(client func() *Client) *cobra.Command {
	var (
		explain    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run an ad-hoc read-only SQL statement",
		Example: `  # Run a query against the gateway
  gatectl query "SELECT id, email FROM users LIMIT 10"

  # Show the execution plan instead of the rows
  gatectl query --explain "SELECT count(*) FROM orders"`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			result, err := client().Adhoc(args[0], explain)
			if err != nil {
				return err
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			printAdhocResult(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "return the execution plan instead of rows")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print raw JSON")
	return cmd
}

func printAdhocResult(result *AdhocResult) {
	if len(result.Plan) > 0 {
		for _, line := range result.Plan {
			fmt.Println(line)
		}
		return
	}
	fmt.Println(strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
	if result.Truncated {
		fmt.Fprintln(os.Stderr, "(result truncated by the gateway row cap)")
	}
	fmt.Fprintf(os.Stderr, "%d row(s) in %dms\n", len(result.Rows), result.DurationMs)
}

func formatCell(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
