package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTablesCmd(client func() *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables [table]",
		Short: "List tenant tables, or describe one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				tables, err := client().ListTables()
				if err != nil {
					return err
				}
				for _, name := range tables {
					fmt.Println(name)
				}
				return nil
			}

			info, err := client().DescribeTable(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", info.Name)
			for _, col := range info.Columns {
				access := "ro"
				if col.Writable {
					access = "rw"
				}
				fmt.Printf("  %-30s %-15s %s\n", col.Name, col.Type, access)
			}
			return nil
		},
	}
	return cmd
}
