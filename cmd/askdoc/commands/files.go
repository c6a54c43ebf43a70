package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewFilesCmd constructs the `askdoc files` command, which lists all
// ingested files known to the registry.
func NewFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List ingested files",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return fmt.Errorf("files: %w", err)
			}
			defer reg.Close()

			entries, err := reg.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("files: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("no files ingested yet — run 'askdoc ingest <file>' first")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s\t%s\t%s\n", e.Name, e.CreatedAt.Format("2006-01-02 15:04"), e.SHA256[:12])
			}
			return nil
		},
	}
}
