package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

var exportJSON bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog snapshot",
	Long: `Reads every product from the store, sanitizes structured fields and
writes the snapshot artifact. Malformed fields fall back to defaults and are
reported; they never fail the export.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "output the snapshot as JSON")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	svc, err := requireServices(cmd.Context())
	if err != nil {
		return err
	}
	if svc.Exporter == nil {
		return fmt.Errorf("exporter not configured")
	}

	snap, err := svc.Exporter.Export(cmd.Context())
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if exportJSON {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	printSnapshot(cmd, snap)
	return nil
}

func printSnapshot(cmd *cobra.Command, snap *domain.Snapshot) {
	cmd.Printf("Exported %d products to %s\n", snap.RecordCount, snap.Path)
	cmd.Printf("Digest: %s\n", snap.Digest)

	if snap.Report == nil {
		return
	}
	malformed := snap.Report.MalformedTotal()
	if malformed == 0 {
		cmd.Println("All structured fields parsed or empty.")
		return
	}
	cmd.Printf("Malformed fields replaced with defaults: %d\n", malformed)
	for _, field := range domain.StructuredFields {
		if n := snap.Report.Malformed[field]; n > 0 {
			cmd.Printf("  %-14s %d\n", field, n)
		}
	}
}
