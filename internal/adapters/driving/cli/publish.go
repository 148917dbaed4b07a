package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

var (
	publishSkipSmoke  bool
	publishSmokeQuery string
	publishJSON       bool
)

// errPublishFailed is returned when any pipeline stage fails so the process exits non-zero.
var errPublishFailed = errors.New("publish failed")

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Export and publish the catalog to a new agent",
	Long: `Runs export, upload, register, activate and a smoke-test query as one
exclusive job. Prints a per-stage report and exits non-zero when any stage fails.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishSkipSmoke, "skip-smoke", false, "skip the smoke-test query")
	publishCmd.Flags().StringVar(&publishSmokeQuery, "smoke-query", "", "query used for the smoke test")
	publishCmd.Flags().BoolVar(&publishJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	svc, err := requireServices(cmd.Context())
	if err != nil {
		return err
	}
	if svc.Pipeline == nil {
		return errors.New("publish pipeline not configured")
	}

	report, runErr := svc.Pipeline.Run(cmd.Context(), domain.PublishOptions{
		SkipSmoke:  publishSkipSmoke,
		SmokeQuery: publishSmokeQuery,
	})
	if report == nil {
		if runErr == nil {
			runErr = errPublishFailed
		}
		return fmt.Errorf("publish failed: %w", runErr)
	}

	if publishJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		printReport(cmd, report)
	}

	if runErr != nil {
		return fmt.Errorf("%w: %w", errPublishFailed, runErr)
	}
	if !report.Passed() {
		return errPublishFailed
	}
	return nil
}

func printReport(cmd *cobra.Command, report *domain.PublishReport) {
	cmd.Printf("Deployment: %s\n\n", report.Deployment)
	cmd.Printf("%-10s %-6s %10s  %s\n", "STAGE", "RESULT", "DURATION", "DETAIL")
	for _, st := range report.Stages {
		cmd.Printf("%-10s %-6s %10s  %s\n", st.Stage, stageResult(st), st.Duration.Round(time.Millisecond), st.Detail)
	}
	cmd.Println()

	if reg := report.Registration; reg != nil {
		cmd.Printf("Agent: %s (registration %s, %d products)\n", reg.AgentID, reg.ID, reg.RecordCount)
	}
	if report.Smoke != nil {
		cmd.Printf("Smoke test returned %d recommendations\n", len(report.Smoke.Recommendations))
	}

	if report.Passed() {
		cmd.Println("PASS")
	} else {
		cmd.Println("FAIL")
	}
}

func stageResult(st domain.StageResult) string {
	switch {
	case st.Skipped:
		return "skip"
	case st.Passed:
		return "ok"
	default:
		return "fail"
	}
}
