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
	agentHistory int
	agentJSON    bool
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Show the active agent registration",
	Args:  cobra.NoArgs,
	RunE:  runAgent,
}

func init() {
	agentCmd.Flags().IntVar(&agentHistory, "history", 0, "also list this many previous registrations")
	agentCmd.Flags().BoolVar(&agentJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	svc, err := requireServices(cmd.Context())
	if err != nil {
		return err
	}
	if svc.Registrations == nil {
		return errors.New("registration store not configured")
	}

	reg, err := svc.Registrations.Active(cmd.Context(), svc.Deployment)
	if errors.Is(err, domain.ErrNoActiveAgent) {
		cmd.Printf("No active agent for deployment %q. Run 'catalogctl publish' first.\n", svc.Deployment)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load active agent: %w", err)
	}

	var history []*domain.AgentRegistration
	if agentHistory > 0 {
		history, err = svc.Registrations.History(cmd.Context(), svc.Deployment, agentHistory)
		if err != nil {
			return fmt.Errorf("failed to load registration history: %w", err)
		}
	}

	if agentJSON {
		data, err := json.MarshalIndent(map[string]any{"active": reg, "history": history}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal registration: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	cmd.Printf("Deployment:   %s\n", reg.Deployment)
	cmd.Printf("Registration: %s\n", reg.ID)
	cmd.Printf("Agent:        %s\n", reg.AgentID)
	cmd.Printf("Content:      %s\n", reg.ContentHandle)
	cmd.Printf("Provider:     %s\n", reg.Provider)
	if reg.Model != "" {
		cmd.Printf("Model:        %s\n", reg.Model)
	}
	cmd.Printf("Snapshot:     %s (%d products)\n", reg.SnapshotDigest, reg.RecordCount)
	cmd.Printf("Created:      %s\n", reg.CreatedAt.Format(time.RFC3339))

	if len(history) > 0 {
		cmd.Println()
		cmd.Println("History:")
		for _, h := range history {
			cmd.Printf("  %s  %s  %s\n", h.CreatedAt.Format(time.RFC3339), h.ID, h.AgentID)
		}
	}
	return nil
}
