package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/poller"
)

var (
	searchServer    string
	searchInterval  time.Duration
	searchBudget    time.Duration
	searchSessionID string
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a search against a recommender server",
	Long: `Submits the query to the server, then polls for the result until it
arrives, the workflow reports a failure or the polling budget runs out.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchServer, "server", "http://localhost:8080", "recommender server base URL")
	searchCmd.Flags().DurationVar(&searchInterval, "interval", poller.DefaultInterval, "delay between polls")
	searchCmd.Flags().DurationVar(&searchBudget, "budget", poller.DefaultBudget, "total polling budget")
	searchCmd.Flags().StringVar(&searchSessionID, "session-id", "", "propose a session id (UUID)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchBudget < searchInterval {
		return fmt.Errorf("budget %s is shorter than interval %s", searchBudget, searchInterval)
	}

	ctx := cmd.Context()
	client := NewSearchClient(searchServer, searchInterval+5*time.Second)

	ack, err := client.Submit(ctx, args[0], searchSessionID)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if !searchJSON {
		cmd.Printf("Session %s\n", ack.SessionID)
		cmd.Printf("Expecting about %d matches", ack.Preview.EstimatedCount)
		if ack.Preview.ProcessingTime != "" {
			cmd.Printf(" in %s", ack.Preview.ProcessingTime)
		}
		cmd.Println()
		if !ack.Dispatched {
			cmd.Println("Warning: the server could not dispatch the query; it will likely time out.")
		}
	}

	last := domain.PollWaiting
	resolver := poller.Resolver{
		Fetcher:  client,
		Interval: searchInterval,
		Budget:   searchBudget,
		OnUpdate: func(u poller.Update) {
			if searchJSON || u.State == last || u.State.IsTerminal() {
				return
			}
			last = u.State
			fmt.Fprintf(cmd.ErrOrStderr(), "%s... %d%%\n", u.State, u.Progress)
		},
	}

	outcome := resolver.Run(ctx, ack.SessionID)
	if outcome.Cancelled {
		return errors.New("search cancelled")
	}
	if outcome.Err != nil {
		return errors.New(outcome.Err.UserMessage())
	}

	if searchJSON {
		data, err := json.MarshalIndent(outcome.Payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	cmd.Println()
	NewPresenter(cmd.OutOrStdout()).Render(outcome.Payload)
	return nil
}
