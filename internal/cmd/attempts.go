package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/remedy/internal/models"
	"github.com/harrison/remedy/internal/store"
)

// NewAttemptsCommand creates the 'remedy attempts' command
func NewAttemptsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempts [recovery-id]",
		Short: "Show recovery attempts and their journals",
		Long: `Without arguments, list recent recovery attempts with their status.
With a recovery identifier, show that attempt in full including its
audit journal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAttempts,
	}

	cmd.Flags().Int("limit", 20, "maximum number of attempts to list")
	cmd.Flags().String("status", "", "filter by status (pending, in_progress, waiting_for_user, completed, failed)")

	return cmd
}

func runAttempts(cmd *cobra.Command, args []string) error {
	s, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(args) == 1 {
		return showAttempt(cmd, s, args[0])
	}

	limit, _ := cmd.Flags().GetInt("limit")
	statusFilter, _ := cmd.Flags().GetString("status")

	attempts, err := s.ListAttempts(cmd.Context(), models.RecoveryStatus(statusFilter), limit)
	if err != nil {
		return fmt.Errorf("list attempts: %w", err)
	}

	output := cmd.OutOrStdout()
	if len(attempts) == 0 {
		fmt.Fprintln(output, "No recovery attempts recorded.")
		return nil
	}

	bold := color.New(color.Bold)
	bold.Fprintf(output, "%-12s %-12s %-18s %-22s %8s\n", "RECOVERY", "ERROR", "STATUS", "STRATEGY", "STEPS")
	for _, a := range attempts {
		strategy := ""
		if a.Plan != nil {
			strategy = string(a.Plan.Strategy)
		}
		fmt.Fprintf(output, "%-12s %-12s %-18s %-22s %5d/%d\n",
			shortID(a.RecoveryID), shortID(a.ErrorID), colorStatus(a.Status), strategy, a.ExecutedSteps, a.TotalSteps)
	}
	return nil
}

func showAttempt(cmd *cobra.Command, s *store.Store, recoveryID string) error {
	a, err := s.GetAttempt(cmd.Context(), recoveryID)
	if err != nil {
		return fmt.Errorf("load attempt %s: %w", recoveryID, err)
	}

	output := cmd.OutOrStdout()
	printAttempt(output, a)

	journal, err := s.GetJournal(cmd.Context(), recoveryID)
	if err != nil {
		return fmt.Errorf("load journal: %w", err)
	}
	if len(journal) > 0 {
		fmt.Fprintln(output, "\nJournal:")
		for _, entry := range journal {
			fmt.Fprintf(output, "  [%s] %-22s %s\n",
				entry.CreatedAt.Format("15:04:05"), entry.Event, entry.Detail)
		}
	}
	return nil
}

func printAttempt(w io.Writer, a *store.RecoveryAttempt) {
	fmt.Fprintf(w, "Recovery:  %s\n", a.RecoveryID)
	fmt.Fprintf(w, "Error:     %s\n", a.ErrorID)
	fmt.Fprintf(w, "Status:    %s\n", colorStatus(a.Status))
	if a.Plan != nil {
		fmt.Fprintf(w, "Strategy:  %s (%d steps)\n", a.Plan.Strategy, len(a.Plan.Steps))
		if a.Plan.UserPrompt != "" {
			fmt.Fprintf(w, "Prompt:    %s\n", a.Plan.UserPrompt)
		}
	}
	fmt.Fprintf(w, "Executed:  %d/%d\n", a.ExecutedSteps, a.TotalSteps)
	if a.ErrorMessage != "" {
		fmt.Fprintf(w, "Failure:   %s\n", a.ErrorMessage)
	}
}

func colorStatus(status models.RecoveryStatus) string {
	switch status {
	case models.StatusCompleted:
		return color.GreenString(string(status))
	case models.StatusFailed:
		return color.RedString(string(status))
	case models.StatusWaitingForUser:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}
