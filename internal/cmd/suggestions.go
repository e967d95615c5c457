package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/remedy/internal/models"
)

// NewSuggestionsCommand creates the 'remedy suggestions' command
func NewSuggestionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "Review adaptation suggestions",
		Long: `List the system improvements proposed by the learning adapter and
approve or reject them. Approved suggestions are applied by an operator,
not by the pipeline itself.`,
		RunE: runSuggestions,
	}

	cmd.Flags().Int("limit", 20, "maximum number of suggestions to show")
	cmd.Flags().String("status", string(models.SuggestionSuggested), "filter by status (suggested, approved, rejected, implemented, or empty for all)")

	cmd.AddCommand(newSuggestionStatusCommand("approve", models.SuggestionApproved))
	cmd.AddCommand(newSuggestionStatusCommand("reject", models.SuggestionRejected))

	return cmd
}

func runSuggestions(cmd *cobra.Command, _ []string) error {
	s, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	statusFilter, _ := cmd.Flags().GetString("status")

	suggestions, err := s.ListSuggestions(cmd.Context(), models.SuggestionStatus(statusFilter), limit)
	if err != nil {
		return fmt.Errorf("list suggestions: %w", err)
	}

	output := cmd.OutOrStdout()
	if len(suggestions) == 0 {
		fmt.Fprintln(output, "No suggestions to review.")
		return nil
	}

	for _, sg := range suggestions {
		printSuggestion(output, sg)
	}
	return nil
}

func printSuggestion(w io.Writer, sg *models.AdaptationSuggestion) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s  %s", shortID(sg.ID), sg.SuggestionType)
	fmt.Fprintf(w, "  [%s]  confidence %.2f\n", sg.Status, sg.Confidence)
	if sg.TargetID != "" {
		fmt.Fprintf(w, "  target:     %s\n", sg.TargetID)
	}
	fmt.Fprintf(w, "  suggestion: %s\n", sg.Suggestion)
	if sg.Rationale != "" {
		fmt.Fprintf(w, "  rationale:  %s\n", sg.Rationale)
	}
	if sg.ImplementationDifficulty != "" || sg.PotentialImpact != "" {
		fmt.Fprintf(w, "  difficulty: %s  impact: %s\n", sg.ImplementationDifficulty, sg.PotentialImpact)
	}
	fmt.Fprintln(w)
}

func newSuggestionStatusCommand(verb string, target models.SuggestionStatus) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <suggestion-id>",
		Short: verb + " an adaptation suggestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.UpdateSuggestionStatus(cmd.Context(), args[0], target); err != nil {
				return fmt.Errorf("%s suggestion %s: %w", verb, args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Suggestion %s marked %s.\n", shortID(args[0]), target)
			return nil
		},
	}
}
