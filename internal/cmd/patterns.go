package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/remedy/internal/models"
)

// NewPatternsCommand creates the 'remedy patterns' command
func NewPatternsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List learned error patterns",
		Long: `Display the error patterns accumulated by the learning adapter,
ranked by occurrence count, with their recovery success rates and the
strategies that have worked.`,
		RunE: runPatterns,
	}

	cmd.Flags().Int("limit", 50, "maximum number of patterns to show")
	cmd.Flags().String("type", "", "filter by error type")

	return cmd
}

func runPatterns(cmd *cobra.Command, _ []string) error {
	s, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	typeFilter, _ := cmd.Flags().GetString("type")

	var patterns []*models.ErrorPattern
	if typeFilter != "" {
		patterns, err = s.ListPatternsByType(cmd.Context(), models.ErrorType(typeFilter))
	} else {
		patterns, err = s.ListPatterns(cmd.Context(), limit)
	}
	if err != nil {
		return fmt.Errorf("list patterns: %w", err)
	}

	output := cmd.OutOrStdout()
	if len(patterns) == 0 {
		fmt.Fprintln(output, "No patterns learned yet.")
		return nil
	}

	printPatterns(output, patterns)
	return nil
}

func printPatterns(w io.Writer, patterns []*models.ErrorPattern) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "%-12s %-22s %-14s %6s %8s  %s\n", "ID", "TYPE", "CATEGORY", "SEEN", "SUCCESS", "SHAPE")

	for _, p := range patterns {
		rate := fmt.Sprintf("%.0f%%", p.SuccessRate*100)
		fmt.Fprintf(w, "%-12s %-22s %-14s %6d %8s  %s\n",
			shortID(p.ID), p.Type, p.Category, p.Occurrences, colorRate(p.SuccessRate, rate), truncate(p.MessageShape, 48))
		if len(p.SuccessfulStrategies) > 0 {
			fmt.Fprintf(w, "%-12s   proven: %v\n", "", p.SuccessfulStrategies)
		}
	}
}

func colorRate(rate float64, s string) string {
	switch {
	case rate >= 0.7:
		return color.GreenString(s)
	case rate >= 0.4:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
