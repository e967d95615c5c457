package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/remedy/internal/advisor"
	"github.com/harrison/remedy/internal/classifier"
	"github.com/harrison/remedy/internal/config"
	"github.com/harrison/remedy/internal/detector"
	"github.com/harrison/remedy/internal/executor"
	"github.com/harrison/remedy/internal/healing"
	"github.com/harrison/remedy/internal/journal"
	"github.com/harrison/remedy/internal/learning"
	"github.com/harrison/remedy/internal/logger"
	"github.com/harrison/remedy/internal/planner"
	"github.com/harrison/remedy/internal/store"
)

// NewResumeCommand creates the 'remedy resume' command
func NewResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <recovery-id> [key=value ...]",
		Short: "Provide user input to a recovery waiting on it",
		Long: `Feed values to a recovery attempt parked in waiting_for_user and resume
its plan. Values are given as key=value pairs; values that parse as JSON
(numbers, booleans, quoted strings, arrays) are stored typed, anything
else is stored as a string.

Example:
  remedy resume 8f3a21bc budget=5000 region=us-east-1`,
		Args: cobra.MinimumNArgs(1),
		RunE: runResume,
	}
}

func runResume(cmd *cobra.Command, args []string) error {
	input, err := parseKeyValues(args[1:])
	if err != nil {
		return err
	}

	s, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	svc := buildService(cmd, s, cfg)

	result, err := svc.ProcessUserInput(cmd.Context(), args[0], input, nil)
	if err != nil {
		return fmt.Errorf("resume recovery %s: %w", args[0], err)
	}

	output := cmd.OutOrStdout()
	if result.Successful {
		fmt.Fprintf(output, "Recovery %s completed: %d/%d steps succeeded.\n",
			shortID(args[0]), result.ExecutedSteps, result.TotalSteps)
		return nil
	}
	fmt.Fprintf(output, "Recovery %s failed after %d/%d steps: %s\n",
		shortID(args[0]), result.ExecutedSteps, result.TotalSteps, result.ErrorMessage)
	return nil
}

// buildService wires a full pipeline around an open store. The advisor is
// optional: when it cannot be constructed the pipeline runs rule-only,
// which is all resumption needs.
func buildService(cmd *cobra.Command, s *store.Store, cfg *config.Config) *healing.Service {
	lg := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	var adv advisor.Advisor
	if cfg.Advisor.Enabled {
		a, err := advisor.NewOpenAIAdvisor(cfg.Advisor, lg)
		if err != nil {
			lg.Warnf("Advisor unavailable, continuing rule-only: %v", err)
		} else {
			adv = a
		}
	}

	det := detector.NewDetector(detector.NewSchemaRegistry(), s, journal.New(cfg.JournalPath), lg)
	cls := classifier.NewClassifier(s, adv, cfg.Classifier, lg)
	pl := planner.NewPlanner(s, adv, cfg.Planner, lg)
	ex := executor.NewExecutor(s, lg)
	ad := learning.NewAdapter(s, adv, cfg.Learning, lg)

	return healing.NewService(det, cls, pl, ex, ad, s, lg)
}

// parseKeyValues turns key=value arguments into a user input map. Values
// are decoded as JSON when possible so numbers and booleans keep their
// type through the retry.
func parseKeyValues(args []string) (map[string]interface{}, error) {
	input := make(map[string]interface{}, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid input %q: expected key=value", arg)
		}
		var typed interface{}
		if err := json.Unmarshal([]byte(value), &typed); err == nil {
			input[key] = typed
		} else {
			input[key] = value
		}
	}
	return input, nil
}
