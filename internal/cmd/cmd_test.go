package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/harrison/remedy/internal/models"
	"github.com/harrison/remedy/internal/store"
)

// seedStore creates a file-backed database and returns its path. File-backed
// because the command under test opens its own connection.
func seedStore(t *testing.T, seed func(ctx context.Context, s *store.Store)) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "remedy.db")

	s, err := store.NewStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if seed != nil {
		seed(context.Background(), s)
	}
	return dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetArgs(args)

	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)

	err := cmd.Execute()
	return output.String(), err
}

func TestPatternsCommand_Empty(t *testing.T) {
	dbPath := seedStore(t, nil)

	output, err := execute(t, "patterns", "--db", dbPath)
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if !strings.Contains(output, "No patterns learned yet") {
		t.Errorf("Expected empty-state message, got: %s", output)
	}
}

func TestPatternsCommand_ListsPatterns(t *testing.T) {
	dbPath := seedStore(t, func(ctx context.Context, s *store.Store) {
		key := store.PatternKey{
			Type:         models.ErrorTypeTimeout,
			Category:     models.CategoryRecoverable,
			SourceType:   "workflow_step",
			ComponentID:  "fetch-quotes",
			MessageShape: "timed out after *s",
		}
		if _, err := s.RecordOutcome(ctx, key, true, models.StrategyRetry); err != nil {
			t.Fatalf("Failed to record outcome: %v", err)
		}
	})

	output, err := execute(t, "patterns", "--db", dbPath)
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if !strings.Contains(output, string(models.ErrorTypeTimeout)) {
		t.Errorf("Expected pattern type in output, got: %s", output)
	}
	if !strings.Contains(output, "timed out after *s") {
		t.Errorf("Expected message shape in output, got: %s", output)
	}
	if !strings.Contains(output, "retry") {
		t.Errorf("Expected proven strategy in output, got: %s", output)
	}
}

func TestPatternsCommand_TypeFilter(t *testing.T) {
	dbPath := seedStore(t, func(ctx context.Context, s *store.Store) {
		for _, typ := range []models.ErrorType{models.ErrorTypeTimeout, models.ErrorTypeAPIFailure} {
			key := store.PatternKey{
				Type:         typ,
				Category:     models.CategoryRecoverable,
				SourceType:   "workflow_step",
				MessageShape: "shape " + string(typ),
			}
			if _, err := s.RecordOutcome(ctx, key, false, ""); err != nil {
				t.Fatalf("Failed to record outcome: %v", err)
			}
		}
	})

	output, err := execute(t, "patterns", "--db", dbPath, "--type", string(models.ErrorTypeAPIFailure))
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if !strings.Contains(output, string(models.ErrorTypeAPIFailure)) {
		t.Errorf("Expected filtered type in output, got: %s", output)
	}
	if strings.Contains(output, "shape "+string(models.ErrorTypeTimeout)) {
		t.Errorf("Expected timeout pattern filtered out, got: %s", output)
	}
}

func TestAttemptsCommand_ShowsJournal(t *testing.T) {
	recoveryID := uuid.NewString()
	dbPath := seedStore(t, func(ctx context.Context, s *store.Store) {
		plan := &models.RemediationPlan{
			PlanID:   uuid.NewString(),
			ErrorID:  uuid.NewString(),
			Strategy: models.StrategyRetry,
			Steps: []models.RemediationStep{
				{StepID: uuid.NewString(), Action: models.ActionRetryExecution, Order: 1},
			},
		}
		if err := s.CreateAttempt(ctx, recoveryID, plan, models.StatusPending); err != nil {
			t.Fatalf("Failed to create attempt: %v", err)
		}
		if err := s.AppendJournal(ctx, recoveryID, "plan_started", "strategy retry"); err != nil {
			t.Fatalf("Failed to append journal: %v", err)
		}
	})

	output, err := execute(t, "attempts", recoveryID, "--db", dbPath)
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if !strings.Contains(output, recoveryID) {
		t.Errorf("Expected recovery id in output, got: %s", output)
	}
	if !strings.Contains(output, "plan_started") {
		t.Errorf("Expected journal event in output, got: %s", output)
	}
}

func TestAttemptsCommand_UnknownID(t *testing.T) {
	dbPath := seedStore(t, nil)

	_, err := execute(t, "attempts", "no-such-recovery", "--db", dbPath)
	if err == nil {
		t.Fatal("Expected error for unknown recovery id")
	}
}

func TestSuggestionsCommand_ApproveFlow(t *testing.T) {
	suggestionID := uuid.NewString()
	dbPath := seedStore(t, func(ctx context.Context, s *store.Store) {
		sg := &models.AdaptationSuggestion{
			ID:             suggestionID,
			SuggestionType: "schema_change",
			TargetID:       "invoice",
			Suggestion:     "Make budget required in the invoice schema",
			Rationale:      "Missing budget caused 5 recoveries",
			Confidence:     0.8,
			Status:         models.SuggestionSuggested,
		}
		if err := s.InsertSuggestion(ctx, sg); err != nil {
			t.Fatalf("Failed to insert suggestion: %v", err)
		}
	})

	output, err := execute(t, "suggestions", "--db", dbPath)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !strings.Contains(output, "schema_change") {
		t.Errorf("Expected suggestion type in output, got: %s", output)
	}

	output, err = execute(t, "suggestions", "approve", suggestionID, "--db", dbPath)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !strings.Contains(output, "approved") {
		t.Errorf("Expected approval confirmation, got: %s", output)
	}

	// The default listing shows only status=suggested, so it is empty now.
	output, err = execute(t, "suggestions", "--db", dbPath)
	if err != nil {
		t.Fatalf("Re-list failed: %v", err)
	}
	if !strings.Contains(output, "No suggestions to review") {
		t.Errorf("Expected approved suggestion to leave the review queue, got: %s", output)
	}
}

func TestResumeCommand_RejectsMalformedInput(t *testing.T) {
	dbPath := seedStore(t, nil)

	_, err := execute(t, "resume", "some-recovery", "not-a-pair", "--db", dbPath)
	if err == nil {
		t.Fatal("Expected error for malformed key=value argument")
	}
	if !strings.Contains(err.Error(), "key=value") {
		t.Errorf("Expected key=value hint in error, got: %v", err)
	}
}

func TestParseKeyValues(t *testing.T) {
	input, err := parseKeyValues([]string{"budget=5000", "region=us-east-1", "dry_run=true"})
	if err != nil {
		t.Fatalf("parseKeyValues failed: %v", err)
	}
	if input["budget"] != float64(5000) {
		t.Errorf("Expected numeric budget, got %T %v", input["budget"], input["budget"])
	}
	if input["region"] != "us-east-1" {
		t.Errorf("Expected string region, got %v", input["region"])
	}
	if input["dry_run"] != true {
		t.Errorf("Expected boolean dry_run, got %v", input["dry_run"])
	}
}
