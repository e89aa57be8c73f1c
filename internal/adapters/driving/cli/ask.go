package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from synced course content",
	Long: `Answers a question using only the content of courses the user belongs to.
Every answer lists its sources and a confidence score.

Examples:
  classmate ask --user alice "When is Lab 3 due?"
  classmate ask --user alice --json what is the reading for week 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringP("user", "u", "", "User asking the question")
	askCmd.Flags().Bool("json", false, "Print the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("getting json flag: %w", err)
	}

	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	question := strings.Join(args, " ")
	filter, err := rt.Access.AccessibleCourses(ctx, user)
	if err != nil {
		return fmt.Errorf("resolving access: %w", err)
	}
	answer, err := rt.QA.Answer(ctx, question, filter)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}
	printAnswer(cmd, answer, rt.Config.QA)
	return nil
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer, qa domain.QAConfig) {
	cmd.Println(answer.Text)
	cmd.Println()
	cmd.Printf("Confidence: %.0f%% (%s)\n", answer.Confidence*100, confidenceLevel(answer.Confidence, qa))
	if answer.Explanation != "" {
		cmd.Printf("Why: %s\n", answer.Explanation)
	}
	if len(answer.Sources) == 0 {
		return
	}
	cmd.Println("Sources:")
	for i, src := range answer.Sources {
		cmd.Printf("  %d. [%s] %s (relevance %.2f)\n", i+1, src.Type, src.Title, src.RelevanceScore)
		if src.Excerpt != "" {
			cmd.Printf("     %s\n", src.Excerpt)
		}
	}
}

// confidenceLevel buckets a confidence value using the configured thresholds.
func confidenceLevel(c float64, qa domain.QAConfig) string {
	switch {
	case c >= qa.HighConfidence:
		return "high"
	case c >= qa.LowConfidence:
		return "medium"
	default:
		return "low"
	}
}
