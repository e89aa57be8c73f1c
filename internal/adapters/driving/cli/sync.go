package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
)

// syncPollInterval is how often a single-course sync reports progress.
var syncPollInterval = 2 * time.Second

var syncCmd = &cobra.Command{
	Use:   "sync [course-id]",
	Short: "Synchronise courses from Google Classroom",
	Long: `Triggers incremental synchronisation of classroom content.
If a course ID is provided, only that course is synchronised.
Otherwise, the user's course list is refreshed and every active course
is synchronised.

Examples:
  classmate sync --user alice
  classmate sync 1234567890`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringP("user", "u", "", "User whose courses to synchronise")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if len(args) > 0 {
		courseID := args[0]
		cmd.Printf("Synchronising course: %s...\n", courseID)

		run, err := syncWithProgress(ctx, cmd, rt.Sync, courseID)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		printRun(cmd, run)
		return nil
	}

	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	cmd.Printf("Synchronising all courses for %s...\n", user)

	summary, err := rt.Sync.SyncUser(ctx, user)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	printSummary(cmd, summary)
	return nil
}

// syncWithProgress runs a course sync while reporting elapsed time.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	engine driving.SyncEngine,
	courseID string,
) (*domain.SyncRun, error) {
	type result struct {
		run *domain.SyncRun
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := engine.Sync(ctx, courseID)
		done <- result{run, err}
	}()

	ticker := time.NewTicker(syncPollInterval)
	defer ticker.Stop()

	started := time.Now()
	for {
		select {
		case r := <-done:
			return r.run, r.err
		case <-ticker.C:
			// Best effort; a failed status read does not affect the run.
			status, err := engine.Status(ctx, courseID)
			if err == nil && status != nil && status.Running {
				cmd.Printf("Still synchronising (%s)...\n", time.Since(started).Round(time.Second))
			}
		}
	}
}

func printRun(cmd *cobra.Command, run *domain.SyncRun) {
	cmd.Printf("Run %s: %s\n", run.ID, run.Status)
	for _, kind := range domain.SyncKinds() {
		c, ok := run.Counts[kind]
		if !ok {
			continue
		}
		cmd.Printf("  %-13s %d synced (%d new, %d updated, %d deleted)\n",
			kind, c.Synced(), c.Created, c.Updated, c.Deleted)
	}
	cmd.Printf("  Indexed %d unit(s), removed %d, %d left for retry\n",
		run.Index.Indexed, run.Index.Removed, run.Index.Failed)
	for _, e := range run.Errors {
		cmd.Printf("  ! %s\n", formatRunError(e))
	}
}

func printSummary(cmd *cobra.Command, s *domain.SyncSummary) {
	cmd.Printf("Synchronised %d course(s), %d assignment(s).\n", s.CoursesSynced, s.AssignmentsSynced)
	if len(s.Failures) == 0 {
		return
	}
	cmd.Printf("%d course(s) reported problems:\n", len(s.Failures))
	for _, f := range s.Failures {
		name := f.CourseID
		if f.CourseName != "" {
			name = fmt.Sprintf("%s (%s)", f.CourseName, f.CourseID)
		}
		cmd.Printf("  %s: %s\n", name, f.Status)
		for _, e := range f.Errors {
			cmd.Printf("    ! %s\n", formatRunError(e))
		}
	}
}

func formatRunError(e domain.RunError) string {
	switch {
	case e.Kind != "" && e.Page > 0:
		return fmt.Sprintf("[%s] %s page %d: %s", e.Code, e.Kind, e.Page, e.Message)
	case e.UnitID != "":
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.UnitID, e.Message)
	case e.Kind != "":
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Kind, e.Message)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}
