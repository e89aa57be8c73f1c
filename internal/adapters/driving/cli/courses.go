package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List a user's synced courses",
	RunE:  runCourses,
}

var runsCmd = &cobra.Command{
	Use:   "runs [course-id]",
	Short: "Show the sync history of a course",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuns,
}

var statusCmd = &cobra.Command{
	Use:   "status [course-id]",
	Short: "Show whether a course is syncing and its last run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	coursesCmd.Flags().StringP("user", "u", "", "User whose courses to list")
	runsCmd.Flags().IntP("limit", "n", 10, "Maximum number of runs to show")

	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(statusCmd)
}

func runCourses(cmd *cobra.Command, _ []string) error {
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	courses, err := rt.Courses.ListCoursesForUser(cmd.Context(), user)
	if err != nil {
		return fmt.Errorf("listing courses: %w", err)
	}
	if len(courses) == 0 {
		cmd.Println("No synced courses.")
		cmd.Printf("Sync them with: classmate sync --user %s\n", user)
		return nil
	}

	cmd.Println("Courses:")
	cmd.Println()
	for i := range courses {
		c := &courses[i]
		cmd.Printf("  %s\n", c.ID)
		cmd.Printf("    Name: %s\n", c.DisplayName())
		cmd.Printf("    State: %s\n", c.State)
		cmd.Printf("    Last synced: %s\n", formatTime(c.LastSyncedAt))
		cmd.Println()
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("getting limit flag: %w", err)
	}
	if limit < 1 {
		return errors.New("--limit must be at least 1")
	}
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	runs, err := rt.Sync.History(cmd.Context(), args[0], limit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if len(runs) == 0 {
		cmd.Printf("No sync runs for course %s.\n", args[0])
		return nil
	}
	for i := range runs {
		r := &runs[i]
		cmd.Printf("%s  %-9s  started %s  finished %s  errors %d\n",
			r.ID, r.Status, formatTime(r.StartedAt), formatTime(r.FinishedAt), len(r.Errors))
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	status, err := rt.Sync.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("loading status: %w", err)
	}

	state := "idle"
	if status.Running {
		state = "syncing"
	}
	cmd.Printf("Course %s: %s\n", status.CourseID, state)
	if status.LastRun == nil {
		cmd.Println("Never synchronised.")
		return nil
	}
	printRun(cmd, status.LastRun)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
