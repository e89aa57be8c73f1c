package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/classmate/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/classmate/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled syncs",
	Long: `Starts the HTTP API. Callers identify themselves with the user header
(X-User-ID by default). Unless --no-schedule is set, every user with a
stored token is also synchronised on the configured schedule.

Routes:
  POST /courses/sync          {"course_id": "..."} or {} for all courses
  POST /qa                    {"question": "..."}
  GET  /courses/{id}/runs     ?limit=10
  GET  /healthz

Examples:
  classmate serve
  classmate serve --addr :9000 --no-schedule`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	serveCmd.Flags().Bool("no-schedule", false, "Disable scheduled syncs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return fmt.Errorf("getting addr flag: %w", err)
	}
	noSchedule, err := cmd.Flags().GetBool("no-schedule")
	if err != nil {
		return fmt.Errorf("getting no-schedule flag: %w", err)
	}

	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	serverCfg := rt.Config.Server
	if addr != "" {
		serverCfg.Addr = addr
	}
	server, err := httpapi.NewServer(serverCfg, httpapi.Services{
		Sync:   rt.Sync,
		QA:     rt.QA,
		Access: rt.Access,
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return server.ListenAndServe(ctx)
	})
	if !noSchedule && rt.Scheduler != nil && rt.Config.Sync.Schedule != "" {
		g.Go(func() error {
			return rt.Scheduler.Start(ctx)
		})
	} else {
		logger.Info("Scheduled syncs disabled")
	}

	cmd.Printf("classmate listening on %s\n", serverCfg.Addr)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
