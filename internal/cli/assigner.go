package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/coaching-scheduler/internal/scheduling"
)

func newAssignCmd(deps *Dependencies) *cobra.Command {
	var coachID, link string

	cmd := &cobra.Command{
		Use:   "assign <session-id> --coach <id> [--link <url>]",
		Short: "Assign a coach and meeting link to a pending session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := deps.assigner()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), deps.fetchTimeout())
			defer cancel()

			rec, err := store.AssignCoach(ctx, args[0], coachID, link)
			if err != nil {
				return fmt.Errorf("assign coach: %w", err)
			}
			newFormatter(cmd.OutOrStdout()).record(rec, deps.now())
			return nil
		},
	}
	cmd.Flags().StringVar(&coachID, "coach", "", "coach identifier")
	cmd.Flags().StringVar(&link, "link", "", "meeting link (http or https)")
	_ = cmd.MarkFlagRequired("coach")
	return cmd
}

func newResetCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Return a session to not_scheduled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := deps.assigner()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), deps.fetchTimeout())
			defer cancel()

			if err := store.ResetSchedule(ctx, args[0]); err != nil {
				return fmt.Errorf("reset schedule: %w", err)
			}
			newFormatter(cmd.OutOrStdout()).line("session %s reset to %s", args[0], scheduling.StatusNotScheduled)
			return nil
		},
	}
}

func newListCmd(deps *Dependencies) *cobra.Command {
	var (
		statuses []string
		coachID  string
		before   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := deps.assigner()
			if err != nil {
				return err
			}

			filter := make([]scheduling.Status, 0, len(statuses))
			for _, raw := range statuses {
				status, err := scheduling.ParseStatus(raw)
				if err != nil || status == scheduling.StatusNotScheduled {
					return fmt.Errorf("--status must be one of pending, assigned, completed (got %q)", raw)
				}
				filter = append(filter, status)
			}
			var until time.Time
			if before != "" {
				if until, err = parseInstant(before); err != nil {
					return fmt.Errorf("--before: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), deps.fetchTimeout())
			defer cancel()

			recs, err := store.ListSchedules(ctx, filter, strings.TrimSpace(coachID), until, limit)
			if err != nil {
				return fmt.Errorf("list schedules: %w", err)
			}
			newFormatter(cmd.OutOrStdout()).records(recs)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status (repeatable or comma separated)")
	cmd.Flags().StringVar(&coachID, "coach", "", "filter by coach")
	cmd.Flags().StringVar(&before, "before", "", "only sessions starting before this RFC 3339 time")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of schedules (0 for the store default)")
	return cmd
}
