package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/coaching-scheduler/internal/scheduling"
)

func newStatusCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the scheduling status of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), deps.fetchTimeout())
			defer cancel()

			rec, err := deps.Store.FetchSchedule(ctx, args[0])
			if err != nil {
				return fmt.Errorf("fetch schedule: %w", err)
			}
			newFormatter(cmd.OutOrStdout()).record(rec, deps.now())
			return nil
		},
	}
}

func newRequestCmd(deps *Dependencies) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "request <session-id> --at <time>",
		Short: "Request a session time (RFC 3339)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseInstant(at)
			if err != nil {
				return err
			}

			ctrl, stop, err := startController(cmd.Context(), deps, args[0], nil)
			if err != nil {
				return err
			}
			defer stop()

			view, err := ctrl.Submit(cmd.Context(), when)
			if err != nil {
				return err
			}
			out := newFormatter(cmd.OutOrStdout())
			out.line("requested %s for %s", view.SessionID, view.ScheduledAt.UTC().Format(time.RFC3339))
			out.line("status %s; a coach will be assigned before the session opens", view.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "session start time, e.g. 2025-03-10T18:30:00+09:00")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newWatchCmd(deps *Dependencies) *cobra.Command {
	var requestAt string

	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a session until it is completed",
		Long:  "watch polls the store while a session is pending or assigned, prints every change, and marks the session completed once its window has passed. Interrupt to stop early.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var when time.Time
			if requestAt != "" {
				var err error
				if when, err = parseInstant(requestAt); err != nil {
					return err
				}
			}

			out := newFormatter(cmd.OutOrStdout())
			opened := false
			onChange := func(v scheduling.View) {
				out.view(v, deps.now())
				if v.CanJoin && !opened {
					opened = true
					out.line("meeting is open: %s", v.MeetingLink)
				}
			}

			ctrl, err := newController(deps, args[0], onChange)
			if err != nil {
				return err
			}
			runCtx, cancel := context.WithCancel(cmd.Context())
			defer func() {
				cancel()
				<-ctrl.Done()
			}()
			result := make(chan error, 1)
			go func() { result <- ctrl.Run(runCtx) }()

			if !when.IsZero() {
				if err := awaitReady(runCtx, ctrl, result); err != nil {
					return err
				}
				if ctrl.Current().Status == scheduling.StatusNotScheduled {
					if _, err := ctrl.Submit(runCtx, when); err != nil {
						return err
					}
				}
			}

			err = <-result
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err == nil {
				out.line("session %s completed", args[0])
			}
			return err
		},
	}
	cmd.Flags().StringVar(&requestAt, "request-at", "", "request this start time first when the session is not scheduled")
	return cmd
}

func newJoinCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "join <session-id>",
		Short: "Print the meeting link when the session is open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), deps.fetchTimeout())
			defer cancel()

			rec, err := deps.Store.FetchSchedule(ctx, args[0])
			if err != nil {
				return fmt.Errorf("fetch schedule: %w", err)
			}
			now := deps.now()
			if !scheduling.CanJoin(rec, now) {
				return joinUnavailable(rec, now)
			}
			newFormatter(cmd.OutOrStdout()).line("%s", rec.MeetingLink)
			return nil
		},
	}
}

func joinUnavailable(rec scheduling.Record, now time.Time) error {
	switch {
	case rec.Status == scheduling.StatusCompleted:
		return fmt.Errorf("%w: session is completed", scheduling.ErrJoinUnavailable)
	case !rec.Scheduled():
		return fmt.Errorf("%w: session is not scheduled", scheduling.ErrJoinUnavailable)
	case rec.MeetingLink == "":
		return fmt.Errorf("%w: no coach has been assigned yet", scheduling.ErrJoinUnavailable)
	}
	w := scheduling.Evaluate(rec.ScheduledAt, now)
	if w.Overdue {
		return fmt.Errorf("%w: the session window has closed", scheduling.ErrJoinUnavailable)
	}
	opens := w.TimeUntilStart - scheduling.JoinLeadTime
	return fmt.Errorf("%w: opens %s", scheduling.ErrJoinUnavailable, relative(opens))
}

func parseInstant(raw string) (time.Time, error) {
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not an RFC 3339 time", raw)
	}
	return at, nil
}

func newController(deps *Dependencies, sessionID string, onChange func(scheduling.View)) (*scheduling.Controller, error) {
	return scheduling.NewController(scheduling.ControllerConfig{
		SessionID:             sessionID,
		Store:                 deps.Store,
		Now:                   deps.Now,
		NewTicker:             deps.NewTicker,
		PollInterval:          deps.Config.PollInterval,
		TickInterval:          deps.Config.TickInterval,
		FetchTimeout:          deps.Config.FetchTimeout,
		MaxCompletionAttempts: deps.Config.MaxCompletionAttempts,
		Logger:                deps.Logger,
		Metrics:               deps.Metrics,
		OnChange:              onChange,
	})
}

func awaitReady(ctx context.Context, ctrl *scheduling.Controller, result <-chan error) error {
	select {
	case <-ctrl.Ready():
		return nil
	case err := <-result:
		if err == nil {
			err = scheduling.ErrControllerStopped
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startController runs a controller in the background until stop is called.
func startController(ctx context.Context, deps *Dependencies, sessionID string, onChange func(scheduling.View)) (*scheduling.Controller, func(), error) {
	ctrl, err := newController(deps, sessionID, onChange)
	if err != nil {
		return nil, nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	result := make(chan error, 1)
	go func() { result <- ctrl.Run(runCtx) }()

	stop := func() {
		cancel()
		<-ctrl.Done()
	}
	if err := awaitReady(ctx, ctrl, result); err != nil {
		stop()
		return nil, nil, err
	}
	return ctrl, stop, nil
}
