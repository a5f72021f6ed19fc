// Package cli implements the sessionwatch command line client for the
// scheduling store.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/coaching-scheduler/internal/config"
	"github.com/example/coaching-scheduler/internal/scheduling"
)

var errNoAssignerKey = errors.New("SESSIONWATCH_ASSIGNER_KEY is not set")

// AssignerStore is the part of the store API reserved for the assigner.
type AssignerStore interface {
	AssignCoach(ctx context.Context, sessionID, coachID, meetingLink string) (scheduling.Record, error)
	ResetSchedule(ctx context.Context, sessionID string) error
	ListSchedules(ctx context.Context, statuses []scheduling.Status, coachID string, before time.Time, limit int) ([]scheduling.Record, error)
}

type Dependencies struct {
	Config config.WatcherConfig
	Store  scheduling.Store
	// Assigner is nil when no assigner key is configured.
	Assigner  AssignerStore
	Now       func() time.Time
	NewTicker scheduling.TickerFunc
	Logger    *slog.Logger
	Metrics   scheduling.Recorder
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dependencies) fetchTimeout() time.Duration {
	if d.Config.FetchTimeout > 0 {
		return d.Config.FetchTimeout
	}
	return scheduling.DefaultFetchTimeout
}

func (d *Dependencies) assigner() (AssignerStore, error) {
	if d.Assigner == nil {
		return nil, errNoAssignerKey
	}
	return d.Assigner, nil
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sessionwatch",
		Short:         "Schedule coaching sessions and join them when they open",
		Long:          "sessionwatch talks to the scheduling store: participants request a time, watch the session until a coach is assigned, and join within the meeting window. Assigner commands need SESSIONWATCH_ASSIGNER_KEY.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newStatusCmd(deps))
	cmd.AddCommand(newRequestCmd(deps))
	cmd.AddCommand(newWatchCmd(deps))
	cmd.AddCommand(newJoinCmd(deps))

	cmd.AddCommand(newAssignCmd(deps))
	cmd.AddCommand(newResetCmd(deps))
	cmd.AddCommand(newListCmd(deps))

	return cmd
}

// UserMessage renders err for display on the terminal.
func UserMessage(err error) string {
	var failed *scheduling.RequestFailedError
	switch {
	case errors.As(err, &failed):
		return failed.UserMessage()
	case errors.Is(err, scheduling.ErrInvalidScheduleTime):
		return "The session time must be in the future."
	case errors.Is(err, scheduling.ErrAlreadyScheduled):
		return "This session already has a schedule."
	}
	return err.Error()
}
