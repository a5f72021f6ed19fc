package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/example/coaching-scheduler/internal/scheduling"
)

type formatter struct {
	w io.Writer
}

func newFormatter(w io.Writer) *formatter {
	return &formatter{w: w}
}

func (f *formatter) record(rec scheduling.Record, now time.Time) {
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "session\t%s\n", rec.SessionID)
	fmt.Fprintf(tw, "status\t%s\n", rec.Status)
	if rec.Scheduled() {
		fmt.Fprintf(tw, "starts\t%s (%s)\n", rec.ScheduledAt.UTC().Format(time.RFC3339), relative(rec.ScheduledAt.Sub(now)))
	}
	if rec.CoachID != "" {
		fmt.Fprintf(tw, "coach\t%s\n", rec.CoachID)
	}
	if rec.MeetingLink != "" {
		fmt.Fprintf(tw, "link\t%s\n", rec.MeetingLink)
	}
	fmt.Fprintf(tw, "joinable\t%s\n", yesNo(scheduling.CanJoin(rec, now)))
	_ = tw.Flush()
}

func (f *formatter) view(v scheduling.View, at time.Time) {
	line := fmt.Sprintf("%s  %s", at.UTC().Format(time.RFC3339), v.Status)
	if !v.ScheduledAt.IsZero() {
		line += "  starts " + relative(v.TimeUntilStart)
	}
	if v.CoachID != "" {
		line += "  coach " + v.CoachID
	}
	if v.CanJoin {
		line += "  joinable " + v.MeetingLink
	}
	fmt.Fprintln(f.w, line)
}

func (f *formatter) records(recs []scheduling.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(f.w, "no schedules")
		return
	}
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTATUS\tSTARTS\tCOACH")
	for _, rec := range recs {
		starts := "-"
		if rec.Scheduled() {
			starts = rec.ScheduledAt.UTC().Format(time.RFC3339)
		}
		coach := rec.CoachID
		if coach == "" {
			coach = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.SessionID, rec.Status, starts, coach)
	}
	_ = tw.Flush()
}

func (f *formatter) line(format string, args ...any) {
	fmt.Fprintf(f.w, format+"\n", args...)
}

func relative(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d > 0:
		return "in " + d.String()
	case d < 0:
		return (-d).String() + " ago"
	}
	return "now"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
