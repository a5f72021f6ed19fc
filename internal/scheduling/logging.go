package scheduling

import "log/slog"

// Recorder receives operational counters from the scheduling core.
type Recorder interface {
	PollCompleted(outcome string)
	CompletionWrite(outcome string)
	Transitioned(from, to string)
}

type nopRecorder struct{}

func (nopRecorder) PollCompleted(string)        {}
func (nopRecorder) CompletionWrite(string)      {}
func (nopRecorder) Transitioned(string, string) {}

func defaultRecorder(r Recorder) Recorder {
	if r != nil {
		return r
	}
	return nopRecorder{}
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
