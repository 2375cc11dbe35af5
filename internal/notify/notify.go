// Package notify generalizes the collector's operational alerts (auth
// expiry, quality-gate failures, cycle summaries) behind a transport-agnostic
// interface. Only a structured-log transport is provided; a chat-webhook
// transport is out of scope (see DESIGN.md).
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Severity classifies an Event the way the teacher's Discord embeds used
// color (red for errors, green for success) to signal urgency.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one notifiable occurrence: a key expiring, a quality gate
// tripping, a cycle finishing. Fields mirror an embed's title/description/
// fields without committing to any particular chat transport's schema.
type Event struct {
	Severity Severity
	Title    string
	Message  string
	Fields   map[string]string
	At       time.Time
}

// Notifier delivers Events. Implementations must not block the caller for
// longer than a few seconds; a slow or failing notifier must never abort a
// collection cycle.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier is the design default: it renders every Event through slog at
// a level derived from Severity. This is the transport actually wired into
// the CLI; anything richer belongs to an operator's own log pipeline.
type LogNotifier struct {
	Logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier, defaulting to slog.Default() when
// logger is nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	level := slog.LevelInfo
	switch event.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	args := make([]any, 0, 2+2*len(event.Fields))
	args = append(args, "title", event.Title)
	for k, v := range event.Fields {
		args = append(args, k, v)
	}
	n.Logger.Log(ctx, level, event.Message, args...)
	return nil
}

// Multi fans one Event out to several Notifiers, collecting (not
// short-circuiting on) individual failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("notify: %w", err)
		}
	}
	return firstErr
}

// AuthExpired builds the Event for an AUTH_EXPIRED collection abort, the
// one case severe enough that the teacher paged a human for it.
func AuthExpired(cycleID string, matchesCollected int, runtime time.Duration) Event {
	return Event{
		Severity: SeverityError,
		Title:    "collection credential expired",
		Message:  fmt.Sprintf("cycle %s aborted: credential rejected after %d matches", cycleID, matchesCollected),
		Fields: map[string]string{
			"cycleId":          cycleID,
			"matchesCollected": fmt.Sprintf("%d", matchesCollected),
			"runtime":          runtime.String(),
		},
	}
}

// QualityBelowThreshold builds the Event for a quality-gate failure.
func QualityBelowThreshold(cycleID string, score, threshold float64) Event {
	return Event{
		Severity: SeverityWarning,
		Title:    "quality gate failed",
		Message:  fmt.Sprintf("cycle %s scored %.1f, below threshold %.0f", cycleID, score, threshold*100),
		Fields: map[string]string{
			"cycleId":   cycleID,
			"score":     fmt.Sprintf("%.1f", score),
			"threshold": fmt.Sprintf("%.0f", threshold*100),
		},
	}
}

// CycleComplete builds the Event for a routine successful cycle, the
// equivalent of the teacher's end-of-run summary print.
func CycleComplete(cycleID string, matchesCollected int, runtime time.Duration) Event {
	return Event{
		Severity: SeverityInfo,
		Title:    "collection cycle complete",
		Message:  fmt.Sprintf("cycle %s finished: %d matches in %s", cycleID, matchesCollected, runtime),
		Fields: map[string]string{
			"cycleId":          cycleID,
			"matchesCollected": fmt.Sprintf("%d", matchesCollected),
			"runtime":          runtime.String(),
		},
	}
}
