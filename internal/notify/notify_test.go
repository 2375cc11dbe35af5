package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier_RendersTitleAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	n := NewLogNotifier(logger)

	err := n.Notify(context.Background(), Event{
		Severity: SeverityWarning,
		Title:    "quality gate failed",
		Message:  "cycle 20260806 scored 55.0",
		Fields:   map[string]string{"cycleId": "20260806"},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "quality gate failed")
	assert.Contains(t, out, "cycleId=20260806")
	assert.Contains(t, out, "level=WARN")
}

func TestLogNotifier_NilLoggerFallsBackToDefault(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.NotNil(t, n.Logger)
}

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestMulti_FansOutAndCollectsFirstError(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{err: context.Canceled}
	c := &recordingNotifier{}
	m := Multi{a, b, c}

	err := m.Notify(context.Background(), Event{Title: "x"})
	require.Error(t, err, "expected the second notifier's error to propagate")
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Len(t, c.events, 1)
}

func TestAuthExpired_HasErrorSeverity(t *testing.T) {
	event := AuthExpired("20260806", 42, 0)
	assert.Equal(t, SeverityError, event.Severity)
	assert.Equal(t, "20260806", event.Fields["cycleId"])
}
