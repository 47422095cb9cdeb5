package services

import (
	"context"
	"errors"
	"fmt"

	. "factlens/internal/interfaces"

	"factlens/internal/messages"

	"github.com/ternarybob/arbor"
)

// MultiNotifier fans a message out to every notifier. All notifiers are
// tried; their failures are joined.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, msg messages.Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type logNotifier struct {
	logger arbor.ILogger
}

// NewLogNotifier writes UI-bound messages to the log. The scan command uses
// it in place of a UI.
func NewLogNotifier(logger arbor.ILogger) Notifier {
	return &logNotifier{logger: logger}
}

func (l *logNotifier) Notify(_ context.Context, msg messages.Message) error {
	switch m := msg.(type) {
	case messages.AnalysisProgress:
		l.logger.Info().Int("tab_id", m.TabID).Str("stage", m.Stage).Msg("Analysis progress")
	case messages.AnalysisComplete:
		l.logger.Info().Int("tab_id", m.TabID).Str("url", m.URL).Int("score", m.Results.CredibilityScore).Msg("Analysis complete")
	case messages.AnalysisError:
		l.logger.Warn().Int("tab_id", m.TabID).Str("error", m.Error).Msg("Analysis error")
	case nil:
		return fmt.Errorf("nil message")
	default:
		l.logger.Debug().Str("type", string(msg.Type())).Msg("Notification")
	}
	return nil
}

// notifyOrLog delivers msg and logs a delivery failure instead of dropping it
// silently.
func notifyOrLog(ctx context.Context, n Notifier, msg messages.Message, logger arbor.ILogger) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, msg); err != nil {
		logger.Warn().Err(err).Str("type", string(msg.Type())).Msg("Failed to deliver notification")
	}
}
