package services

import (
	"context"
	"encoding/json"
	"fmt"

	. "factlens/internal/common"

	"factlens/internal/messages"

	"github.com/ternarybob/arbor"
)

// Dispatcher routes inbound messages from the extension and the UI.
type Dispatcher struct {
	coordinator *Coordinator
	ready       *ReadySignals
	logger      arbor.ILogger
}

func NewDispatcher(coordinator *Coordinator, ready *ReadySignals, logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{
		coordinator: coordinator,
		ready:       ready,
		logger:      logger,
	}
}

// Dispatch handles msg and returns the encoded reply, if the message has
// one. Analyses are started in the background.
func (d *Dispatcher) Dispatch(_ context.Context, msg messages.Message) (json.RawMessage, error) {
	switch m := msg.(type) {
	case messages.AnalyzeRequest:
		d.logger.Info().Int("tab_id", m.TabID).Msg("Analysis requested")
		d.coordinator.RequestAnalysisAsync(m.TabID)
		return nil, nil

	case messages.GetHistory:
		entries, err := d.coordinator.History()
		if err != nil {
			return nil, WrapError(err, ErrorTypeStorage, "history_read_failed", "failed to load history")
		}
		return messages.Encode(messages.History{Entries: entries})

	case messages.SettingsChanged:
		// Updates may omit keys, as the service's own broadcast does.
		settings := d.coordinator.Settings().Merge(m.Settings)
		if err := d.coordinator.UpdateSettings(settings); err != nil {
			return nil, err
		}
		return nil, nil

	case messages.ContentReady:
		if !d.ready.Signal(m.TabID) {
			d.logger.Debug().Int("tab_id", m.TabID).Msg("Ready signal with no waiting handshake")
		}
		return nil, nil

	case messages.TabUpdated:
		d.coordinator.AutoScanAsync(m.TabID, m.URL)
		return nil, nil

	case messages.Ping:
		return messages.PongReply(), nil

	case messages.History,
		messages.AnalysisProgress,
		messages.AnalysisComplete,
		messages.AnalysisError,
		messages.ExtractContent,
		messages.ExtractContentResponse:
		return nil, NewValidationError("outbound_message", fmt.Sprintf("%s messages are not accepted by the service", m.Type()))

	case nil:
		return nil, NewValidationError("nil_message", "no message")

	default:
		return nil, NewValidationError("unknown_message", fmt.Sprintf("unhandled message type %s", msg.Type()))
	}
}
