package services

import (
	"context"
	"sync"
	"time"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/messages"

	"github.com/ternarybob/arbor"
)

// HandshakeState is a step of the agent handshake.
type HandshakeState string

const (
	HandshakeIdle         HandshakeState = "idle"
	HandshakeProbing      HandshakeState = "probing"
	HandshakeInjecting    HandshakeState = "injecting"
	HandshakeWaitingReady HandshakeState = "waiting-ready"
	HandshakeReady        HandshakeState = "ready"
	HandshakeFailed       HandshakeState = "failed"
)

// ReadySignals delivers contentScriptReady notifications to handshakes
// waiting on a tab.
type ReadySignals struct {
	mu      sync.Mutex
	waiters map[int][]*readyWaiter
}

type readyWaiter struct {
	ch chan struct{}
}

func NewReadySignals() *ReadySignals {
	return &ReadySignals{waiters: make(map[int][]*readyWaiter)}
}

// Subscribe registers interest in the next ready signal of tabID. The
// returned func must be called once the caller stops waiting.
func (r *ReadySignals) Subscribe(tabID int) (<-chan struct{}, func()) {
	w := &readyWaiter{ch: make(chan struct{})}

	r.mu.Lock()
	r.waiters[tabID] = append(r.waiters[tabID], w)
	r.mu.Unlock()

	return w.ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.waiters[tabID]
		for i, other := range list {
			if other == w {
				r.waiters[tabID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(r.waiters[tabID]) == 0 {
			delete(r.waiters, tabID)
		}
	}
}

// Signal wakes every waiter of tabID and reports whether there was one.
func (r *ReadySignals) Signal(tabID int) bool {
	r.mu.Lock()
	list := r.waiters[tabID]
	delete(r.waiters, tabID)
	r.mu.Unlock()

	for _, w := range list {
		close(w.ch)
	}
	return len(list) > 0
}

type handshake struct {
	host   TabHost
	ready  *ReadySignals
	config *ScanConfig
	logger arbor.ILogger
}

// NewHandshake creates the agent handshake over host.
func NewHandshake(host TabHost, ready *ReadySignals, config *ScanConfig, logger arbor.ILogger) AgentHandshake {
	return &handshake{
		host:   host,
		ready:  ready,
		config: config,
		logger: logger,
	}
}

// EnsureAgent makes sure a responsive agent runs in tabID. An agent that
// answers the first probe is used as is. Otherwise the agent is injected and
// polled until it answers a probe or pushes its ready signal. Giving up after
// the attempt ceiling is a handshake error.
func (h *handshake) EnsureAgent(ctx context.Context, tabID int) error {
	readyCh, unsubscribe := h.ready.Subscribe(tabID)
	defer unsubscribe()

	state := HandshakeIdle
	attempts := 0
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		switch state {
		case HandshakeIdle:
			state = HandshakeProbing

		case HandshakeProbing:
			if h.probe(ctx, tabID) {
				h.logger.Debug().Int("tab_id", tabID).Msg("Content script already active")
				state = HandshakeReady
			} else {
				state = HandshakeInjecting
			}

		case HandshakeInjecting:
			h.logger.Debug().Int("tab_id", tabID).Msg("Content script not responding, injecting")
			if err := h.host.Inject(ctx, tabID); err != nil {
				return NewHandshakeError("inject_failed", "Failed to inject and verify content script: "+err.Error()).
					WithCause(err).
					WithContext("tab_id", tabID)
			}
			timer = time.NewTimer(h.config.InitialDelay())
			state = HandshakeWaitingReady

		case HandshakeWaitingReady:
			select {
			case <-ctx.Done():
				return WrapError(ctx.Err(), ErrorTypeHandshake, "handshake_cancelled", "Content script handshake cancelled").
					WithContext("tab_id", tabID)
			case <-readyCh:
				state = HandshakeReady
			case <-timer.C:
				attempts++
				if h.probeOrReady(ctx, tabID, readyCh) {
					state = HandshakeReady
				} else if attempts >= h.config.MaxAttempts {
					state = HandshakeFailed
				} else {
					timer.Reset(h.config.PollInterval())
				}
			}

		case HandshakeReady:
			h.logger.Debug().Int("tab_id", tabID).Int("attempts", attempts).Msg("Content script ready")
			return nil

		case HandshakeFailed:
			return NewHandshakeError("agent_not_ready", "Content script failed to initialize after multiple attempts").
				WithContext("tab_id", tabID).
				WithContext("attempts", attempts)
		}
	}
}

// probeOrReady runs one probe and returns as soon as either the probe
// succeeds or the ready signal arrives.
func (h *handshake) probeOrReady(ctx context.Context, tabID int, readyCh <-chan struct{}) bool {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan bool, 1)
	go func() {
		result <- h.probe(probeCtx, tabID)
	}()

	select {
	case ok := <-result:
		if ok {
			return true
		}
		select {
		case <-readyCh:
			return true
		default:
			return false
		}
	case <-readyCh:
		cancel()
		<-result
		return true
	}
}

// probe sends a ping with the probe timeout. Anything but the exact pong
// token counts as no agent.
func (h *handshake) probe(ctx context.Context, tabID int) bool {
	probeCtx, cancel := context.WithTimeout(ctx, h.config.ProbeTimeout())
	defer cancel()

	if err := h.host.Connect(probeCtx, tabID); err != nil {
		h.logger.Debug().Err(err).Int("tab_id", tabID).Msg("No agent connection")
		return false
	}

	reply, err := h.host.Send(probeCtx, tabID, messages.Ping{})
	if err != nil {
		return false
	}
	if !messages.IsPong(reply) {
		h.logger.Debug().Int("tab_id", tabID).Msg("Invalid ping response")
		return false
	}
	return true
}
