// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"github.com/jeranaias/filescout/internal/logging"
)

// =============================================================================
// OBSERVERS
// =============================================================================

// Observer receives forwarded events. Emit failures are not retried.
type Observer interface {
	Emit(topic string, payload any) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(topic string, payload any) error

// Emit calls f(topic, payload).
func (f ObserverFunc) Emit(topic string, payload any) error {
	return f(topic, payload)
}

// Topics names the signal used for each event kind.
type Topics struct {
	Final   string
	Errors  string
	Interim string
}

// =============================================================================
// FORWARDING
// =============================================================================

type forwardConfig struct {
	logger  logging.Logger
	interim bool
}

// ForwardOption customizes Forward.
type ForwardOption func(*forwardConfig)

// WithForwardLogger sets the logger for swallowed observer failures.
func WithForwardLogger(logger logging.Logger) ForwardOption {
	return func(c *forwardConfig) { c.logger = logging.OrNoOp(logger) }
}

// WithInterim enables forwarding interim events on Topics.Interim. By
// default the interim topic is reserved and nothing is sent on it.
func WithInterim() ForwardOption {
	return func(c *forwardConfig) { c.interim = true }
}

// Forward pushes every event to obs as it arrives until the channel closes.
// Final is forwarded once with its payload, each error batch is forwarded
// as received. Observer errors are logged at debug level and ignored.
func Forward[I, F any](events <-chan Event[I, F], obs Observer, topics Topics, opts ...ForwardOption) {
	cfg := forwardConfig{logger: logging.NoOpLogger{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	finalSent := false
	for ev := range events {
		var (
			topic   string
			payload any
		)
		switch ev.Kind {
		case KindFinal:
			if finalSent {
				cfg.logger.Debug("dropping extra final event", "topic", topics.Final)
				continue
			}
			finalSent = true
			topic, payload = topics.Final, ev.Final
		case KindErrors:
			topic, payload = topics.Errors, ev.Errors
		case KindInterim:
			if !cfg.interim {
				continue
			}
			topic, payload = topics.Interim, ev.Interim
		default:
			continue
		}

		if err := obs.Emit(topic, payload); err != nil {
			cfg.logger.Debug("observer emit failed", "topic", topic, "error", err.Error())
		}
	}
}

// Go runs Forward on its own goroutine and returns immediately. The returned
// channel is closed once the producer has closed events and the loop ended.
func Go[I, F any](events <-chan Event[I, F], obs Observer, topics Topics, opts ...ForwardOption) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		Forward(events, obs, topics, opts...)
	}()
	return done
}
