// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream connects long-running producers to their consumers.
//
// A producer writes Events to a channel it owns and closes when finished.
// Exactly one consumer drains that channel, either Unify (fold everything
// into one task status) or Forward (push each event to an Observer).
package stream

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// EVENTS
// =============================================================================

// Kind tags an Event.
type Kind uint8

const (
	// KindInterim is partial, informational output that is safe to drop.
	KindInterim Kind = iota + 1

	// KindFinal is the authoritative terminal result of a producer run.
	KindFinal

	// KindErrors is a non-empty batch of non-fatal error descriptions.
	KindErrors
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInterim:
		return "interim"
	case KindFinal:
		return "final"
	case KindErrors:
		return "errors"
	default:
		return "unknown"
	}
}

// Event is one message from a producer. I is the interim payload type and F
// the final payload type. Only the field matching Kind is meaningful.
type Event[I, F any] struct {
	Kind    Kind
	Interim I
	Final   F
	Errors  []string
}

// Interim builds an interim event.
func Interim[I, F any](v I) Event[I, F] {
	return Event[I, F]{Kind: KindInterim, Interim: v}
}

// Final builds a final event.
func Final[I, F any](v F) Event[I, F] {
	return Event[I, F]{Kind: KindFinal, Final: v}
}

// Errors builds an error batch. Producers must not send an empty batch.
func Errors[I, F any](errs ...string) Event[I, F] {
	return Event[I, F]{Kind: KindErrors, Errors: errs}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNoFinal is returned by Unify when the producer closed its channel
// without sending a final result or any error.
var ErrNoFinal = errors.New("producer closed without a final result")

// ProducerErrors is the aggregated failure of a producer run that ended
// without a final result. Errors keeps arrival order across batches.
type ProducerErrors struct {
	Errors []string
}

func (e *ProducerErrors) Error() string {
	return fmt.Sprintf("producer reported %d error(s): %s", len(e.Errors), strings.Join(e.Errors, "; "))
}
