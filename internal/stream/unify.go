// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"github.com/jeranaias/filescout/internal/tasks"
)

type unifyConfig[I any] struct {
	progress func(I)
}

// UnifyOption customizes Unify.
type UnifyOption[I any] func(*unifyConfig[I])

// WithProgress passes every interim payload to fn instead of dropping it.
// fn runs on the draining goroutine and must not block.
func WithProgress[I any](fn func(I)) UnifyOption[I] {
	return func(c *unifyConfig[I]) { c.progress = fn }
}

// Unify drains events inside a task's Run and folds them into one status.
//
// The first final event wins: Unify returns Done with its payload, drops any
// errors collected so far and stops reading. If the channel closes first,
// the collected errors are returned as a *ProducerErrors, or ErrNoFinal when
// there were none. The interrupter is checked before every receive; once it
// fires Unify returns Canceled and the collected errors are dropped.
func Unify[I, F any](in *tasks.Interrupter, events <-chan Event[I, F], opts ...UnifyOption[I]) (tasks.ExecStatus, error) {
	var cfg unifyConfig[I]
	for _, opt := range opts {
		opt(&cfg)
	}

	var errs []string
	for {
		if in.Interrupted() {
			return tasks.Canceled(), nil
		}

		select {
		case <-in.Done():
			return tasks.Canceled(), nil

		case ev, ok := <-events:
			if !ok {
				if len(errs) > 0 {
					return tasks.ExecStatus{}, &ProducerErrors{Errors: errs}
				}
				return tasks.ExecStatus{}, ErrNoFinal
			}

			switch ev.Kind {
			case KindFinal:
				return tasks.Done(tasks.Out(ev.Final)), nil
			case KindErrors:
				errs = append(errs, ev.Errors...)
			case KindInterim:
				if cfg.progress != nil {
					cfg.progress(ev.Interim)
				}
			}
		}
	}
}
