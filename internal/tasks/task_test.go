// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// TASK OUTPUT TESTS
// =============================================================================

type searchPayload struct {
	Files []string
}

func TestTaskOutput_DowncastRoundTrip(t *testing.T) {
	out := Out(searchPayload{Files: []string{"a.go"}})

	require.False(t, out.IsEmpty())
	require.Equal(t, "tasks.searchPayload", out.TypeName())

	got, err := Downcast[searchPayload](out)
	require.NoError(t, err)
	require.Equal(t, []string{"a.go"}, got.Files)
}

func TestTaskOutput_DowncastWrongType(t *testing.T) {
	out := Out(42)

	_, err := Downcast[string](out)
	var de *DowncastError
	require.True(t, errors.As(err, &de))
	require.Equal(t, "int", de.Have)
	require.Equal(t, "string", de.Want)
}

func TestTaskOutput_Empty(t *testing.T) {
	for name, out := range map[string]TaskOutput{
		"Empty()": Empty(),
		"Out(nil)": Out(nil),
		"zero":     {},
	} {
		t.Run(name, func(t *testing.T) {
			require.True(t, out.IsEmpty())
			require.Equal(t, "empty", out.TypeName())

			_, err := Downcast[int](out)
			require.ErrorIs(t, err, ErrEmptyOutput)
		})
	}
}

func TestTaskOutput_DowncastToInterface(t *testing.T) {
	out := Out(errors.New("boom"))

	got, err := Downcast[error](out)
	require.NoError(t, err)
	require.EqualError(t, got, "boom")
}

// =============================================================================
// EXEC STATUS TESTS
// =============================================================================

func TestExecStatusConstructors(t *testing.T) {
	done := Done(Out("x"))
	require.Equal(t, ExecDone, done.Kind())
	require.Equal(t, "string", done.Output().TypeName())

	require.Equal(t, ExecCanceled, Canceled().Kind())
	require.Equal(t, ExecForcedAbortion, ForcedAbortion().Kind())

	shut := Shutdown("partial")
	require.Equal(t, ExecShutdown, shut.Kind())
	require.Equal(t, "partial", shut.Partial())

	require.Equal(t, "Invalid", ExecStatus{}.Kind().String())
}

func TestStatusKindString(t *testing.T) {
	require.Equal(t, "Done", StatusDone.String())
	require.Equal(t, "Error", StatusError.String())
	require.Equal(t, "Canceled", StatusCanceled.String())
	require.Equal(t, "ForcedAbortion", StatusForcedAbortion.String())
	require.Equal(t, "Shutdown", StatusShutdown.String())
	require.Equal(t, "Unknown", StatusKind(0).String())
}

// =============================================================================
// INTERRUPTER TESTS
// =============================================================================

func TestInterrupter_FiresOnce(t *testing.T) {
	in := NewInterrupter()
	require.False(t, in.Interrupted())
	require.Equal(t, InterruptNone, in.Kind())

	require.True(t, in.Cancel())
	require.True(t, in.Interrupted())
	require.Equal(t, InterruptCancel, in.Kind())

	// The first signal wins.
	require.False(t, in.Cancel())
	require.False(t, in.signal(InterruptAbort))
	require.Equal(t, InterruptCancel, in.Kind())

	select {
	case <-in.Done():
	default:
		t.Fatal("Done() should be closed after Cancel")
	}
	require.Error(t, in.Context().Err())
}

func TestNewTaskID_Unique(t *testing.T) {
	seen := make(map[TaskID]bool)
	for i := 0; i < 100; i++ {
		id := NewTaskID()
		require.False(t, seen[id], "duplicate task id %s", id)
		seen[id] = true
	}
}
