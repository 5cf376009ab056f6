// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package autobone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func running(stage ProcessStage) State {
	return State{}.begin(stage)
}

func TestReduceStatus_RecordSuccess(t *testing.T) {
	s, fin := ReduceStatus(running(StageRecord), StageStatusEvent{
		ProcessType: StageRecord,
		Completed:   true,
		Success:     true,
	})

	assert.False(t, s.Running)
	assert.Equal(t, 1.0, s.Progress)
	assert.True(t, s.HasRecording)
	require.NotNil(t, fin)
	assert.Equal(t, StageFinished{Stage: StageRecord, Success: true}, *fin)
}

func TestReduceStatus_ProcessFailure(t *testing.T) {
	start := running(StageProcess)
	s, fin := ReduceStatus(start, StageStatusEvent{
		ProcessType: StageProcess,
		Completed:   true,
		Success:     false,
		Message:     "No recordings found",
	})

	assert.False(t, s.Running)
	assert.Equal(t, 1.0, s.Progress)
	assert.False(t, s.HasCalibration)
	require.NotNil(t, fin)
	assert.False(t, fin.Success)
	assert.Equal(t, "No recordings found", fin.Message)
}

func TestReduceStatus_Progress(t *testing.T) {
	s, fin := ReduceStatus(running(StageRecord), StageStatusEvent{
		ProcessType: StageRecord,
		Current:     3,
		Total:       10,
	})

	assert.Nil(t, fin)
	assert.True(t, s.Running)
	assert.InDelta(t, 0.3, s.Progress, 1e-9)
}

func TestReduceStatus_ProgressNeverDecreases(t *testing.T) {
	s := running(StageRecord)
	s, _ = ReduceStatus(s, StageStatusEvent{ProcessType: StageRecord, Current: 6, Total: 10})
	s, _ = ReduceStatus(s, StageStatusEvent{ProcessType: StageRecord, Current: 2, Total: 10})

	assert.InDelta(t, 0.6, s.Progress, 1e-9)
}

func TestReduceStatus_ProgressClamped(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		expected float64
	}{
		{"over total", 15, 10, 1},
		{"zero total", 5, 0, 0},
		{"negative total", 5, -3, 0},
		{"negative current", -1, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := ReduceStatus(running(StageSave), StageStatusEvent{
				ProcessType: StageSave,
				Current:     tt.current,
				Total:       tt.total,
			})
			assert.Equal(t, tt.expected, s.Progress)
			assert.True(t, s.Running)
		})
	}
}

func TestReduceStatus_IgnoresUnsetStage(t *testing.T) {
	start := running(StageRecord)
	s, fin := ReduceStatus(start, StageStatusEvent{Completed: true, Success: true, Current: 1, Total: 2})

	assert.Nil(t, fin)
	assert.Equal(t, start, s)
}

func TestReduceStatus_IgnoresOtherStage(t *testing.T) {
	start := running(StageRecord)
	s, fin := ReduceStatus(start, StageStatusEvent{
		ProcessType: StageProcess,
		Completed:   true,
		Success:     true,
	})

	assert.Nil(t, fin)
	assert.Equal(t, start, s)
}

func TestReduceStatus_SaveAndApplyDoNotTouchFlags(t *testing.T) {
	for _, stage := range []ProcessStage{StageSave, StageApply} {
		t.Run(stage.String(), func(t *testing.T) {
			start := State{HasRecording: true, HasCalibration: true}.begin(stage)
			s, fin := ReduceStatus(start, StageStatusEvent{ProcessType: stage, Completed: true, Success: false})

			require.NotNil(t, fin)
			assert.False(t, s.Running)
			assert.True(t, s.HasRecording)
			assert.True(t, s.HasCalibration)
		})
	}
}

func TestReduceStatus_CompletionIsIdempotent(t *testing.T) {
	ev := StageStatusEvent{ProcessType: StageRecord, Completed: true, Success: true}

	once, fin1 := ReduceStatus(running(StageRecord), ev)
	twice, fin2 := ReduceStatus(once, ev)

	assert.NotNil(t, fin1)
	assert.Nil(t, fin2)
	assert.Equal(t, once, twice)
}

func TestReduceEpoch(t *testing.T) {
	s, applied := ReduceEpoch(running(StageProcess), EpochEvent{CurrentEpoch: 4, TotalEpochs: 8})

	assert.True(t, applied)
	assert.Equal(t, 0.5, s.Progress)
	assert.True(t, s.Running)
}

func TestReduceEpoch_ZeroTotal(t *testing.T) {
	start := running(StageProcess)
	start.Progress = 0.25

	s, applied := ReduceEpoch(start, EpochEvent{CurrentEpoch: 3, TotalEpochs: 0, EpochError: 0.1})

	assert.False(t, applied)
	assert.Equal(t, start, s)
}

func TestReduceEpoch_IgnoredOutsideProcess(t *testing.T) {
	tests := []struct {
		name  string
		state State
	}{
		{"idle", State{}},
		{"recording", running(StageRecord)},
		{"finished process", State{Stage: StageProcess, Progress: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, applied := ReduceEpoch(tt.state, EpochEvent{CurrentEpoch: 1, TotalEpochs: 2})
			assert.False(t, applied)
			assert.Equal(t, tt.state, s)
		})
	}
}

func TestReduceEpoch_DoesNotTouchFlags(t *testing.T) {
	start := State{HasRecording: true}.begin(StageProcess)
	s, _ := ReduceEpoch(start, EpochEvent{
		CurrentEpoch: 8,
		TotalEpochs:  8,
		EpochError:   0.01,
		AdjustedSkeletonParts: []SkeletonPart{
			{Bone: "TORSO", Value: 0.6},
		},
	})

	assert.True(t, s.Running)
	assert.Equal(t, 1.0, s.Progress)
	assert.True(t, s.HasRecording)
	assert.False(t, s.HasCalibration)
}
