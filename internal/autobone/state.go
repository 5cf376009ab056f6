// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package autobone

// State is a snapshot of the calibration process as seen by the client.
//
// Running is true from an accepted start request until the completion event
// of that stage. Progress stays in [0,1] and never decreases while a stage is
// running. HasRecording gates Save, HasCalibration gates Apply.
type State struct {
	Stage          ProcessStage `json:"stage"`
	Running        bool         `json:"running"`
	Progress       float64      `json:"progress"`
	HasRecording   bool         `json:"has_recording"`
	HasCalibration bool         `json:"has_calibration"`
}

// View is what presentation layers render.
type View struct {
	Running        bool    `json:"running"`
	Progress       float64 `json:"progress"`
	HasRecording   bool    `json:"has_recording"`
	HasCalibration bool    `json:"has_calibration"`
}

func (s State) View() View {
	return View{
		Running:        s.Running,
		Progress:       s.Progress,
		HasRecording:   s.HasRecording,
		HasCalibration: s.HasCalibration,
	}
}

// CanStart reports whether a start request for stage would be accepted.
// A nil error means accepted.
func (s State) CanStart(stage ProcessStage) error {
	if !stage.Valid() {
		return ErrUnknownStage
	}
	if s.Running {
		return ErrAlreadyRunning
	}
	switch stage {
	case StageSave:
		if !s.HasRecording {
			return ErrMissingRecording
		}
	case StageApply:
		if !s.HasCalibration {
			return ErrMissingCalibration
		}
	}
	return nil
}

// begin returns the state after an accepted start request.
func (s State) begin(stage ProcessStage) State {
	s.Stage = stage
	s.Running = true
	s.Progress = 0
	switch stage {
	case StageRecord:
		s.HasRecording = false
	case StageProcess:
		s.HasCalibration = false
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
