// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package autobone

// ReduceStatus applies a status event to s. The returned StageFinished is
// non-nil only when the event completed the running stage.
//
// Events with no stage, or for a stage other than the running one, are
// dropped. A repeated completion event is therefore a no-op.
func ReduceStatus(s State, ev StageStatusEvent) (State, *StageFinished) {
	if !ev.ProcessType.Valid() {
		return s, nil
	}
	if !s.Running || ev.ProcessType != s.Stage {
		return s, nil
	}

	if ev.Total > 0 && ev.Current >= 0 {
		s = s.advance(float64(ev.Current) / float64(ev.Total))
	}

	if !ev.Completed {
		return s, nil
	}

	s.Running = false
	s.Progress = 1
	switch ev.ProcessType {
	case StageRecord:
		s.HasRecording = ev.Success
	case StageProcess:
		s.HasCalibration = ev.Success
	}

	return s, &StageFinished{
		Stage:   ev.ProcessType,
		Success: ev.Success,
		Message: ev.Message,
	}
}

// ReduceEpoch applies an epoch event to s. Epochs only move progress while
// a Process stage is running; the bool result reports whether they did.
func ReduceEpoch(s State, ev EpochEvent) (State, bool) {
	if !s.Running || s.Stage != StageProcess {
		return s, false
	}
	if ev.TotalEpochs <= 0 {
		return s, false
	}
	return s.advance(float64(ev.CurrentEpoch) / float64(ev.TotalEpochs)), true
}

// advance moves progress forward to ratio, never backwards.
func (s State) advance(ratio float64) State {
	if p := clamp01(ratio); p > s.Progress {
		s.Progress = p
	}
	return s
}
