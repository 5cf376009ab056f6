// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package autobone

// RejectionReason explains why a start request was refused locally.
// Rejections are never sent over the channel.
type RejectionReason string

func (r RejectionReason) Error() string { return string(r) }

const (
	ErrAlreadyRunning     RejectionReason = "a process stage is already running"
	ErrMissingRecording   RejectionReason = "no recording available to save"
	ErrMissingCalibration RejectionReason = "no calibration available to apply"
	ErrUnknownStage       RejectionReason = "unknown process stage"
)
