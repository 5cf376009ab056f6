// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package autobone

// ProcessRequest asks the service to run one stage.
type ProcessRequest struct {
	ProcessType ProcessStage `json:"processType"`
}

// StageStatusEvent reports coarse progress or completion of a stage.
// Events without a stage are heartbeats and carry no state change.
type StageStatusEvent struct {
	ProcessType ProcessStage `json:"processType"`
	Completed   bool         `json:"completed"`
	Success     bool         `json:"success"`
	Current     int          `json:"current"`
	Total       int          `json:"total"`
	Message     string       `json:"message,omitempty"`
}

// SkeletonPart is one adjusted body proportion reported by the optimizer.
type SkeletonPart struct {
	Bone  string  `json:"bone"`
	Value float64 `json:"value"`
}

// EpochEvent reports one iteration of the refinement loop of the Process stage.
type EpochEvent struct {
	CurrentEpoch          int            `json:"currentEpoch"`
	TotalEpochs           int            `json:"totalEpochs"`
	EpochError            float64        `json:"epochError"`
	AdjustedSkeletonParts []SkeletonPart `json:"adjustedSkeletonParts,omitempty"`
}

// RecordBVHRequest starts or stops the plain BVH capture, outside the staged flow.
type RecordBVHRequest struct {
	Stop bool `json:"stop"`
}

// RecordBVHStatus reflects whether BVH capture is active.
type RecordBVHStatus struct {
	Recording bool `json:"recording"`
}

// StageFinished is raised once per accepted completion event.
// It is observational only.
type StageFinished struct {
	Stage   ProcessStage
	Success bool
	Message string
}

// EpochDiagnostics surfaces per-epoch optimizer output.
// Applied is false when the epoch arrived outside a running Process stage.
type EpochDiagnostics struct {
	CurrentEpoch int
	TotalEpochs  int
	EpochError   float64
	Parts        []SkeletonPart
	Applied      bool
}
