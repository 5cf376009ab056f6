// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package autobone

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProcessStage identifies which AutoBone sub-operation a request or status
// event refers to. Values match the wire enum; StageNone means "unset".
type ProcessStage int

const (
	StageNone ProcessStage = iota
	StageRecord
	StageSave
	StageProcess
	StageApply
)

var stageNames = map[ProcessStage]string{
	StageNone:    "NONE",
	StageRecord:  "RECORD",
	StageSave:    "SAVE",
	StageProcess: "PROCESS",
	StageApply:   "APPLY",
}

func (s ProcessStage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STAGE(%d)", int(s))
}

// Valid reports whether s is one of the four requestable stages.
func (s ProcessStage) Valid() bool {
	return s >= StageRecord && s <= StageApply
}

// ParseStage accepts the stage name in any case ("record", "PROCESS", ...).
func ParseStage(name string) (ProcessStage, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for stage, n := range stageNames {
		if stage != StageNone && n == upper {
			return stage, nil
		}
	}
	return StageNone, fmt.Errorf("unknown process stage %q", name)
}

// MarshalJSON encodes the stage as its numeric wire value.
func (s ProcessStage) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(s))
}

// UnmarshalJSON accepts either the numeric wire value or the stage name.
// Out-of-range numbers decode as-is; the reducer treats them as unset.
func (s *ProcessStage) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = ProcessStage(n)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("process stage: %w", err)
	}
	stage, err := ParseStage(name)
	if err != nil {
		return err
	}
	*s = stage
	return nil
}
