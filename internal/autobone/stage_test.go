// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package autobone

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		in       string
		expected ProcessStage
		wantErr  bool
	}{
		{"record", StageRecord, false},
		{"SAVE", StageSave, false},
		{" Process ", StageProcess, false},
		{"apply", StageApply, false},
		{"none", StageNone, true},
		{"calibrate", StageNone, true},
	}

	for _, tt := range tests {
		got, err := ParseStage(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.expected, got)
	}
}

func TestStageStatusEvent_DecodesWireForms(t *testing.T) {
	var numeric StageStatusEvent
	require.NoError(t, json.Unmarshal([]byte(`{"processType":3,"current":2,"total":5}`), &numeric))
	assert.Equal(t, StageProcess, numeric.ProcessType)

	var named StageStatusEvent
	require.NoError(t, json.Unmarshal([]byte(`{"processType":"apply","completed":true}`), &named))
	assert.Equal(t, StageApply, named.ProcessType)

	var missing StageStatusEvent
	require.NoError(t, json.Unmarshal([]byte(`{"completed":true}`), &missing))
	assert.False(t, missing.ProcessType.Valid())

	var outOfRange StageStatusEvent
	require.NoError(t, json.Unmarshal([]byte(`{"processType":9}`), &outOfRange))
	assert.False(t, outOfRange.ProcessType.Valid())
	assert.Equal(t, "STAGE(9)", outOfRange.ProcessType.String())
}
