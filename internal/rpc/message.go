// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MessageType tags the payload carried by an Envelope.
type MessageType string

const (
	AutoBoneProcessRequest MessageType = "AutoBoneProcessRequest"
	AutoBoneProcessStatus  MessageType = "AutoBoneProcessStatus"
	AutoBoneEpoch          MessageType = "AutoBoneEpoch"
	RecordBVHRequest       MessageType = "RecordBVHRequest"
	RecordBVHStatus        MessageType = "RecordBVHStatus"
)

// Envelope is the JSON frame exchanged on every transport.
type Envelope struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps payload into an Envelope with a fresh ID.
func Encode(msgType MessageType, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("rpc: empty message type")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{
		Type:    msgType,
		ID:      uuid.NewString(),
		Payload: body,
	})
}

// Decode parses a frame. An envelope without a type is an error.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("rpc: decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("rpc: envelope without type")
	}
	return env, nil
}
