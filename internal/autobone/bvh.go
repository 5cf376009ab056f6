// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package autobone

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/relabs-tech/autobone/internal/rpc"
)

// BVHRecorder drives the plain record/stop capture. It only mirrors what the
// service reports; Toggle never changes the local flag.
type BVHRecorder struct {
	ch       rpc.Channel
	onChange func(recording bool)

	mu        sync.Mutex
	recording bool
}

func NewBVHRecorder(ch rpc.Channel, onChange func(recording bool)) *BVHRecorder {
	return &BVHRecorder{ch: ch, onChange: onChange}
}

func (b *BVHRecorder) Recording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recording
}

// Toggle asks the service to stop if it is recording, start otherwise.
func (b *BVHRecorder) Toggle(ctx context.Context) error {
	req := RecordBVHRequest{Stop: b.Recording()}
	if err := b.ch.Send(ctx, rpc.RecordBVHRequest, req); err != nil {
		return fmt.Errorf("autobone: bvh request: %w", err)
	}
	return nil
}

// HandleStatus records the capture state reported by the service.
func (b *BVHRecorder) HandleStatus(st RecordBVHStatus) {
	b.mu.Lock()
	changed := b.recording != st.Recording
	b.recording = st.Recording
	b.mu.Unlock()

	log.Printf("autobone: bvh recording=%t", st.Recording)
	if changed && b.onChange != nil {
		b.onChange(st.Recording)
	}
}
