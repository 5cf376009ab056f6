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

// Listeners receive state changes and derived signals. Any field may be nil.
// They are called without the controller lock held and must not block for long.
type Listeners struct {
	OnChange   func(View)
	OnFinished func(StageFinished)
	OnEpoch    func(EpochDiagnostics)
}

// Controller owns the process State. StartStage is the only way to set
// Running; only inbound completion events clear it.
type Controller struct {
	ch        rpc.Channel
	listeners Listeners

	mu    sync.Mutex
	state State
}

func NewController(ch rpc.Channel, l Listeners) *Controller {
	return &Controller{ch: ch, listeners: l}
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartStage validates and sends a stage request. A RejectionReason is
// returned without touching state or the channel. If the send itself fails
// the state is rolled back and the transport error returned.
func (c *Controller) StartStage(ctx context.Context, stage ProcessStage) error {
	c.mu.Lock()
	if err := c.state.CanStart(stage); err != nil {
		c.mu.Unlock()
		log.Printf("autobone: %s rejected: %v", stage, err)
		return err
	}
	prev := c.state
	c.state = c.state.begin(stage)
	started := c.state
	c.mu.Unlock()

	c.emitChange(started)

	if err := c.ch.Send(ctx, rpc.AutoBoneProcessRequest, ProcessRequest{ProcessType: stage}); err != nil {
		c.mu.Lock()
		// Events for this stage may have landed meanwhile; none of them can
		// be genuine since the request never left.
		if c.state.Running && c.state.Stage == stage {
			c.state = prev
		}
		rolled := c.state
		c.mu.Unlock()
		c.emitChange(rolled)
		return fmt.Errorf("autobone: request %s: %w", stage, err)
	}

	log.Printf("autobone: requested %s", stage)
	return nil
}

func (c *Controller) RequestRecord(ctx context.Context) error {
	return c.StartStage(ctx, StageRecord)
}

func (c *Controller) RequestSave(ctx context.Context) error {
	return c.StartStage(ctx, StageSave)
}

func (c *Controller) RequestProcess(ctx context.Context) error {
	return c.StartStage(ctx, StageProcess)
}

func (c *Controller) RequestApply(ctx context.Context) error {
	return c.StartStage(ctx, StageApply)
}

// HandleStatus feeds a status event through the reducer.
func (c *Controller) HandleStatus(ev StageStatusEvent) {
	if ev.ProcessType.Valid() && ev.Message != "" {
		log.Printf("autobone: %s: %s", ev.ProcessType, ev.Message)
	}

	c.mu.Lock()
	before := c.state
	after, finished := ReduceStatus(before, ev)
	c.state = after
	c.mu.Unlock()

	if after != before {
		c.emitChange(after)
	}
	if finished != nil {
		log.Printf("autobone: process %s has completed (success=%t)", finished.Stage, finished.Success)
		if c.listeners.OnFinished != nil {
			c.listeners.OnFinished(*finished)
		}
	}
}

// HandleEpoch feeds an epoch event through the reducer. Epoch error and
// skeleton parts are diagnostics only.
func (c *Controller) HandleEpoch(ev EpochEvent) {
	c.mu.Lock()
	before := c.state
	after, applied := ReduceEpoch(before, ev)
	c.state = after
	c.mu.Unlock()

	log.Printf("autobone: epoch %d/%d (error %.6f)", ev.CurrentEpoch, ev.TotalEpochs, ev.EpochError)

	if after != before {
		c.emitChange(after)
	}
	if c.listeners.OnEpoch != nil {
		c.listeners.OnEpoch(EpochDiagnostics{
			CurrentEpoch: ev.CurrentEpoch,
			TotalEpochs:  ev.TotalEpochs,
			EpochError:   ev.EpochError,
			Parts:        ev.AdjustedSkeletonParts,
			Applied:      applied,
		})
	}
}

// Reset returns the state to its initial values.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = State{}
	c.mu.Unlock()
	c.emitChange(State{})
}

func (c *Controller) emitChange(s State) {
	if c.listeners.OnChange != nil {
		c.listeners.OnChange(s.View())
	}
}
