// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package service is a stand-in for the remote AutoBone service. It answers
// stage requests with the same status and epoch traffic the real service
// produces, which is enough to drive the client end to end.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/autobone/internal/autobone"
	"github.com/relabs-tech/autobone/internal/rpc"
)

// Options tunes the simulated workload.
type Options struct {
	StepInterval time.Duration // delay between emitted events
	RecordSteps  int           // progress events emitted while recording
	Epochs       int           // refinement epochs during Process
}

func (o Options) withDefaults() Options {
	if o.RecordSteps <= 0 {
		o.RecordSteps = 10
	}
	if o.Epochs <= 0 {
		o.Epochs = 20
	}
	return o
}

// Service holds what the remote side knows: whether a process is running
// and which artifacts exist.
type Service struct {
	opts Options

	mu             sync.Mutex
	running        bool
	hasRecording   bool
	hasCalibration bool
	bvhRecording   bool
	skeleton       []autobone.SkeletonPart
}

func New(opts Options) *Service {
	return &Service{
		opts: opts.withDefaults(),
		skeleton: []autobone.SkeletonPart{
			{Bone: "HEAD", Value: 0.10},
			{Bone: "NECK", Value: 0.10},
			{Bone: "TORSO", Value: 0.64},
			{Bone: "CHEST", Value: 0.32},
			{Bone: "WAIST", Value: 0.04},
			{Bone: "HIPS_WIDTH", Value: 0.26},
			{Bone: "LEGS_LENGTH", Value: 0.86},
			{Bone: "KNEE_HEIGHT", Value: 0.43},
		},
	}
}

// attachment tracks the stage goroutines started on behalf of one channel.
// wg.Add only happens under Service.mu while detached is false.
type attachment struct {
	ctx      context.Context
	ch       rpc.Channel
	wg       sync.WaitGroup
	detached bool
}

// Attach serves requests arriving on ch until ctx is done or the returned
// detach func is called. Detach waits for in-flight stages to stop.
func (s *Service) Attach(ctx context.Context, ch rpc.Channel) (detach func()) {
	ctx, cancel := context.WithCancel(ctx)
	a := &attachment{ctx: ctx, ch: ch}

	unsubs := []func(){
		ch.Subscribe(rpc.AutoBoneProcessRequest, func(payload json.RawMessage) {
			var req autobone.ProcessRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				log.Printf("service: malformed process request: %v", err)
				return
			}
			s.handleProcess(a, req)
		}),
		ch.Subscribe(rpc.RecordBVHRequest, func(payload json.RawMessage) {
			var req autobone.RecordBVHRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				log.Printf("service: malformed bvh request: %v", err)
				return
			}
			s.handleBVH(ctx, ch, req)
		}),
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			a.detached = true
			s.mu.Unlock()

			for _, u := range unsubs {
				u()
			}
			cancel()
			a.wg.Wait()
		})
	}
}

func (s *Service) handleProcess(a *attachment, req autobone.ProcessRequest) {
	ctx, ch := a.ctx, a.ch
	stage := req.ProcessType
	if !stage.Valid() {
		log.Printf("service: ignoring request for %s", stage)
		return
	}

	s.mu.Lock()
	if a.detached {
		s.mu.Unlock()
		return
	}
	if s.running {
		s.mu.Unlock()
		s.emit(ctx, ch, rpc.AutoBoneProcessStatus, autobone.StageStatusEvent{
			ProcessType: stage,
			Completed:   true,
			Success:     false,
			Message:     "Another process is already running",
		})
		return
	}
	a.wg.Add(1)
	s.running = true
	s.mu.Unlock()

	log.Printf("service: starting %s", stage)
	go func() {
		defer a.wg.Done()
		ok, msg := s.run(ctx, ch, stage)

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		s.emit(ctx, ch, rpc.AutoBoneProcessStatus, autobone.StageStatusEvent{
			ProcessType: stage,
			Completed:   true,
			Success:     ok,
			Message:     msg,
		})
		log.Printf("service: %s finished (success=%t)", stage, ok)
	}()
}

// run executes one stage and reports its outcome.
func (s *Service) run(ctx context.Context, ch rpc.Channel, stage autobone.ProcessStage) (bool, string) {
	switch stage {
	case autobone.StageRecord:
		s.setRecording(false)
		total := s.opts.RecordSteps
		for i := 0; i <= total; i++ {
			if !s.wait(ctx) {
				return false, "Recording cancelled"
			}
			s.emit(ctx, ch, rpc.AutoBoneProcessStatus, autobone.StageStatusEvent{
				ProcessType: stage,
				Current:     i,
				Total:       total,
			})
		}
		s.setRecording(true)
		return true, "Recording completed"

	case autobone.StageSave:
		if !s.recordingAvailable() {
			return false, "No recording found to save"
		}
		if !s.wait(ctx) {
			return false, "Save cancelled"
		}
		s.emit(ctx, ch, rpc.AutoBoneProcessStatus, autobone.StageStatusEvent{
			ProcessType: stage,
			Current:     1,
			Total:       1,
			Message:     fmt.Sprintf("Recording saved to ABRecording%d.pfr", time.Now().Unix()),
		})
		return true, "Recording saved"

	case autobone.StageProcess:
		s.setCalibration(false)
		if !s.recordingAvailable() {
			return false, "No recordings found to process"
		}
		return s.refine(ctx, ch)

	case autobone.StageApply:
		if !s.calibrationAvailable() {
			return false, "No calibration to apply"
		}
		if !s.wait(ctx) {
			return false, "Apply cancelled"
		}
		return true, "Adjusted skeleton applied"
	}
	return false, "Unknown process"
}

// refine emits one epoch event per iteration with a decaying error; the
// final epoch carries the adjusted proportions.
func (s *Service) refine(ctx context.Context, ch rpc.Channel) (bool, string) {
	total := s.opts.Epochs
	for epoch := 1; epoch <= total; epoch++ {
		if !s.wait(ctx) {
			return false, "Processing cancelled"
		}
		ev := autobone.EpochEvent{
			CurrentEpoch: epoch,
			TotalEpochs:  total,
			EpochError:   math.Exp(-float64(epoch) / float64(total) * 4),
		}
		if epoch == total {
			ev.AdjustedSkeletonParts = s.skeletonSnapshot()
		}
		s.emit(ctx, ch, rpc.AutoBoneEpoch, ev)
	}
	s.setCalibration(true)
	return true, "Processing completed"
}

func (s *Service) handleBVH(ctx context.Context, ch rpc.Channel, req autobone.RecordBVHRequest) {
	s.mu.Lock()
	s.bvhRecording = !req.Stop
	recording := s.bvhRecording
	s.mu.Unlock()

	log.Printf("service: bvh recording=%t", recording)
	s.emit(ctx, ch, rpc.RecordBVHStatus, autobone.RecordBVHStatus{Recording: recording})
}

func (s *Service) wait(ctx context.Context) bool {
	if s.opts.StepInterval <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.opts.StepInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) emit(ctx context.Context, ch rpc.Channel, msgType rpc.MessageType, payload any) {
	if err := ch.Send(ctx, msgType, payload); err != nil {
		log.Printf("service: send %s: %v", msgType, err)
	}
}

func (s *Service) setRecording(v bool) {
	s.mu.Lock()
	s.hasRecording = v
	s.mu.Unlock()
}

func (s *Service) setCalibration(v bool) {
	s.mu.Lock()
	s.hasCalibration = v
	s.mu.Unlock()
}

func (s *Service) recordingAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasRecording
}

func (s *Service) calibrationAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasCalibration
}

func (s *Service) skeletonSnapshot() []autobone.SkeletonPart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]autobone.SkeletonPart(nil), s.skeleton...)
}
