// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package autobone

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/relabs-tech/autobone/internal/rpc"
)

// Session binds a Controller and a BVHRecorder to a channel for the lifetime
// of one calibration session.
type Session struct {
	Controller *Controller
	BVH        *BVHRecorder

	closeOnce   sync.Once
	unsubscribe []func()
}

// Open creates the controller and recorder and registers their handlers.
func Open(ch rpc.Channel, l Listeners, onBVH func(bool)) *Session {
	s := &Session{
		Controller: NewController(ch, l),
		BVH:        NewBVHRecorder(ch, onBVH),
	}

	s.unsubscribe = []func(){
		ch.Subscribe(rpc.AutoBoneProcessStatus, decodeInto(rpc.AutoBoneProcessStatus, s.Controller.HandleStatus)),
		ch.Subscribe(rpc.AutoBoneEpoch, decodeInto(rpc.AutoBoneEpoch, s.Controller.HandleEpoch)),
		ch.Subscribe(rpc.RecordBVHStatus, decodeInto(rpc.RecordBVHStatus, s.BVH.HandleStatus)),
	}
	return s
}

// Close removes the handlers and resets the process state.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, u := range s.unsubscribe {
			u()
		}
		s.Controller.Reset()
	})
}

// decodeInto adapts a typed handler to an rpc.Handler. Payloads that do not
// decode are logged and dropped.
func decodeInto[T any](msgType rpc.MessageType, fn func(T)) rpc.Handler {
	return func(payload json.RawMessage) {
		var v T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &v); err != nil {
				log.Printf("autobone: malformed %s: %v", msgType, err)
				return
			}
		}
		fn(v)
	}
}
