// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

// Handler receives the raw payload of one inbound message.
type Handler func(payload json.RawMessage)

// Channel is a bidirectional message channel to the remote service.
// Send is fire-and-forget: results arrive later as inbound messages.
type Channel interface {
	Send(ctx context.Context, msgType MessageType, payload any) error
	Subscribe(msgType MessageType, h Handler) (unsubscribe func())
}

// Router is the dispatch table from message type to handlers.
// Transports feed raw frames into Dispatch.
type Router struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[MessageType]map[int]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[MessageType]map[int]Handler)}
}

// Subscribe registers h for msgType. The returned func removes it and is
// safe to call more than once.
func (r *Router) Subscribe(msgType MessageType, h Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	if r.handlers[msgType] == nil {
		r.handlers[msgType] = make(map[int]Handler)
	}
	r.handlers[msgType][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.handlers[msgType], id)
			if len(r.handlers[msgType]) == 0 {
				delete(r.handlers, msgType)
			}
		})
	}
}

// Dispatch decodes one frame and calls every handler subscribed to its type.
// Malformed frames and unknown types are logged and dropped.
// It returns the number of handlers invoked.
func (r *Router) Dispatch(data []byte) int {
	env, err := Decode(data)
	if err != nil {
		log.Printf("rpc: dropping frame (id %s): %v", frameID(data), err)
		return 0
	}

	r.mu.RLock()
	hs := make([]Handler, 0, len(r.handlers[env.Type]))
	for _, h := range r.handlers[env.Type] {
		hs = append(hs, h)
	}
	r.mu.RUnlock()

	if len(hs) == 0 {
		log.Printf("rpc: no handler for %s (id %s)", env.Type, env.ID)
		return 0
	}
	for _, h := range hs {
		h(env.Payload)
	}
	return len(hs)
}

// frameID best-effort extracts the envelope ID of a frame Decode rejected.
func frameID(data []byte) string {
	var head struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(data, &head) != nil || head.ID == "" {
		return "unknown"
	}
	return head.ID
}
