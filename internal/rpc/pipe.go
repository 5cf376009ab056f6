// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc

import (
	"context"
	"fmt"
	"sync"
)

const pipeBuffer = 64

// PipeChannel is one end of an in-process channel pair. Frames go through
// the same envelope encoding as the network transports and are delivered in
// order on a dedicated goroutine.
type PipeChannel struct {
	router *Router
	peer   *PipeChannel
	inbox  chan []byte

	done chan struct{}
	once sync.Once
}

// Pipe returns two connected ends.
func Pipe() (*PipeChannel, *PipeChannel) {
	a := newPipeEnd()
	b := newPipeEnd()
	a.peer, b.peer = b, a
	go a.deliver()
	go b.deliver()
	return a, b
}

func newPipeEnd() *PipeChannel {
	return &PipeChannel{
		router: NewRouter(),
		inbox:  make(chan []byte, pipeBuffer),
		done:   make(chan struct{}),
	}
}

func (p *PipeChannel) Subscribe(msgType MessageType, h Handler) func() {
	return p.router.Subscribe(msgType, h)
}

func (p *PipeChannel) Send(ctx context.Context, msgType MessageType, payload any) error {
	data, err := Encode(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	default:
	}
	select {
	case p.peer.inbox <- data:
		return nil
	case <-p.peer.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("rpc: send %s: %w", msgType, ctx.Err())
	}
}

// Close stops delivery to this end.
func (p *PipeChannel) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *PipeChannel) deliver() {
	for {
		select {
		case data := <-p.inbox:
			p.router.Dispatch(data)
		case <-p.done:
			return
		}
	}
}
