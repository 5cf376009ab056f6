// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/relabs-tech/autobone/internal/autobone"
	"github.com/relabs-tech/autobone/internal/config"
	"github.com/relabs-tech/autobone/internal/rpc"
)

const consoleHelp = `Commands:
  record   start recording poses
  save     save the last recording
  process  run the calibration on recordings
  apply    apply the calibrated proportions
  bvh      start/stop plain BVH recording
  status   print the current state
  quit     leave
`

// Console is a line-oriented front end for one calibration session.
type Console struct {
	in  io.Reader
	out io.Writer
	mu  sync.Mutex // serializes writes to out
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

// RunConsole connects to the configured service and runs the console on stdin/stdout.
func RunConsole(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	ch, release, err := DialService(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	return NewConsole(in, out).Run(ctx, ch)
}

// Listeners returns the render callbacks for a session.
func (c *Console) Listeners() autobone.Listeners {
	return autobone.Listeners{
		OnChange: func(v autobone.View) {
			c.printf("%s\n", renderView(v))
		},
		OnFinished: func(f autobone.StageFinished) {
			if f.Success {
				c.printf("[DONE] %s completed\n", f.Stage)
			} else {
				c.printf("[FAIL] %s failed: %s\n", f.Stage, f.Message)
			}
		},
		OnEpoch: func(d autobone.EpochDiagnostics) {
			if len(d.Parts) == 0 {
				return
			}
			c.printf("[EPOCH %d/%d] adjusted proportions:\n", d.CurrentEpoch, d.TotalEpochs)
			for _, p := range d.Parts {
				c.printf("  %-12s %6.3f m\n", p.Bone, p.Value)
			}
		},
	}
}

// Run opens a session on ch and executes commands until quit, EOF or ctx ends.
func (c *Console) Run(ctx context.Context, ch rpc.Channel) error {
	sess := autobone.Open(ch, c.Listeners(), func(recording bool) {
		if recording {
			c.printf("[BVH] Recording...\n")
		} else {
			c.printf("[BVH] Stopped\n")
		}
	})
	defer sess.Close()

	c.printf("%s", consoleHelp)

	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			quit, err := c.execute(ctx, sess, strings.TrimSpace(line))
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

// execute runs one command. Rejections are printed, not returned.
func (c *Console) execute(ctx context.Context, sess *autobone.Session, cmd string) (bool, error) {
	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		c.printf("%s", consoleHelp)
		return false, nil
	case "status":
		c.printf("%s\n", renderView(sess.Controller.State().View()))
		return false, nil
	case "bvh":
		if err := sess.BVH.Toggle(ctx); err != nil {
			log.Printf("console: %v", err)
			c.printf("[ERR] %v\n", err)
		}
		return false, nil
	}

	stage, err := autobone.ParseStage(cmd)
	if err != nil {
		c.printf("unknown command %q (type help)\n", cmd)
		return false, nil
	}

	var reason autobone.RejectionReason
	err = sess.Controller.StartStage(ctx, stage)
	switch {
	case err == nil:
	case errors.As(err, &reason):
		c.printf("[REJECTED] %s: %v\n", stage, reason)
	default:
		log.Printf("console: %v", err)
		c.printf("[ERR] %v\n", err)
	}
	return false, nil
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// renderView draws a one-line progress bar with the gating flags.
func renderView(v autobone.View) string {
	const width = 20
	filled := int(v.Progress*width + 0.5)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)

	status := "idle"
	if v.Running {
		status = "running"
	}
	return fmt.Sprintf("[%s] %3.0f%% %-7s recording=%t calibration=%t",
		bar, v.Progress*100, status, v.HasRecording, v.HasCalibration)
}
