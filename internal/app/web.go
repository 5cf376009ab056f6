// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relabs-tech/autobone/internal/autobone"
	"github.com/relabs-tech/autobone/internal/config"
	"github.com/relabs-tech/autobone/internal/rpc"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webState is the JSON document served at /api/autobone.
type webState struct {
	autobone.View
	Stage        string `json:"stage"`
	BVHRecording bool   `json:"bvh_recording"`
}

// WebUI exposes one calibration session over HTTP and pushes every state
// change to connected websocket viewers.
type WebUI struct {
	sess *autobone.Session

	mu      sync.Mutex
	viewers map[*websocket.Conn]struct{}
}

// NewWebUI opens a session on ch. Close releases it.
func NewWebUI(ch rpc.Channel) *WebUI {
	w := &WebUI{viewers: make(map[*websocket.Conn]struct{})}

	// Hold mu so early events wait for sess to be set.
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sess = autobone.Open(ch, autobone.Listeners{
		OnChange: func(autobone.View) { w.broadcast() },
		OnFinished: func(f autobone.StageFinished) {
			log.Printf("web: %s finished (success=%t)", f.Stage, f.Success)
		},
	}, func(bool) { w.broadcast() })
	return w
}

// RunWeb connects to the configured service and serves the web UI.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	ch, release, err := DialService(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	ui := NewWebUI(ch)
	defer ui.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: ui.Handler(),
	}
	return serveUntilDone(ctx, srv, "web")
}

// Handler returns the HTTP routes of the UI.
func (w *WebUI) Handler() http.Handler {
	mux := http.NewServeMux()

	// JSON API endpoint: current state
	mux.HandleFunc("GET /api/autobone", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, w.snapshot())
	})

	// Intents: record, save, process, apply
	mux.HandleFunc("POST /api/autobone/{stage}", func(rw http.ResponseWriter, r *http.Request) {
		stage, err := autobone.ParseStage(r.PathValue("stage"))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusNotFound)
			return
		}

		var reason autobone.RejectionReason
		err = w.sess.Controller.StartStage(r.Context(), stage)
		switch {
		case err == nil:
			writeJSON(rw, http.StatusAccepted, w.snapshot())
		case errors.As(err, &reason):
			writeJSON(rw, http.StatusConflict, map[string]string{"error": reason.Error()})
		default:
			log.Printf("web: %v", err)
			writeJSON(rw, http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
	})

	mux.HandleFunc("POST /api/bvh", func(rw http.ResponseWriter, r *http.Request) {
		if err := w.sess.BVH.Toggle(r.Context()); err != nil {
			log.Printf("web: %v", err)
			writeJSON(rw, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusAccepted, w.snapshot())
	})

	mux.HandleFunc("GET /api/autobone/ws", w.handleViewer)

	return mux
}

// Close disconnects viewers and ends the session.
func (w *WebUI) Close() {
	w.sess.Close()
	w.mu.Lock()
	for conn := range w.viewers {
		conn.Close()
	}
	w.viewers = map[*websocket.Conn]struct{}{}
	w.mu.Unlock()
}

func (w *WebUI) snapshot() webState {
	st := w.sess.Controller.State()
	return webState{
		View:         st.View(),
		Stage:        st.Stage.String(),
		BVHRecording: w.sess.BVH.Recording(),
	}
}

func (w *WebUI) handleViewer(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	w.mu.Lock()
	w.viewers[conn] = struct{}{}
	err = w.writeViewer(conn, w.snapshot())
	w.mu.Unlock()
	if err != nil {
		w.drop(conn)
		return
	}

	// Viewers are push-only; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			w.drop(conn)
			return
		}
	}
}

func (w *WebUI) broadcast() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sess == nil {
		return
	}

	st := w.snapshot()
	for conn := range w.viewers {
		if err := w.writeViewer(conn, st); err != nil {
			log.Printf("web: viewer write error: %v", err)
			delete(w.viewers, conn)
			conn.Close()
		}
	}
}

// writeViewer must be called with w.mu held.
func (w *WebUI) writeViewer(conn *websocket.Conn, st webState) error {
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return conn.WriteJSON(st)
}

func (w *WebUI) drop(conn *websocket.Conn) {
	w.mu.Lock()
	delete(w.viewers, conn)
	w.mu.Unlock()
	conn.Close()
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// serveUntilDone runs srv until it fails or ctx is cancelled.
func serveUntilDone(ctx context.Context, srv *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("%s: listening on %s", name, srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Printf("%s: shutting down", name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
