// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/relabs-tech/autobone/internal/config"
	"github.com/relabs-tech/autobone/internal/rpc"
	"github.com/relabs-tech/autobone/internal/service"
)

// RunService serves the simulated AutoBone service on the configured transport.
func RunService(ctx context.Context, cfg *config.Config) error {
	svc := newService(cfg)

	switch cfg.Transport {
	case config.TransportMQTT:
		ch, err := rpc.DialMQTT(rpc.MQTTOptions{
			Broker:         cfg.MQTTBroker,
			ClientID:       cfg.MQTTClientIDService,
			PublishTopic:   cfg.TopicEvents,
			SubscribeTopic: cfg.TopicRequests,
		})
		if err != nil {
			return err
		}
		defer ch.Close()

		detach := svc.Attach(ctx, ch)
		defer detach()

		log.Printf("service: serving on MQTT topic %s", cfg.TopicRequests)
		<-ctx.Done()
		log.Println("service: shutting down")
		return nil

	case config.TransportWebSocket:
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.ServicePort),
			Handler: ServiceHandler(ctx, svc),
		}
		return serveUntilDone(ctx, srv, "service")
	}
	return fmt.Errorf("service cannot be served over %q transport", cfg.Transport)
}

// ServiceHandler accepts websocket connections on /autobone, one channel per
// client, all sharing svc.
func ServiceHandler(ctx context.Context, svc *service.Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/autobone", func(w http.ResponseWriter, r *http.Request) {
		ch, err := rpc.UpgradeWS(w, r)
		if err != nil {
			log.Printf("service: %v", err)
			return
		}
		log.Printf("service: client connected from %s", r.RemoteAddr)

		detach := svc.Attach(ctx, ch)
		ch.Start()
		select {
		case <-ch.Done():
		case <-ctx.Done():
		}
		detach()
		ch.Close()
		log.Printf("service: client %s disconnected", r.RemoteAddr)
	})
	return mux
}
