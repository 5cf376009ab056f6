// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/relabs-tech/autobone/internal/config"
	"github.com/relabs-tech/autobone/internal/rpc"
	"github.com/relabs-tech/autobone/internal/service"
)

// DialService opens the client side of the channel selected by cfg.Transport.
// The returned func releases the channel.
func DialService(ctx context.Context, cfg *config.Config) (rpc.Channel, func(), error) {
	switch cfg.Transport {
	case config.TransportWebSocket:
		ch, err := rpc.DialWS(ctx, cfg.ServiceURL)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() { ch.Close() }, nil

	case config.TransportMQTT:
		ch, err := rpc.DialMQTT(rpc.MQTTOptions{
			Broker:         cfg.MQTTBroker,
			ClientID:       cfg.MQTTClientIDClient,
			PublishTopic:   cfg.TopicRequests,
			SubscribeTopic: cfg.TopicEvents,
		})
		if err != nil {
			return nil, nil, err
		}
		return ch, func() { ch.Close() }, nil

	case config.TransportLocal:
		// In-process service, useful without a broker or server running.
		client, remote := rpc.Pipe()
		detach := newService(cfg).Attach(ctx, remote)
		log.Println("app: using in-process AutoBone service")
		return client, func() {
			client.Close()
			detach()
			remote.Close()
		}, nil
	}
	return nil, nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
}

func newService(cfg *config.Config) *service.Service {
	return service.New(service.Options{
		StepInterval: cfg.StepInterval(),
		RecordSteps:  cfg.ServiceRecordSteps,
		Epochs:       cfg.ServiceEpochs,
	})
}
