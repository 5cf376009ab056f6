// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc

import (
	"context"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions configures an MQTTChannel. The client publishes on
// PublishTopic and listens on SubscribeTopic; the service side swaps them.
type MQTTOptions struct {
	Broker         string
	ClientID       string
	PublishTopic   string
	SubscribeTopic string
}

// MQTTChannel carries envelopes over a pair of MQTT topics. QoS 1 and the
// client's in-order delivery keep per-stage event ordering.
type MQTTChannel struct {
	client mqtt.Client
	opts   MQTTOptions
	router *Router
}

// DialMQTT connects to the broker and subscribes to the inbound topic.
func DialMQTT(o MQTTOptions) (*MQTTChannel, error) {
	c := &MQTTChannel{opts: o, router: NewRouter()}

	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetOrderMatters(true).
		SetAutoReconnect(true)

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("rpc: connect %s: %w", o.Broker, token.Error())
	}
	log.Printf("rpc: connected to MQTT broker at %s", o.Broker)

	token := c.client.Subscribe(o.SubscribeTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		c.router.Dispatch(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		c.client.Disconnect(250)
		return nil, fmt.Errorf("rpc: subscribe %s: %w", o.SubscribeTopic, token.Error())
	}
	log.Printf("rpc: subscribed to MQTT topic %s", o.SubscribeTopic)

	return c, nil
}

func (c *MQTTChannel) Subscribe(msgType MessageType, h Handler) func() {
	return c.router.Subscribe(msgType, h)
}

func (c *MQTTChannel) Send(ctx context.Context, msgType MessageType, payload any) error {
	data, err := Encode(msgType, payload)
	if err != nil {
		return err
	}
	token := c.client.Publish(c.opts.PublishTopic, 1, false, data)
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("rpc: publish %s: %w", msgType, token.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rpc: publish %s: %w", msgType, ctx.Err())
	}
}

func (c *MQTTChannel) Close() error {
	c.client.Unsubscribe(c.opts.SubscribeTopic).Wait()
	c.client.Disconnect(250)
	return nil
}
