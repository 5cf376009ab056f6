// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Transport names accepted by TRANSPORT.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
	TransportLocal     = "local"
)

// Config holds all application configuration values.
type Config struct {
	// Channel to the AutoBone service
	Transport  string
	ServiceURL string

	// MQTT
	MQTTBroker          string
	MQTTClientIDClient  string
	MQTTClientIDService string

	// Topics
	TopicRequests string
	TopicEvents   string

	// Web Server
	WebServerPort int

	// Simulated service
	ServicePort         int
	ServiceStepInterval int // milliseconds
	ServiceRecordSteps  int
	ServiceEpochs       int
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		Transport:           TransportWebSocket,
		ServiceURL:          "ws://localhost:21110/autobone",
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDClient:  "autobone-client",
		MQTTClientIDService: "autobone-service",
		TopicRequests:       "autobone/requests",
		TopicEvents:         "autobone/events",
		WebServerPort:       8080,
		ServicePort:         21110,
		ServiceStepInterval: 200,
		ServiceRecordSteps:  10,
		ServiceEpochs:       20,
	}
}

// StepInterval is ServiceStepInterval as a duration.
func (c *Config) StepInterval() time.Duration {
	return time.Duration(c.ServiceStepInterval) * time.Millisecond
}

// Global configuration instance.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	case "TRANSPORT":
		c.Transport = strings.ToLower(value)
	case "SERVICE_URL":
		c.ServiceURL = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CLIENT":
		c.MQTTClientIDClient = value
	case "MQTT_CLIENT_ID_SERVICE":
		c.MQTTClientIDService = value

	// Topics
	case "TOPIC_REQUESTS":
		c.TopicRequests = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value

	case "WEB_SERVER_PORT":
		port, err := parsePort(key, value)
		if err != nil {
			return err
		}
		c.WebServerPort = port
	case "SERVICE_PORT":
		port, err := parsePort(key, value)
		if err != nil {
			return err
		}
		c.ServicePort = port
	case "SERVICE_STEP_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERVICE_STEP_INTERVAL %q: %w", value, err)
		}
		if interval < 0 {
			return fmt.Errorf("SERVICE_STEP_INTERVAL must be >= 0, got %d", interval)
		}
		c.ServiceStepInterval = interval
	case "SERVICE_RECORD_STEPS":
		steps, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERVICE_RECORD_STEPS %q: %w", value, err)
		}
		c.ServiceRecordSteps = steps
	case "SERVICE_EPOCHS":
		epochs, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERVICE_EPOCHS %q: %w", value, err)
		}
		c.ServiceEpochs = epochs

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parsePort(key, value string) (int, error) {
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be 1-65535, got %d", key, port)
	}
	return port, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportWebSocket:
		if c.ServiceURL == "" {
			return fmt.Errorf("SERVICE_URL is required for websocket transport")
		}
	case TransportMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for mqtt transport")
		}
		if c.TopicRequests == "" || c.TopicEvents == "" {
			return fmt.Errorf("TOPIC_REQUESTS and TOPIC_EVENTS are required for mqtt transport")
		}
		if c.TopicRequests == c.TopicEvents {
			return fmt.Errorf("TOPIC_REQUESTS and TOPIC_EVENTS must differ")
		}
	case TransportLocal:
	default:
		return fmt.Errorf("TRANSPORT must be one of websocket, mqtt, local; got %q", c.Transport)
	}
	if c.ServiceRecordSteps <= 0 {
		return fmt.Errorf("SERVICE_RECORD_STEPS must be > 0")
	}
	if c.ServiceEpochs <= 0 {
		return fmt.Errorf("SERVICE_EPOCHS must be > 0")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
