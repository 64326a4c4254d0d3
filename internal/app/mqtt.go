// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/airquality_monitor/internal/env"
)

const mqttPublishTimeout = 5 * time.Second

// MQTTPublishClient is the part of mqtt.Client the publisher needs.
type MQTTPublishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher forwards each reading as retained JSON to one topic.
type MQTTPublisher struct {
	client MQTTPublishClient
	topic  string
	log    *zap.Logger
}

// NewMQTTPublisher wraps a connected client.
func NewMQTTPublisher(client MQTTPublishClient, topic string, log *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, log: log}
}

// ConnectMQTT connects to broker and returns the client.
func ConnectMQTT(broker, clientID string, log *zap.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("MQTT connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Info("connected to MQTT broker", zap.String("broker", broker))
	return client, nil
}

// Publish implements ReadingSink.
func (p *MQTTPublisher) Publish(r env.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("mqtt marshal: %w", err)
	}

	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("MQTT publish %s: timed out after %s", p.topic, mqttPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish %s: %w", p.topic, err)
	}

	p.log.Debug("published reading", zap.String("topic", p.topic))
	return nil
}
