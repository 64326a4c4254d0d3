// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/airquality_monitor/internal/env"
)

type fakeToken struct {
	err      error
	complete bool
}

func (t *fakeToken) Wait() bool { return t.complete }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t *fakeToken) Error() error { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.complete {
		close(ch)
	}
	return ch
}

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTTClient struct {
	calls []publishCall
	token *fakeToken
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.calls = append(c.calls, publishCall{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return c.token
}

func TestMQTTPublisherSendsRetainedJSON(t *testing.T) {
	client := &fakeMQTTClient{token: &fakeToken{complete: true}}
	p := NewMQTTPublisher(client, "airquality/office", zap.NewNop())

	if err := p.Publish(testReading()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(client.calls) != 1 {
		t.Fatalf("publish calls = %d, want 1", len(client.calls))
	}
	call := client.calls[0]
	if call.topic != "airquality/office" || !call.retained || call.qos != 0 {
		t.Errorf("call = %+v", call)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(call.payload, &got); err != nil {
		t.Fatalf("payload %q: %v", call.payload, err)
	}
	if got["co2_ppm"] != float64(415) || got["temperature_c"] != 21.5 || got["pressure_kpa"] != 101.325 || got["room"] != "office" {
		t.Errorf("payload = %v", got)
	}
}

func TestMQTTPublisherErrors(t *testing.T) {
	tests := []struct {
		name  string
		token *fakeToken
		want  string
	}{
		{"broker error", &fakeToken{complete: true, err: errors.New("not connected")}, "not connected"},
		{"timeout", &fakeToken{complete: false}, "timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewMQTTPublisher(&fakeMQTTClient{token: tt.token}, "t", zap.NewNop())
			err := p.Publish(env.Reading{Room: "office"})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
