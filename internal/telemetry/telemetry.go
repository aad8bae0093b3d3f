// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry carries robot state and control commands over MQTT as
// JSON payloads.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/loka_sensors/internal/config"
	"github.com/relabs-tech/loka_sensors/internal/light"
	"github.com/relabs-tech/loka_sensors/internal/mcu"
	"github.com/relabs-tech/loka_sensors/internal/orientation"
	"github.com/relabs-tech/loka_sensors/internal/tof"
)

// Topics names every topic used by the robot and its subscribers.
type Topics struct {
	Pose    string
	Gyro    string
	Tap     string
	Light   string
	ToF     string
	Status  string
	Command string
}

// TopicsFromConfig reads the topic names from cfg.
func TopicsFromConfig(cfg *config.Config) Topics {
	return Topics{
		Pose:    cfg.TopicPose,
		Gyro:    cfg.TopicGyro,
		Tap:     cfg.TopicTap,
		Light:   cfg.TopicLight,
		ToF:     cfg.TopicToF,
		Status:  cfg.TopicStatus,
		Command: cfg.TopicCommand,
	}
}

// TapEvent is published once per tap read.
type TapEvent struct {
	Time string `json:"time"`
}

// LightState is the light sensor reading plus the headlight level.
type LightState struct {
	light.Reading
	Headlight bool `json:"headlight"`
}

// ToFState is one ToF frame in display order with its derived values.
type ToFState struct {
	Resolution int          `json:"resolution"`
	Zones      []int16      `json:"zones"`
	Averages   tof.Averages `json:"averages"`
	Frames     uint64       `json:"frames"`
}

// Status summarizes subsystem health.
type Status struct {
	Features string `json:"features"`
	IMU      string `json:"imu"`
	Light    bool   `json:"light"`
	ToF      bool   `json:"tof"`
	Power    string `json:"power"`
	Ticks    uint64 `json:"ticks"`
	Time     string `json:"time"`
}

// Connect dials the broker.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("telemetry: connected to MQTT broker at %s as %s", broker, clientID)
	return client, nil
}

// Publisher marshals state to JSON and publishes it on the configured topics.
// Empty topic names are skipped.
type Publisher struct {
	client mqtt.Client
	topics Topics
}

func NewPublisher(client mqtt.Client, topics Topics) *Publisher {
	return &Publisher{client: client, topics: topics}
}

func (p *Publisher) publish(topic string, retain bool, v any) error {
	if topic == "" {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	if token := p.client.Publish(topic, 0, retain, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish (%s): %w", topic, token.Error())
	}
	return nil
}

func (p *Publisher) PublishPose(pose orientation.Pose) error {
	return p.publish(p.topics.Pose, true, pose)
}

func (p *Publisher) PublishGyro(g mcu.Vec3) error {
	return p.publish(p.topics.Gyro, true, g)
}

// PublishTap is not retained; a late subscriber must not see an old tap.
func (p *Publisher) PublishTap(t time.Time) error {
	return p.publish(p.topics.Tap, false, TapEvent{Time: t.Format(time.RFC3339Nano)})
}

func (p *Publisher) PublishLight(s LightState) error {
	return p.publish(p.topics.Light, true, s)
}

func (p *Publisher) PublishToF(s ToFState) error {
	return p.publish(p.topics.ToF, true, s)
}

func (p *Publisher) PublishStatus(s Status) error {
	return p.publish(p.topics.Status, true, s)
}

// SendCommand publishes a control command for the robot.
func (p *Publisher) SendCommand(c Command) error {
	return p.publish(p.topics.Command, false, c)
}

// Subscribe decodes every message on topic as T and passes it to fn.
// Payloads that do not decode are logged and dropped. An empty topic is a
// no-op.
func Subscribe[T any](client mqtt.Client, topic string, fn func(T)) error {
	if topic == "" {
		return nil
	}
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("telemetry: %s unmarshal error: %v", topic, err)
			return
		}
		fn(v)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT subscribe (%s): %w", topic, err)
	}
	log.Printf("telemetry: subscribed to %s", topic)
	return nil
}
