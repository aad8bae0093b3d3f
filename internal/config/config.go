// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/loka_sensors/internal/light"
	"github.com/relabs-tech/loka_sensors/internal/mcu"
	"github.com/relabs-tech/loka_sensors/internal/tap"
	"github.com/relabs-tech/loka_sensors/internal/tof"
)

// DisplayAddr is the only address the SSD1306 driver supports.
const DisplayAddr = 0x3C

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDRobot   string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicPose    string
	TopicGyro    string
	TopicTap     string
	TopicLight   string
	TopicToF     string
	TopicStatus  string
	TopicCommand string

	// Motion poller
	Features       mcu.Features
	TickHz         int
	TapSensitivity tap.Sensitivity

	// IMU (BNO085 over I2C)
	IMUI2CBus  string
	IMUI2CAddr uint16

	// Light sensor and headlight
	LightI2CBus         string
	HeadlightPin        string
	HeadlightThreshold  uint16
	HeadlightActiveHigh bool
	HeadlightSource     light.Source

	// ToF bridge
	ToFSerialPort string
	ToFBaudRate   uint
	ToFResolution tof.Resolution
	ToFHz         int
	// Zone groups; nil keeps the resolution default.
	ToFLeft   []int
	ToFMiddle []int
	ToFRight  []int

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds

	// Runtime
	Simulate    bool
	PrintDebug  bool
	PrintLabels bool
}

// Default returns a configuration with every optional key at its default.
func Default() *Config {
	return &Config{
		MQTTClientIDRobot:   "loka-robot",
		MQTTClientIDConsole: "loka-console",
		MQTTClientIDWeb:     "loka-web",
		MQTTClientIDDisplay: "loka-display",

		TopicPose:    "loka/pose",
		TopicGyro:    "loka/gyro",
		TopicTap:     "loka/tap",
		TopicLight:   "loka/light",
		TopicToF:     "loka/tof",
		TopicStatus:  "loka/status",
		TopicCommand: "loka/command",

		Features:       mcu.Rotation | mcu.Gyro | mcu.Tap | mcu.Light,
		TickHz:         mcu.DefaultHz,
		TapSensitivity: tap.Medium,

		IMUI2CAddr: 0x4A,

		HeadlightActiveHigh: true,
		HeadlightSource:     light.SourceAmbient,

		ToFBaudRate:   115200,
		ToFResolution: tof.Res4x4,
		ToFHz:         10,

		WebServerPort: 8080,

		DisplayI2CAddr:        DisplayAddr,
		DisplayUpdateInterval: 200,

		PrintLabels: true,
	}
}

// Package-level singleton: InitGlobal sets it once, Get reads it under
// the read lock.
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
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_ROBOT":
		c.MQTTClientIDRobot = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_GYRO":
		c.TopicGyro = value
	case "TOPIC_TAP":
		c.TopicTap = value
	case "TOPIC_LIGHT":
		c.TopicLight = value
	case "TOPIC_TOF":
		c.TopicToF = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value

	// Motion poller
	case "FEATURES":
		if c.Features, err = mcu.ParseFeatures(value); err != nil {
			return fmt.Errorf("invalid FEATURES %q: %w", value, err)
		}
	case "TICK_HZ":
		hz, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TICK_HZ %q: %w", value, err)
		}
		if hz < mcu.MinHz || hz > mcu.MaxHz {
			return fmt.Errorf("TICK_HZ must be %d-%d, got %d", mcu.MinHz, mcu.MaxHz, hz)
		}
		c.TickHz = hz
	case "TAP_SENSITIVITY":
		if c.TapSensitivity, err = tap.ParseSensitivity(value); err != nil {
			return fmt.Errorf("invalid TAP_SENSITIVITY %q: %w", value, err)
		}

	// IMU
	case "IMU_I2C_BUS":
		c.IMUI2CBus = value
	case "IMU_I2C_ADDR":
		if c.IMUI2CAddr, err = parseAddr(key, value); err != nil {
			return err
		}

	// Light sensor and headlight
	case "LIGHT_I2C_BUS":
		c.LightI2CBus = value
	case "HEADLIGHT_PIN":
		c.HeadlightPin = value
	case "HEADLIGHT_THRESHOLD":
		thr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid HEADLIGHT_THRESHOLD %q: %w", value, err)
		}
		c.HeadlightThreshold = uint16(thr)
	case "HEADLIGHT_ACTIVE_HIGH":
		if c.HeadlightActiveHigh, err = strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid HEADLIGHT_ACTIVE_HIGH %q: %w", value, err)
		}
	case "HEADLIGHT_SOURCE":
		if c.HeadlightSource, err = light.ParseSource(value); err != nil {
			return fmt.Errorf("invalid HEADLIGHT_SOURCE %q: %w", value, err)
		}

	// ToF bridge
	case "TOF_SERIAL_PORT":
		c.ToFSerialPort = value
	case "TOF_BAUD_RATE":
		rate, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid TOF_BAUD_RATE %q: %w", value, err)
		}
		c.ToFBaudRate = uint(rate)
	case "TOF_RESOLUTION":
		zones, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TOF_RESOLUTION %q: %w", value, err)
		}
		if c.ToFResolution, err = tof.ParseResolution(zones); err != nil {
			return fmt.Errorf("invalid TOF_RESOLUTION %q: %w", value, err)
		}
	case "TOF_HZ":
		hz, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TOF_HZ %q: %w", value, err)
		}
		if hz < 1 || hz > 100 {
			return fmt.Errorf("TOF_HZ must be 1-100, got %d", hz)
		}
		c.ToFHz = hz
	case "TOF_LEFT":
		if c.ToFLeft, err = parseZones(key, value); err != nil {
			return err
		}
	case "TOF_MIDDLE":
		if c.ToFMiddle, err = parseZones(key, value); err != nil {
			return err
		}
	case "TOF_RIGHT":
		if c.ToFRight, err = parseZones(key, value); err != nil {
			return err
		}

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		if c.DisplayI2CAddr, err = parseAddr(key, value); err != nil {
			return err
		}
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	// Runtime
	case "SIMULATE":
		if c.Simulate, err = strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid SIMULATE %q: %w", value, err)
		}
	case "PRINT_DEBUG":
		if c.PrintDebug, err = strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid PRINT_DEBUG %q: %w", value, err)
		}
	case "PRINT_LABELS":
		if c.PrintLabels, err = strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid PRINT_LABELS %q: %w", value, err)
		}

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit address, got 0x%X", key, addr)
	}
	return uint16(addr), nil
}

// parseZones reads a comma separated zone list. Range checking against the
// resolution happens in the grid; only syntax is checked here.
func parseZones(key, value string) ([]int, error) {
	var zones []int
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		z, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s zone %q: %w", key, p, err)
		}
		zones = append(zones, z)
	}
	return zones, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	// periph's ssd1306 driver only talks to 0x3C.
	if c.DisplayI2CAddr != DisplayAddr {
		return fmt.Errorf("DISPLAY_I2C_ADDR must be 0x%02X", DisplayAddr)
	}
	if c.Simulate {
		return nil
	}
	if c.Features.Has(mcu.Headlight) && c.HeadlightPin == "" {
		return fmt.Errorf("HEADLIGHT_PIN is required when the headlight feature is enabled")
	}
	if c.ToFSerialPort != "" && c.ToFBaudRate == 0 {
		return fmt.Errorf("TOF_BAUD_RATE is required with TOF_SERIAL_PORT")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
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
