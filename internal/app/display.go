// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/loka_sensors/internal/config"
	"github.com/relabs-tech/loka_sensors/internal/orientation"
	"github.com/relabs-tech/loka_sensors/internal/telemetry"
	"github.com/relabs-tech/loka_sensors/internal/tof"
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	pose     orientation.Pose
	havePose bool

	tof     telemetry.ToFState
	haveToF bool
}

func (d *DisplayData) setPose(p orientation.Pose) {
	d.mu.Lock()
	d.pose, d.havePose = p, true
	d.mu.Unlock()
}

func (d *DisplayData) setToF(s telemetry.ToFState) {
	d.mu.Lock()
	d.tof, d.haveToF = s, true
	d.mu.Unlock()
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

func zoneText(r tof.Reading) string {
	if !r.Valid() {
		return "--"
	}
	return fmt.Sprint(r.Value)
}

// renderDisplay draws the pose on the top half and the ToF group
// averages on the bottom half.
func renderDisplay(d *DisplayData) *image1bit.VerticalLSB {
	d.mu.RLock()
	defer d.mu.RUnlock()

	img, drawer := newCanvas()
	if d.havePose {
		drawLine(drawer, 0, 13, fmt.Sprintf("R%6.1f P%6.1f", d.pose.Roll, d.pose.Pitch))
		drawLine(drawer, 0, 26, fmt.Sprintf("Y%6.1f", d.pose.Yaw))
	} else {
		drawLine(drawer, 0, 13, "Pose waiting...")
	}

	if d.haveToF {
		a := d.tof.Averages
		drawLine(drawer, 0, 44, fmt.Sprintf("L%s M%s R%s", zoneText(a.Left), zoneText(a.Middle), zoneText(a.Right)))
		drawLine(drawer, 0, 57, "Steer "+zoneText(a.Steering))
	} else {
		drawLine(drawer, 0, 44, "ToF waiting...")
	}
	return img
}

func splashImage() *image1bit.VerticalLSB {
	img, drawer := newCanvas()
	drawLine(drawer, 36, 26, "Loka")
	drawLine(drawer, 8, 43, "sensors up")
	return img
}

// RunDisplay mirrors pose and ToF telemetry on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), splashImage(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	data := &DisplayData{}
	t := telemetry.TopicsFromConfig(cfg)
	if err := telemetry.Subscribe(client, t.Pose, data.setPose); err != nil {
		return err
	}
	if err := telemetry.Subscribe(client, t.ToF, data.setToF); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")
	for range ticker.C {
		if err := dev.Draw(dev.Bounds(), renderDisplay(data), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}
	return nil
}
