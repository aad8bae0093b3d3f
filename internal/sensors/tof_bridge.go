// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// Proprietary sentence types exchanged with the ToF co-processor.
// Frames arrive as $PLTOF,<zones>,<mm>,...; commands go out as $PLTOC,...
const (
	TypeToFFrame   = "LTOF"
	TypeToFCommand = "LTOC"
)

// ToFFrame is a parsed $PLTOF sentence. Distances are in native sensor
// order; negative values mark invalid zones.
type ToFFrame struct {
	nmea.BaseSentence
	Zones     int
	Distances []int16
}

func parseToFFrame(s nmea.BaseSentence) (nmea.Sentence, error) {
	if len(s.Fields) < 1 {
		return nil, fmt.Errorf("tof: empty frame")
	}
	zones, err := strconv.Atoi(s.Fields[0])
	if err != nil {
		return nil, fmt.Errorf("tof: zone count %q: %w", s.Fields[0], err)
	}
	if zones != 16 && zones != 64 {
		return nil, fmt.Errorf("tof: zone count %d", zones)
	}
	if len(s.Fields)-1 != zones {
		return nil, fmt.Errorf("tof: frame has %d of %d zones", len(s.Fields)-1, zones)
	}
	f := ToFFrame{BaseSentence: s, Zones: zones, Distances: make([]int16, zones)}
	for i, v := range s.Fields[1:] {
		d, err := strconv.ParseInt(v, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("tof: zone %d %q: %w", i, v, err)
		}
		f.Distances[i] = int16(d)
	}
	return f, nil
}

// EncodeCommand frames a $PLTOC command with its checksum.
func EncodeCommand(fields ...string) string {
	body := "P" + TypeToFCommand + "," + strings.Join(fields, ",")
	return "$" + body + "*" + nmea.Checksum(body) + "\r\n"
}

// ErrBridgeClosed is returned once the serial stream has ended.
var ErrBridgeClosed = errors.New("tof: bridge closed")

// ToFBridge is a tof.Ranger talking to the ranging co-processor over a
// serial line. A background reader keeps the latest complete frame.
type ToFBridge struct {
	w      io.Writer
	closer io.Closer
	parser nmea.SentenceParser

	mu    sync.Mutex
	zones int
	frame []int16
	fresh bool
	errs  int
	err   error
	done  chan struct{}
}

// NewToFBridge starts reading frames from rw.
func NewToFBridge(rw io.ReadWriter) *ToFBridge {
	b := &ToFBridge{
		w:     rw,
		zones: 16,
		frame: make([]int16, 64),
		done:  make(chan struct{}),
	}
	if c, ok := rw.(io.Closer); ok {
		b.closer = c
	}
	b.parser = nmea.SentenceParser{
		CustomParsers: map[string]nmea.ParserFunc{
			TypeToFFrame: parseToFFrame,
		},
	}
	go b.readLoop(rw)
	return b
}

// OpenToFBridge opens the serial port of the co-processor.
func OpenToFBridge(port string, baud uint) (*ToFBridge, error) {
	opts := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}
	rw, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("tof: open %s: %w", port, err)
	}
	log.Printf("tof: serial port opened on %s at %d baud", port, baud)
	return NewToFBridge(rw), nil
}

func (b *ToFBridge) readLoop(r io.Reader) {
	defer close(b.done)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		s, err := b.parser.Parse(line)
		if err != nil {
			b.mu.Lock()
			b.errs++
			b.mu.Unlock()
			continue
		}
		if f, ok := s.(ToFFrame); ok {
			b.store(f)
		}
	}
	err := sc.Err()
	if err == nil {
		err = ErrBridgeClosed
	}
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

func (b *ToFBridge) store(f ToFFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f.Zones != b.zones {
		// stale frame from before a resolution change
		b.errs++
		return
	}
	copy(b.frame, f.Distances)
	b.fresh = true
}

func (b *ToFBridge) command(fields ...string) error {
	if _, err := io.WriteString(b.w, EncodeCommand(fields...)); err != nil {
		return fmt.Errorf("tof: command %s: %w", fields[0], err)
	}
	return nil
}

func (b *ToFBridge) SetResolution(zones int) error {
	if err := b.command("RES", strconv.Itoa(zones)); err != nil {
		return err
	}
	b.mu.Lock()
	b.zones = zones
	b.fresh = false
	b.mu.Unlock()
	return nil
}

func (b *ToFBridge) SetRangingFrequency(hz int) error {
	return b.command("FREQ", strconv.Itoa(hz))
}

func (b *ToFBridge) StartRanging() error {
	return b.command("START")
}

// DataReady reports whether a frame arrived since the last Frame call.
func (b *ToFBridge) DataReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fresh
}

// Frame copies the latest frame into dst.
func (b *ToFBridge) Frame(dst []int16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.fresh && b.err != nil {
		return b.err
	}
	copy(dst, b.frame[:b.zones])
	b.fresh = false
	return nil
}

// ParseErrors counts sentences that failed to parse or did not match the
// configured resolution.
func (b *ToFBridge) ParseErrors() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errs
}

// Done is closed when the reader stops.
func (b *ToFBridge) Done() <-chan struct{} { return b.done }

// Close closes the underlying port, which also stops the reader.
func (b *ToFBridge) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}
