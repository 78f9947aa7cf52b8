// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	applog "featidx/internal/log"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 16 * time.Millisecond // ~60Hz

// FrameSource provides cached spectral frames to publish.
type FrameSource interface {
	FrameCount() int
	FrameMagnitudes(i int, dst []float64) []float64
}

// PacketSender transmits one encoded packet.
type PacketSender interface {
	Send(data []byte) error
	Close() error
}

// FramePublisher periodically sends the magnitude spectrum of one analysis
// frame per tick, cycling through every cached frame. It runs in a separate
// goroutine managed by Start and Stop.
type FramePublisher struct {
	sender   PacketSender
	source   FrameSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop

	sequenceNum uint32
	frameIndex  int

	// Reused across packets.
	magBuffer    []float64
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewFramePublisher creates a publisher sending frames from source through
// sender every interval.
func NewFramePublisher(interval time.Duration, sender PacketSender, source FrameSource) (*FramePublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp: sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("udp: frame source cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		applog.Warnf("udp: invalid interval provided, defaulting to %s", interval)
	}

	return &FramePublisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins periodic publishing. Calling Start while running is a no-op.
func (p *FramePublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("udp: Start called but publisher already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})

	// Captured so the goroutine never reads the fields Stop resets.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("udp: publishing frames every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				if err := p.publishNext(); err != nil {
					applog.Debugf("udp: %v", err)
				}
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it.
// Calling Stop when not running is a no-op.
func (p *FramePublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("udp: publisher stopped after %d packets", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Frame Index       | uint32         | 4            | Analysis frame sent     |
| Magnitude Count   | uint16         | 2            | Number of floats (N)    |
| Magnitudes        | []float32      | N * 4        | Frame magnitudes        |
+-----------------------------------------------------------------------------+
*/

// HeaderSize is the size in bytes of the fixed packet header.
const HeaderSize = 4 + 8 + 4 + 2

// Packet is a decoded frame packet.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	FrameIndex uint32
	Magnitudes []float32
}

// publishNext encodes and sends the next frame. It does nothing while the
// source has no frames.
func (p *FramePublisher) publishNext() error {
	count := p.source.FrameCount()
	if count == 0 {
		return nil
	}
	if p.frameIndex >= count {
		p.frameIndex = 0
	}

	packet, err := p.buildPacket(p.frameIndex, time.Now().UnixNano())
	if err != nil {
		return err
	}
	p.frameIndex = (p.frameIndex + 1) % count

	if err := p.sender.Send(packet); err != nil {
		return err
	}
	applog.Debugf("udp: sent packet %d (%d bytes)", p.sequenceNum, len(packet))
	return nil
}

// buildPacket encodes frame into the reusable packet buffer and returns its
// bytes, valid until the next call.
func (p *FramePublisher) buildPacket(frame int, timestamp int64) ([]byte, error) {
	p.magBuffer = p.source.FrameMagnitudes(frame, p.magBuffer)
	if p.magBuffer == nil {
		return nil, fmt.Errorf("frame %d is not available", frame)
	}
	if len(p.magBuffer) > math.MaxUint16 {
		return nil, fmt.Errorf("frame %d has %d bins, more than a packet can carry", frame, len(p.magBuffer))
	}

	if cap(p.f32Buffer) < len(p.magBuffer) {
		p.f32Buffer = make([]float32, len(p.magBuffer))
	}
	p.f32Buffer = p.f32Buffer[:len(p.magBuffer)]
	for i, v := range p.magBuffer {
		p.f32Buffer[i] = float32(v)
	}

	p.sequenceNum++
	p.packetBuffer.Reset()
	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint32(frame))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(p.f32Buffer)))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer)
	}
	if err != nil {
		return nil, fmt.Errorf("packing frame %d: %w", frame, err)
	}
	return p.packetBuffer.Bytes(), nil
}

// DecodePacket parses a packet produced by FramePublisher.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("udp: packet of %d bytes is shorter than the header", len(data))
	}
	var pkt Packet
	pkt.Sequence = binary.BigEndian.Uint32(data[0:4])
	pkt.Timestamp = int64(binary.BigEndian.Uint64(data[4:12]))
	pkt.FrameIndex = binary.BigEndian.Uint32(data[12:16])
	n := int(binary.BigEndian.Uint16(data[16:18]))
	if len(data) != HeaderSize+4*n {
		return Packet{}, fmt.Errorf("udp: packet declares %d magnitudes but carries %d bytes", n, len(data)-HeaderSize)
	}
	pkt.Magnitudes = make([]float32, n)
	for i := range n {
		off := HeaderSize + 4*i
		pkt.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(data[off:]))
	}
	return pkt, nil
}

// Close stops the publisher and closes its sender.
func (p *FramePublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

// Ensure FramePublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*FramePublisher)(nil)
