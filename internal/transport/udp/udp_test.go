// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"featidx/internal/transport"
)

// fakeSource serves frames whose bins hold frameIndex*1000 + bin.
type fakeSource struct {
	frames int
	bins   int
}

func (s *fakeSource) FrameCount() int { return s.frames }

func (s *fakeSource) FrameMagnitudes(i int, dst []float64) []float64 {
	if i < 0 || i >= s.frames {
		return nil
	}
	if cap(dst) < s.bins {
		dst = make([]float64, s.bins)
	}
	dst = dst[:s.bins]
	for k := range dst {
		dst[k] = float64(i*1000 + k)
	}
	return dst
}

type captureSender struct {
	mu      sync.Mutex
	packets [][]byte
	closed  bool
}

func (c *captureSender) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, append([]byte(nil), data...))
	return nil
}

func (c *captureSender) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

func TestNewFramePublisher(t *testing.T) {
	if _, err := NewFramePublisher(time.Millisecond, nil, &fakeSource{}); err == nil {
		t.Error("expected error for nil sender")
	}
	if _, err := NewFramePublisher(time.Millisecond, &captureSender{}, nil); err == nil {
		t.Error("expected error for nil source")
	}
	p, err := NewFramePublisher(0, &captureSender{}, &fakeSource{})
	if err != nil {
		t.Fatal(err)
	}
	if p.interval != DefaultInterval {
		t.Errorf("interval = %s, want %s", p.interval, DefaultInterval)
	}
}

func TestPacketRoundTrip(t *testing.T) {
	p, err := NewFramePublisher(time.Millisecond, &captureSender{}, &fakeSource{frames: 3, bins: 5})
	if err != nil {
		t.Fatal(err)
	}
	data, err := p.buildPacket(2, 1234567890)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != HeaderSize+5*4 {
		t.Fatalf("packet is %d bytes, want %d", len(data), HeaderSize+5*4)
	}

	pkt, err := DecodePacket(data)
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Sequence != 1 || pkt.Timestamp != 1234567890 || pkt.FrameIndex != 2 {
		t.Errorf("header = %+v", pkt)
	}
	for k, m := range pkt.Magnitudes {
		if m != float32(2000+k) {
			t.Errorf("magnitude %d = %v", k, m)
		}
	}

	if _, err := p.buildPacket(3, 0); err == nil {
		t.Error("expected error for a missing frame")
	}
}

func TestDecodePacketErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Short", make([]byte, HeaderSize-1)},
		{"CountMismatch", append(make([]byte, HeaderSize-1), 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePacket(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPublishCyclesFrames(t *testing.T) {
	sender := &captureSender{}
	p, err := NewFramePublisher(time.Millisecond, sender, &fakeSource{frames: 3, bins: 2})
	if err != nil {
		t.Fatal(err)
	}
	for range 7 {
		if err := p.publishNext(); err != nil {
			t.Fatal(err)
		}
	}

	want := []uint32{0, 1, 2, 0, 1, 2, 0}
	for i, data := range sender.packets {
		pkt, err := DecodePacket(data)
		if err != nil {
			t.Fatal(err)
		}
		if pkt.FrameIndex != want[i] || pkt.Sequence != uint32(i+1) {
			t.Errorf("packet %d: frame %d seq %d, want frame %d seq %d", i, pkt.FrameIndex, pkt.Sequence, want[i], i+1)
		}
	}
}

func TestPublishWithoutFrames(t *testing.T) {
	sender := &captureSender{}
	p, _ := NewFramePublisher(time.Millisecond, sender, &fakeSource{})
	if err := p.publishNext(); err != nil {
		t.Fatal(err)
	}
	if sender.count() != 0 {
		t.Error("sent a packet with no frames")
	}
}

func TestStartStop(t *testing.T) {
	sender := &captureSender{}
	p, _ := NewFramePublisher(time.Millisecond, sender, &fakeSource{frames: 2, bins: 4})

	p.Start()
	p.Start() // no-op while running
	deadline := time.Now().Add(2 * time.Second)
	for sender.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if sender.count() < 3 {
		t.Fatalf("only %d packets sent", sender.count())
	}
	if !sender.closed {
		t.Error("Close did not close the sender")
	}

	sent := sender.count()
	time.Sleep(10 * time.Millisecond)
	if sender.count() != sent {
		t.Error("packets sent after Stop")
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}
}

func TestSender(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	defer listener.Close()

	s, err := NewSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Send([]byte("frame")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 64)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "frame" {
		t.Errorf("received %q", buf[:n])
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := s.Send([]byte("late")); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestNewSenderBadAddress(t *testing.T) {
	if _, err := NewSender("not-an-address"); err == nil {
		t.Error("expected error for an address without a port")
	}
}
