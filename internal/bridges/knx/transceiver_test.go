package knx

import (
	"context"
	"testing"
	"time"
)

// testMulticastConfig returns a transceiver config using an administratively
// scoped multicast address distinct from the real KNX routing group, so
// tests never collide with a live installation on the same network.
func testMulticastConfig(port int) TransceiverConfig {
	return TransceiverConfig{
		MulticastAddr:  "239.15.23.12",
		MulticastPort:  port,
		TTL:            1,
		Loopback:       true,
		ReceiveTimeout: 100 * time.Millisecond,
	}
}

func TestTransceiver_SendReceiveLoopback(t *testing.T) {
	cfg := testMulticastConfig(37162)

	rx, err := NewTransceiver(cfg)
	if err != nil {
		t.Fatalf("NewTransceiver() error = %v", err)
	}
	defer rx.Close()

	received := make(chan []byte, 1)
	rx.SetOnFrame(func(frame []byte) {
		received <- frame
	})

	cemi := []byte{0x11, 0x00, 0x90, 0x60, 0x11, 0x01, 0x08, 0x01, 0x01, 0x00, 0x80}
	if err := rx.Send(context.Background(), cemi); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case got := <-received:
		if len(got) != len(cemi) {
			t.Errorf("received frame len = %d, want %d", len(got), len(cemi))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loopback frame")
	}
}

func TestTransceiver_IsConnectedAfterClose(t *testing.T) {
	cfg := testMulticastConfig(37163)

	tr, err := NewTransceiver(cfg)
	if err != nil {
		t.Fatalf("NewTransceiver() error = %v", err)
	}

	if !tr.IsConnected() {
		t.Error("IsConnected() = false immediately after NewTransceiver(), want true")
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if tr.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

func TestTransceiver_CloseIsIdempotent(t *testing.T) {
	cfg := testMulticastConfig(37164)

	tr, err := NewTransceiver(cfg)
	if err != nil {
		t.Fatalf("NewTransceiver() error = %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestTransceiver_SendAfterCloseFails(t *testing.T) {
	cfg := testMulticastConfig(37165)

	tr, err := NewTransceiver(cfg)
	if err != nil {
		t.Fatalf("NewTransceiver() error = %v", err)
	}
	tr.Close()

	cemi := []byte{0x11, 0x00, 0x90, 0x60, 0x11, 0x01, 0x08, 0x01, 0x01, 0x00, 0x80}
	if err := tr.Send(context.Background(), cemi); err == nil {
		t.Error("Send() after Close() expected error")
	}
}

func TestTransceiver_InvalidMulticastAddr(t *testing.T) {
	cfg := testMulticastConfig(37166)
	cfg.MulticastAddr = "not-an-ip"

	if _, err := NewTransceiver(cfg); err == nil {
		t.Error("NewTransceiver() expected error for invalid multicast address")
	}
}

func TestTransceiver_HealthCheck(t *testing.T) {
	cfg := testMulticastConfig(37167)

	tr, err := NewTransceiver(cfg)
	if err != nil {
		t.Fatalf("NewTransceiver() error = %v", err)
	}
	defer tr.Close()

	if err := tr.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}

	tr.Close()
	if err := tr.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Close() expected error")
	}
}

func TestTransceiver_Stats(t *testing.T) {
	cfg := testMulticastConfig(37168)

	tr, err := NewTransceiver(cfg)
	if err != nil {
		t.Fatalf("NewTransceiver() error = %v", err)
	}
	defer tr.Close()

	cemi := []byte{0x11, 0x00, 0x90, 0x60, 0x11, 0x01, 0x08, 0x01, 0x01, 0x00, 0x80}
	if err := tr.Send(context.Background(), cemi); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// Give the receive loop a moment to process the loopback frame.
	time.Sleep(200 * time.Millisecond)

	stats := tr.Stats()
	if stats.FramesTx != 1 {
		t.Errorf("FramesTx = %d, want 1", stats.FramesTx)
	}
	if !stats.Connected {
		t.Error("Stats().Connected = false, want true")
	}
}
