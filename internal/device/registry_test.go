package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/knxhost/internal/binding"
	"github.com/nerrad567/knxhost/internal/bridges/knx"
	"github.com/nerrad567/knxhost/internal/infrastructure/config"
)

// testConfig builds a config pointed at an administratively scoped
// multicast address distinct from the real KNX routing group, so this
// test never collides with a live installation on the same network.
func testConfig(t *testing.T, port int) *config.Config {
	t.Helper()

	gadPath := filepath.Join(t.TempDir(), "gad-map.yaml")
	if err := os.WriteFile(gadPath, []byte("light.switch: \"1/1/1\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	return &config.Config{
		Device: config.DeviceConfig{IndividualAddress: "1.1.1"},
		Bus: config.BusConfig{
			AddressLevel:         3,
			MulticastAddr:        "239.15.23.12",
			MulticastPort:        port,
			TTL:                  1,
			Loopback:             true,
			ConfirmTimeoutSec:    1,
			PriorityDistribution: [4]int{1, 1, 1, 1},
			QueueHighWaterMark:   100,
			ReceiveTimeoutSec:    1,
		},
		Bindings: config.BindingsConfig{GADMapPath: gadPath},
	}
}

func TestRegistry_NewAssemblesStack(t *testing.T) {
	reg, err := New(testConfig(t, 37262))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer reg.Stop()

	if reg.Device() == nil {
		t.Error("Device() = nil")
	}
	if reg.Binding() == nil {
		t.Error("Binding() = nil")
	}
	if reg.Transceiver() == nil {
		t.Error("Transceiver() = nil")
	}
	if reg.Device().Phase() != PhaseCreated {
		t.Errorf("Device().Phase() = %v, want created", reg.Device().Phase())
	}
}

func TestRegistry_NewFailsOnMissingGADMap(t *testing.T) {
	cfg := testConfig(t, 37263)
	cfg.Bindings.GADMapPath = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := New(cfg); err == nil {
		t.Error("New() expected error for missing GAD map")
	}
}

func TestRegistry_DiscoveryRecorderStartsWithRegistry(t *testing.T) {
	cfg := testConfig(t, 37265)
	cfg.Discovery.Enabled = true
	cfg.Discovery.DBPath = filepath.Join(t.TempDir(), "discovery.db")

	reg, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer reg.Stop()

	if reg.Discovery() == nil {
		t.Fatal("Discovery() = nil, want a recorder when discovery is enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := reg.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Confirm the recorder's schema and prepared statements came up as part
	// of Start (the worker calls Recorder.Start before blocking on ctx) by
	// querying it — a query against an un-started recorder would error.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := reg.Discovery().GroupAddressCount(context.Background()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("discovery recorder never finished starting")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRegistry_StartWeavesAndRuns(t *testing.T) {
	reg, err := New(testConfig(t, 37264))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fb := binding.NewFunctionalBlock("living_room_light")
	if _, err := fb.AddDatapoint("on", "1.001", binding.AccessInOut, false); err != nil {
		t.Fatalf("AddDatapoint() error = %v", err)
	}
	if err := fb.Bind("on", []string{"light.switch"}, binding.FlagC|binding.FlagW|binding.FlagT, knx.PriorityNormal); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if err := reg.Device().Register(fb); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := reg.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if reg.Device().Phase() != PhaseRunning {
		t.Fatalf("Phase() = %v, want running", reg.Device().Phase())
	}

	cancel()
	done := make(chan struct{})
	go func() {
		reg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after context cancellation")
	}

	reg.Stop()
}
