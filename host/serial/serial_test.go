package serial

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	if cfg.Device != "/dev/ttyACM0" {
		t.Errorf("Expected device /dev/ttyACM0, got %s", cfg.Device)
	}
	if cfg.Baud != 1000000 {
		t.Errorf("Expected Harp baud 1000000, got %d", cfg.Baud)
	}
	if cfg.ReadTimeout != 100 {
		t.Errorf("Expected 100ms read timeout, got %d", cfg.ReadTimeout)
	}
}

func TestOpenNilConfig(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("Expected an error for a nil config")
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := Open(DefaultConfig("/dev/cuttlefish-does-not-exist")); err == nil {
		t.Error("Expected an error opening a missing device")
	}
}
