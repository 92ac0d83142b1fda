package core

import (
	"errors"
	"testing"
)

type failingAlarm struct {
	SoftAlarm
}

func (f *failingAlarm) Arm(target uint32, fire func()) error {
	return errors.New("alarm hardware busy")
}

func TestAlarmBridgeSingleWriter(t *testing.T) {
	resetSim(t, 0)
	port := newMockPort()
	b := NewAlarmBridge(port, NewSoftAlarm())

	if err := b.Load(0x3, 0x1); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := b.Arm(50); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if !b.Armed() {
		t.Fatal("Expected armed bridge")
	}
	if err := b.Load(0xF, 0xF); !errors.Is(err, StateConflictError) {
		t.Errorf("Load while armed: expected StateConflictError, got %v", err)
	}
	if err := b.Arm(60); !errors.Is(err, StateConflictError) {
		t.Errorf("Arm while armed: expected StateConflictError, got %v", err)
	}
	if mask, state := b.Pending(); mask != 0x3 || state != 0x1 {
		t.Errorf("Pending write was overwritten: 0x%x/0x%x", mask, state)
	}

	SetTime(49)
	ProcessTimers()
	if len(port.writes) != 0 {
		t.Fatal("Alarm fired early")
	}

	SetTime(50)
	ProcessTimers()
	if len(port.writes) != 1 || port.writes[0] != (portWrite{50, 0x3, 0x1}) {
		t.Fatalf("Expected one write at 50, got %+v", port.writes)
	}
	if b.Armed() || b.Fired() != 1 || b.LastFire() != 50 {
		t.Errorf("After fire: armed=%v fired=%d last=%d", b.Armed(), b.Fired(), b.LastFire())
	}
}

func TestAlarmBridgeCancel(t *testing.T) {
	resetSim(t, 0)
	port := newMockPort()
	b := NewAlarmBridge(port, NewSoftAlarm())
	b.Load(0x1, 0x1)
	b.Arm(10)
	b.Cancel()

	SetTime(20)
	ProcessTimers()
	if len(port.writes) != 0 || b.Armed() {
		t.Errorf("Cancelled write must not fire, got %+v", port.writes)
	}
}

func TestAlarmBridgeArmFailure(t *testing.T) {
	resetSim(t, 0)
	b := NewAlarmBridge(newMockPort(), &failingAlarm{})
	err := b.Arm(10)
	if !errors.Is(err, DriverError) {
		t.Errorf("Expected DriverError, got %v", err)
	}
	if b.Armed() {
		t.Error("A failed arm must leave the bridge disarmed")
	}
}
