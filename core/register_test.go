package core

import (
	"bytes"
	"errors"
	"testing"

	"cuttlefish/protocol"
)

func u8Request(kind protocol.MessageType, addr uint8, payload ...byte) *protocol.Message {
	return &protocol.Message{Type: kind, Address: addr, Port: protocol.DefaultPort, PayloadType: protocol.U8, Payload: payload}
}

func newTestTable() (*RegisterTable, *uint8) {
	table := NewRegisterTable()
	value := new(uint8)
	table.Add(Register{Address: 40, Name: "Value", Type: protocol.U8, Length: 1,
		Read: func() []byte { return protocol.PayloadU8(*value) },
		Write: func(p []byte) error {
			if p[0] > 100 {
				return newError(ValidationError, "Value", "too large")
			}
			*value = p[0]
			return nil
		}})
	table.Add(Register{Address: 41, Name: "Constant", Type: protocol.U8,
		Read: func() []byte { return protocol.PayloadU8(7) }})
	return table, value
}

func TestRegisterReadWrite(t *testing.T) {
	table, value := newTestTable()

	pt, payload, err := table.HandleMessage(u8Request(protocol.Write, 40, 42))
	if err != nil || pt != protocol.U8 || !bytes.Equal(payload, []byte{42}) {
		t.Fatalf("Write: pt=%v payload=%v err=%v", pt, payload, err)
	}
	if *value != 42 {
		t.Errorf("Expected value 42, got %d", *value)
	}
	_, payload, err = table.HandleMessage(u8Request(protocol.Read, 41))
	if err != nil || !bytes.Equal(payload, []byte{7}) {
		t.Errorf("Read: payload=%v err=%v", payload, err)
	}
}

func TestRegisterErrorsCarryCurrentValue(t *testing.T) {
	table, value := newTestTable()
	*value = 5

	tests := []struct {
		name string
		msg  *protocol.Message
	}{
		{"rejected write", u8Request(protocol.Write, 40, 200)},
		{"bad length", u8Request(protocol.Write, 40, 1, 2)},
		{"type mismatch", &protocol.Message{Type: protocol.Write, Address: 40, PayloadType: protocol.U16, Payload: []byte{1, 0}}},
	}
	for _, tt := range tests {
		pt, payload, err := table.HandleMessage(tt.msg)
		if !errors.Is(err, ValidationError) {
			t.Errorf("%s: expected ValidationError, got %v", tt.name, err)
		}
		if pt != protocol.U8 || !bytes.Equal(payload, []byte{5}) {
			t.Errorf("%s: expected current value [5] as U8, got %v %v", tt.name, pt, payload)
		}
	}
	if *value != 5 {
		t.Errorf("Failed writes changed the register to %d", *value)
	}

	if _, _, err := table.HandleMessage(u8Request(protocol.Write, 41, 1)); !errors.Is(err, ValidationError) {
		t.Errorf("Write to read-only register: expected ValidationError, got %v", err)
	}
	if _, _, err := table.HandleMessage(u8Request(protocol.Read, 99)); !errors.Is(err, ValidationError) {
		t.Errorf("Unknown address: expected ValidationError, got %v", err)
	}
}

func TestRegisterAddresses(t *testing.T) {
	table, _ := newTestTable()
	table.Add(Register{Address: 3, Name: "Low", Type: protocol.U8})
	got := table.Addresses()
	if len(got) != 3 || got[0] != 3 || got[1] != 40 || got[2] != 41 {
		t.Errorf("Expected [3 40 41], got %v", got)
	}
}

// The table serves a full transport round trip
func TestRegisterTableOverTransport(t *testing.T) {
	table, _ := newTestTable()
	out := protocol.NewScratchOutput()
	tr := protocol.NewTransport(out, table, func() uint64 { return 0 })

	frame, _ := protocol.AppendFrame(nil, u8Request(protocol.Write, 40, 9))
	tr.Receive(protocol.NewSliceInputBuffer(frame))

	reply, _, err := protocol.DecodeFrame(out.Result())
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if reply.Type != protocol.Write || reply.Address != 40 || !bytes.Equal(reply.Payload, []byte{9}) {
		t.Errorf("Unexpected reply %+v", reply)
	}
}
