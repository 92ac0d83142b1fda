package protocol

import "testing"

func TestChecksum(t *testing.T) {
	if got := Checksum([]byte{0x01, 0x02, 0xFF}); got != 0x02 {
		t.Errorf("Expected checksum 0x02, got 0x%02x", got)
	}
	if got := Checksum(nil); got != 0 {
		t.Errorf("Expected checksum 0 for empty data, got 0x%02x", got)
	}
}

func TestEncodeReadRequest(t *testing.T) {
	frame, err := AppendFrame(nil, &Message{Type: Read, Address: 33, Port: DefaultPort, PayloadType: U8})
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}
	// Harp read of register 33: 01 04 21 FF 01 <sum>
	want := []byte{0x01, 0x04, 0x21, 0xFF, 0x01, 0x26}
	if len(frame) != len(want) {
		t.Fatalf("Expected %d bytes, got %d: % x", len(want), len(frame), frame)
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Errorf("byte %d: expected 0x%02x, got 0x%02x", i, want[i], frame[i])
		}
	}
}

func TestTimestampedFrame(t *testing.T) {
	msg := Message{Type: Event, Address: 37, Port: DefaultPort, PayloadType: U32, Payload: PayloadU32(0x0102)}
	msg.SetTimestampUS(3*1000000 + 640)

	frame, err := AppendFrame(nil, &msg)
	if err != nil {
		t.Fatalf("AppendFrame failed: %v", err)
	}
	if frame[PositionLength] != byte(len(frame)-2) {
		t.Errorf("Length byte %d does not match frame size %d", frame[PositionLength], len(frame))
	}
	if PayloadType(frame[PositionPayloadType]) != U32|HasTimestamp {
		t.Errorf("Expected timestamp flag in payload type, got 0x%02x", frame[PositionPayloadType])
	}

	got, n, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if n != len(frame) {
		t.Errorf("Expected %d bytes consumed, got %d", len(frame), n)
	}
	if got.Seconds != 3 || got.Ticks != 20 {
		t.Errorf("Expected 3s + 20 ticks, got %ds + %d ticks", got.Seconds, got.Ticks)
	}
	if v, _ := ReadU32(got.Payload); v != 0x0102 {
		t.Errorf("Expected payload 0x0102, got 0x%x", v)
	}
	if got.TimestampUS() != 3*1000000+640 {
		t.Errorf("Expected timestamp 3000640us, got %d", got.TimestampUS())
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	good, _ := AppendFrame(nil, &Message{Type: Write, Address: 32, Port: DefaultPort, PayloadType: U8, Payload: PayloadU8(0xFF)})

	if _, _, err := DecodeFrame(good[:3]); err != ErrIncomplete {
		t.Errorf("Expected ErrIncomplete for a partial frame, got %v", err)
	}

	bad := append([]byte(nil), good...)
	bad[len(bad)-1]++
	if _, _, err := DecodeFrame(bad); err != ErrChecksum {
		t.Errorf("Expected ErrChecksum, got %v", err)
	}

	// U16 payload with an odd number of bytes
	odd := []byte{0x02, 0x05, 0x20, 0xFF, byte(U16), 0x01}
	odd = append(odd, Checksum(odd))
	if _, _, err := DecodeFrame(odd); err != ErrPayloadSize {
		t.Errorf("Expected ErrPayloadSize, got %v", err)
	}
}

func TestEncodeFrameRejectsBadPayload(t *testing.T) {
	out := NewScratchOutput()
	err := EncodeFrame(out, &Message{Type: Write, Address: 32, PayloadType: U32, Payload: []byte{1, 2}})
	if err != ErrPayloadSize {
		t.Errorf("Expected ErrPayloadSize, got %v", err)
	}
	if out.CurPosition() != 0 {
		t.Errorf("Nothing should be written on error, got %d bytes", out.CurPosition())
	}
}

func TestPayloadTypeElementSize(t *testing.T) {
	tests := []struct {
		pt   PayloadType
		size int
	}{
		{U8, 1}, {S8, 1}, {U16, 2}, {S16, 2}, {U32, 4}, {S32, 4},
		{U64, 8}, {S64, 8}, {Float, 4}, {U32 | HasTimestamp, 4}, {0x33, 0},
	}
	for _, tt := range tests {
		if got := tt.pt.ElementSize(); got != tt.size {
			t.Errorf("ElementSize(0x%02x): expected %d, got %d", uint8(tt.pt), tt.size, got)
		}
	}
}
