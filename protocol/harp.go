package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	ErrIncomplete  = errors.New("harp: incomplete frame")
	ErrChecksum    = errors.New("harp: checksum mismatch")
	ErrMalformed   = errors.New("harp: malformed frame")
	ErrPayloadSize = errors.New("harp: payload size does not match payload type")
	ErrTooLong     = errors.New("harp: payload too long")
)

// Checksum is the sum of all bytes modulo 256
func Checksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return sum
}

// EncodeFrame writes msg as a complete frame into output
func EncodeFrame(output OutputBuffer, msg *Message) error {
	pt := msg.PayloadType.Base()
	if size := pt.ElementSize(); size == 0 || len(msg.Payload)%size != 0 {
		return ErrPayloadSize
	}
	length := 3 + len(msg.Payload) + ChecksumSize
	if msg.Timestamped {
		pt |= HasTimestamp
		length += TimestampSize
	}
	if length > 255 {
		return ErrTooLong
	}

	cursor := output.CurPosition()
	output.Output([]byte{byte(msg.Type), byte(length), msg.Address, msg.Port, byte(pt)})
	if msg.Timestamped {
		var ts [TimestampSize]byte
		binary.LittleEndian.PutUint32(ts[0:], msg.Seconds)
		binary.LittleEndian.PutUint16(ts[4:], msg.Ticks)
		output.Output(ts[:])
	}
	output.Output(msg.Payload)
	output.Output([]byte{Checksum(output.DataSince(cursor))})
	return nil
}

// AppendFrame returns msg encoded as a new byte slice
func AppendFrame(dst []byte, msg *Message) ([]byte, error) {
	scratch := NewScratchOutput()
	if err := EncodeFrame(scratch, msg); err != nil {
		return dst, err
	}
	return append(dst, scratch.Result()...), nil
}

// DecodeFrame parses the frame at the start of data. It returns the
// number of bytes consumed by the frame. On ErrIncomplete nothing is
// consumed; other errors mean the leading byte cannot start a frame.
// The returned payload aliases data.
func DecodeFrame(data []byte) (Message, int, error) {
	if len(data) < 2 {
		return Message{}, 0, ErrIncomplete
	}
	length := int(data[PositionLength])
	if length < FrameMin-2 {
		return Message{}, 0, ErrMalformed
	}
	total := 2 + length
	if len(data) < total {
		return Message{}, 0, ErrIncomplete
	}
	frame := data[:total]
	if Checksum(frame[:total-1]) != frame[total-1] {
		return Message{}, 0, ErrChecksum
	}

	pt := PayloadType(frame[PositionPayloadType])
	msg := Message{
		Type:        MessageType(frame[PositionType]),
		Address:     frame[PositionAddress],
		Port:        frame[PositionPort],
		PayloadType: pt.Base(),
	}
	body := frame[FrameHeaderSize : total-1]
	if pt.Timestamped() {
		if len(body) < TimestampSize {
			return Message{}, 0, ErrMalformed
		}
		msg.Timestamped = true
		msg.Seconds = binary.LittleEndian.Uint32(body[0:])
		msg.Ticks = binary.LittleEndian.Uint16(body[4:])
		body = body[TimestampSize:]
	}
	size := msg.PayloadType.ElementSize()
	if size == 0 || len(body)%size != 0 {
		return Message{}, 0, ErrPayloadSize
	}
	msg.Payload = body
	return msg, total, nil
}

// Payload builders

func PayloadU8(v ...uint8) []byte {
	return append([]byte(nil), v...)
}

func PayloadU16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

func PayloadU32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func PayloadU64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func PayloadFloat(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

// Payload readers. Each returns false when the payload is too short.

func ReadU8(p []byte) (uint8, bool) {
	if len(p) < 1 {
		return 0, false
	}
	return p[0], true
}

func ReadU16(p []byte) (uint16, bool) {
	if len(p) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(p), true
}

func ReadU32(p []byte) (uint32, bool) {
	if len(p) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(p), true
}

func ReadU64(p []byte) (uint64, bool) {
	if len(p) < 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(p), true
}
