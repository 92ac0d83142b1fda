// Package protocol implements the Harp binary register protocol
package protocol

// Version is the firmware version string reported to hosts
const Version = "0.3.0"

// Frame layout constants
const (
	MessageMax = 512 // Output scratch size, room for a few replies

	FrameHeaderSize = 5 // Type, Length, Address, Port, PayloadType
	TimestampSize   = 6 // Seconds u32 + 32us ticks u16
	ChecksumSize    = 1
	FrameMin        = FrameHeaderSize + ChecksumSize
	FrameMax        = 2 + 255 // Type and Length plus the largest Length

	PositionType        = 0
	PositionLength      = 1
	PositionAddress     = 2
	PositionPort        = 3
	PositionPayloadType = 4

	DefaultPort = 255

	// TimestampTickUS is the resolution of the timestamp sub-second field
	TimestampTickUS = 32
)

// MessageType is the first byte of every frame
type MessageType uint8

const (
	Read  MessageType = 1
	Write MessageType = 2
	Event MessageType = 3

	ErrorFlag  MessageType = 0x08
	ReadError              = Read | ErrorFlag
	WriteError             = Write | ErrorFlag
)

func (m MessageType) IsError() bool { return m&ErrorFlag != 0 }

func (m MessageType) String() string {
	switch m {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case Event:
		return "EVENT"
	case ReadError:
		return "READ_ERROR"
	case WriteError:
		return "WRITE_ERROR"
	}
	return "UNKNOWN"
}

// PayloadType encodes element size, signedness and the timestamp flag
type PayloadType uint8

const (
	U8    PayloadType = 0x01
	U16   PayloadType = 0x02
	U32   PayloadType = 0x04
	U64   PayloadType = 0x08
	S8    PayloadType = 0x81
	S16   PayloadType = 0x82
	S32   PayloadType = 0x84
	S64   PayloadType = 0x88
	Float PayloadType = 0x44

	HasTimestamp PayloadType = 0x10

	typeSizeMask PayloadType = 0x0F
)

// Base strips the timestamp flag
func (p PayloadType) Base() PayloadType { return p &^ HasTimestamp }

// Timestamped reports whether frames of this type carry a timestamp
func (p PayloadType) Timestamped() bool { return p&HasTimestamp != 0 }

// ElementSize returns the size in bytes of one payload element, or 0 for
// an unknown type.
func (p PayloadType) ElementSize() int {
	switch p.Base() {
	case U8, S8, U16, S16, U32, S32, U64, S64, Float:
		return int(p.Base() & typeSizeMask)
	}
	return 0
}

// Message is a decoded Harp frame
type Message struct {
	Type        MessageType
	Address     uint8
	Port        uint8
	PayloadType PayloadType // Without the timestamp flag
	Timestamped bool
	Seconds     uint32
	Ticks       uint16 // Sub-second part in 32us units
	Payload     []byte
}

// TimestampUS returns the frame timestamp in microseconds
func (m *Message) TimestampUS() uint64 {
	return uint64(m.Seconds)*1000000 + uint64(m.Ticks)*TimestampTickUS
}

// SetTimestampUS stores us as a Harp timestamp
func (m *Message) SetTimestampUS(us uint64) {
	m.Timestamped = true
	m.Seconds = uint32(us / 1000000)
	m.Ticks = uint16((us % 1000000) / TimestampTickUS)
}
