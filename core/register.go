package core

import (
	"sync"

	"cuttlefish/protocol"
)

// RegisterReadFunc returns the current register payload
type RegisterReadFunc func() []byte

// RegisterWriteFunc applies a written payload. A returned error produces a
// WRITE_ERROR reply and must leave the register unchanged.
type RegisterWriteFunc func(payload []byte) error

// Register describes one Harp register
type Register struct {
	Address uint8
	Name    string
	Type    protocol.PayloadType
	Length  int // Payload length in bytes, 0 accepts any multiple of the element size
	Read    RegisterReadFunc
	Write   RegisterWriteFunc // nil marks the register read-only
}

// RegisterTable holds all registers served by the device
type RegisterTable struct {
	mu   sync.RWMutex
	regs map[uint8]*Register
}

// NewRegisterTable creates an empty register table
func NewRegisterTable() *RegisterTable {
	return &RegisterTable{regs: make(map[uint8]*Register)}
}

// Add registers reg, replacing any register at the same address
func (t *RegisterTable) Add(reg Register) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := reg
	t.regs[reg.Address] = &r
}

// Get retrieves a register by address
func (t *RegisterTable) Get(address uint8) (*Register, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.regs[address]
	return r, ok
}

// Addresses returns every registered address in ascending order
func (t *RegisterTable) Addresses() []uint8 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uint8, 0, len(t.regs))
	for a := 0; a < 256; a++ {
		if _, ok := t.regs[uint8(a)]; ok {
			out = append(out, uint8(a))
		}
	}
	return out
}

// HandleMessage implements protocol.RegisterHandler
func (t *RegisterTable) HandleMessage(msg *protocol.Message) (protocol.PayloadType, []byte, error) {
	reg, ok := t.Get(msg.Address)
	if !ok {
		return msg.PayloadType, nil, newError(ValidationError, "register", "unknown address "+utoa(uint32(msg.Address)))
	}
	current := func() []byte {
		if reg.Read == nil {
			return nil
		}
		return reg.Read()
	}

	if msg.PayloadType != reg.Type {
		return reg.Type, current(), newError(ValidationError, reg.Name, "payload type mismatch")
	}

	switch msg.Type {
	case protocol.Read:
		return reg.Type, current(), nil

	case protocol.Write:
		if reg.Write == nil {
			return reg.Type, current(), newError(ValidationError, reg.Name, "register is read-only")
		}
		if reg.Length > 0 && len(msg.Payload) != reg.Length {
			return reg.Type, current(), newError(ValidationError, reg.Name, "want "+itoa(reg.Length)+" bytes, got "+itoa(len(msg.Payload)))
		}
		if err := reg.Write(msg.Payload); err != nil {
			DebugPrintln("[HARP] write " + reg.Name + ": " + err.Error())
			return reg.Type, current(), err
		}
		return reg.Type, current(), nil
	}
	return reg.Type, nil, newError(ValidationError, reg.Name, "unsupported message type")
}
