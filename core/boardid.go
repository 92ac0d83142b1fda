package core

import (
	"encoding/binary"

	"tinygo.org/x/drivers"
)

// Board ID EEPROM layout (24xx-series part on the I2C bus)
const (
	BoardIDAddress      = 0x50
	boardIDSerialOffset = 0x00
	boardIDNameOffset   = 0x10
	DeviceNameSize      = 25
)

// BoardID reads the serial number and device name programmed into the
// board EEPROM.
type BoardID struct {
	bus  drivers.I2C
	addr uint16
}

// NewBoardID creates a reader for the EEPROM at addr on bus
func NewBoardID(bus drivers.I2C, addr uint16) *BoardID {
	return &BoardID{bus: bus, addr: addr}
}

// SerialNumber reads the 16-bit little-endian serial number. An erased
// EEPROM (0xFFFF) is reported as 0.
func (b *BoardID) SerialNumber() (uint16, error) {
	var buf [2]byte
	if err := b.bus.Tx(b.addr, []byte{boardIDSerialOffset}, buf[:]); err != nil {
		return 0, wrapError(DriverError, "board_id", err)
	}
	sn := binary.LittleEndian.Uint16(buf[:])
	if sn == 0xFFFF {
		return 0, nil
	}
	return sn, nil
}

// DeviceName reads the NUL-padded device name. Returns "" for an erased
// EEPROM.
func (b *BoardID) DeviceName() (string, error) {
	var buf [DeviceNameSize]byte
	if err := b.bus.Tx(b.addr, []byte{boardIDNameOffset}, buf[:]); err != nil {
		return "", wrapError(DriverError, "board_id", err)
	}
	n := 0
	for n < len(buf) && buf[n] != 0 && buf[n] != 0xFF {
		n++
	}
	return string(buf[:n]), nil
}
