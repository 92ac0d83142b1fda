package core

import (
	"cuttlefish/protocol"
)

// Harp core register addresses
const (
	RegWhoAmI          = 0
	RegHWVersionH      = 1
	RegHWVersionL      = 2
	RegAssemblyVersion = 3
	RegHarpVersionH    = 4
	RegHarpVersionL    = 5
	RegFWVersionH      = 6
	RegFWVersionL      = 7
	RegTimestampSecond = 8
	RegTimestampMicro  = 9
	RegOperationCtrl   = 10
	RegResetDevice     = 11
	RegDeviceName      = 12
	RegSerialNumber    = 13

	// AppRegBase is the first application register
	AppRegBase = 32
)

// OperationCtrl bits
const (
	OpModeMask   = 0x03
	OpDump       = 1 << 3
	OpMuteReply  = 1 << 4
	OpVisualEn   = 1 << 5
	OpLEDEnable  = 1 << 6
	OpAliveEvent = 1 << 7
)

// ResetDevice bits
const (
	ResetDefault = 1 << 0
)

// DeviceInfo is the identity reported by the core registers
type DeviceInfo struct {
	WhoAmI       uint16
	HWVersionH   uint8
	HWVersionL   uint8
	Assembly     uint8
	FWVersionH   uint8
	FWVersionL   uint8
	SerialNumber uint16
	Name         string
}

// DefaultDeviceInfo returns the identity compiled into the firmware
func DefaultDeviceInfo() DeviceInfo {
	return DeviceInfo{
		WhoAmI:     DeviceWhoAmI,
		HWVersionH: DeviceHWVersion,
		HWVersionL: DeviceHWMinor,
		Assembly:   DeviceAssembly,
		FWVersionH: DeviceFWVersion,
		FWVersionL: DeviceFWMinor,
		Name:       DeviceNameDefault,
	}
}

// LoadBoardID overrides the serial number and name with the EEPROM
// contents. Read failures leave the compiled-in values.
func (d *DeviceInfo) LoadBoardID(b *BoardID) error {
	sn, err := b.SerialNumber()
	if err != nil {
		return err
	}
	d.SerialNumber = sn
	name, err := b.DeviceName()
	if err != nil {
		return err
	}
	if name != "" {
		d.Name = name
	}
	return nil
}

// HarpCore serves the core registers shared by every Harp device and
// keeps the device clock offset set by the host.
type HarpCore struct {
	info   DeviceInfo
	clock  Clock
	offset uint64 // Added to device uptime to get Harp time
	opCtrl uint8

	// OnMute is called when the host toggles reply muting
	OnMute func(bool)
	// OnReset is called when the host requests a reset to defaults
	OnReset func()
}

// NewHarpCore creates the core register set
func NewHarpCore(info DeviceInfo, clock Clock) *HarpCore {
	return &HarpCore{info: info, clock: clock}
}

// NowUS returns the Harp time in microseconds
func (c *HarpCore) NowUS() uint64 {
	return c.clock.Uptime() + c.offset
}

// ToHarpUS converts a device uptime to Harp time
func (c *HarpCore) ToHarpUS(uptime uint64) uint64 {
	return uptime + c.offset
}

// Info returns the identity served by the core registers
func (c *HarpCore) Info() DeviceInfo {
	return c.info
}

// Muted reports whether non-error replies are suppressed
func (c *HarpCore) Muted() bool {
	return c.opCtrl&OpMuteReply != 0
}

// Install adds the core registers to table
func (c *HarpCore) Install(table *RegisterTable) {
	u8 := func(v *uint8) RegisterReadFunc {
		return func() []byte { return protocol.PayloadU8(*v) }
	}

	table.Add(Register{Address: RegWhoAmI, Name: "WhoAmI", Type: protocol.U16,
		Read: func() []byte { return protocol.PayloadU16(c.info.WhoAmI) }})
	table.Add(Register{Address: RegHWVersionH, Name: "HwVersionHigh", Type: protocol.U8, Read: u8(&c.info.HWVersionH)})
	table.Add(Register{Address: RegHWVersionL, Name: "HwVersionLow", Type: protocol.U8, Read: u8(&c.info.HWVersionL)})
	table.Add(Register{Address: RegAssemblyVersion, Name: "AssemblyVersion", Type: protocol.U8, Read: u8(&c.info.Assembly)})
	table.Add(Register{Address: RegHarpVersionH, Name: "CoreVersionHigh", Type: protocol.U8,
		Read: func() []byte { return protocol.PayloadU8(1) }})
	table.Add(Register{Address: RegHarpVersionL, Name: "CoreVersionLow", Type: protocol.U8,
		Read: func() []byte { return protocol.PayloadU8(0) }})
	table.Add(Register{Address: RegFWVersionH, Name: "FirmwareVersionHigh", Type: protocol.U8, Read: u8(&c.info.FWVersionH)})
	table.Add(Register{Address: RegFWVersionL, Name: "FirmwareVersionLow", Type: protocol.U8, Read: u8(&c.info.FWVersionL)})

	table.Add(Register{Address: RegTimestampSecond, Name: "TimestampSeconds", Type: protocol.U32, Length: 4,
		Read: func() []byte { return protocol.PayloadU32(uint32(c.NowUS() / 1000000)) },
		Write: func(p []byte) error {
			sec, _ := protocol.ReadU32(p)
			up := c.clock.Uptime()
			// Keep the sub-second phase, replace the seconds
			c.offset = uint64(sec)*1000000 + (up+c.offset)%1000000 - up
			return nil
		}})
	table.Add(Register{Address: RegTimestampMicro, Name: "TimestampMicroseconds", Type: protocol.U16,
		Read: func() []byte {
			return protocol.PayloadU16(uint16((c.NowUS() % 1000000) / protocol.TimestampTickUS))
		}})

	table.Add(Register{Address: RegOperationCtrl, Name: "OperationControl", Type: protocol.U8, Length: 1,
		Read: func() []byte { return protocol.PayloadU8(c.opCtrl) },
		Write: func(p []byte) error {
			prev := c.opCtrl
			c.opCtrl = p[0] &^ OpDump
			if (prev^c.opCtrl)&OpMuteReply != 0 && c.OnMute != nil {
				c.OnMute(c.Muted())
			}
			return nil
		}})
	table.Add(Register{Address: RegResetDevice, Name: "ResetDevice", Type: protocol.U8, Length: 1,
		Read: func() []byte { return protocol.PayloadU8(0) },
		Write: func(p []byte) error {
			if p[0]&ResetDefault != 0 && c.OnReset != nil {
				c.OnReset()
			}
			return nil
		}})
	table.Add(Register{Address: RegDeviceName, Name: "DeviceName", Type: protocol.U8,
		Read: func() []byte {
			var name [DeviceNameSize]byte
			copy(name[:], c.info.Name)
			return name[:]
		}})
	table.Add(Register{Address: RegSerialNumber, Name: "SerialNumber", Type: protocol.U16,
		Read: func() []byte { return protocol.PayloadU16(c.info.SerialNumber) }})
}
