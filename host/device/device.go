// Package device is a Harp host client for cuttlefish boards
package device

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"cuttlefish/core"
	"cuttlefish/host/serial"
	"cuttlefish/protocol"
)

// DefaultTimeout bounds every register request
const DefaultTimeout = 500 * time.Millisecond

// Device represents a connection to a cuttlefish board
type Device struct {
	// Transport layer
	transport *protocol.HostTransport

	// Request timeout
	Timeout time.Duration

	// Identity read at connect time
	identity *Identity

	// Last OperationControl value; it cannot be read back while muted
	opCtrl uint8
	muted  bool

	connected bool
}

// Identity is the device description served by the Harp core registers
type Identity struct {
	WhoAmI       uint16 `json:"who_am_i"`
	HWVersion    string `json:"hw_version"`
	Assembly     uint8  `json:"assembly_version"`
	HarpVersion  string `json:"harp_version"`
	FWVersion    string `json:"fw_version"`
	SerialNumber uint16 `json:"serial_number"`
	Name         string `json:"name"`
}

// Event is an EVENT frame pushed by the device
type Event struct {
	Address     uint8
	PayloadType protocol.PayloadType
	Payload     []byte
	TimestampUS uint64
}

// NewDevice creates a new Device instance (not yet connected)
func NewDevice() *Device {
	return &Device{Timeout: DefaultTimeout}
}

// Connect connects to a board via serial port
func (d *Device) Connect(path string) error {
	return d.ConnectWithConfig(serial.DefaultConfig(path))
}

// ConnectWithConfig connects with a custom serial config
func (d *Device) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	d.Attach(port)

	// Give the board time to initialize (if it just powered on)
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Attach runs the client over an already open byte stream
func (d *Device) Attach(port io.ReadWriteCloser) {
	d.transport = protocol.NewHostTransport(port)
	d.connected = true
}

// Close closes the connection
func (d *Device) Close() error {
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			return err
		}
	}
	d.connected = false
	return nil
}

// IsConnected returns whether the device is connected
func (d *Device) IsConnected() bool {
	return d.connected
}

// Read reads a register and returns its payload
func (d *Device) Read(address uint8, pt protocol.PayloadType) ([]byte, error) {
	if !d.connected {
		return nil, fmt.Errorf("not connected")
	}
	reply, err := d.transport.ReadRegister(address, pt, d.Timeout)
	if err != nil {
		return nil, err
	}
	return reply.Payload, nil
}

// Write writes payload to a register
func (d *Device) Write(address uint8, pt protocol.PayloadType, payload []byte) error {
	if !d.connected {
		return fmt.Errorf("not connected")
	}
	_, err := d.transport.WriteRegister(address, pt, payload, d.Timeout)
	return err
}

// ReadU8 reads a one-byte register
func (d *Device) ReadU8(address uint8) (uint8, error) {
	p, err := d.Read(address, protocol.U8)
	if err != nil {
		return 0, err
	}
	v, ok := protocol.ReadU8(p)
	if !ok {
		return 0, fmt.Errorf("register %d: empty payload", address)
	}
	return v, nil
}

// WriteU8 writes a one-byte register
func (d *Device) WriteU8(address, value uint8) error {
	return d.Write(address, protocol.U8, protocol.PayloadU8(value))
}

func (d *Device) readU16(address uint8) (uint16, error) {
	p, err := d.Read(address, protocol.U16)
	if err != nil {
		return 0, err
	}
	v, ok := protocol.ReadU16(p)
	if !ok {
		return 0, fmt.Errorf("register %d: short payload", address)
	}
	return v, nil
}

// ReadIdentity reads the Harp core registers
func (d *Device) ReadIdentity() (*Identity, error) {
	id := &Identity{}
	var err error
	if id.WhoAmI, err = d.readU16(core.RegWhoAmI); err != nil {
		return nil, fmt.Errorf("failed to read WhoAmI: %w", err)
	}

	var v [7]uint8
	for i, addr := range []uint8{
		core.RegHWVersionH, core.RegHWVersionL, core.RegAssemblyVersion,
		core.RegHarpVersionH, core.RegHarpVersionL, core.RegFWVersionH, core.RegFWVersionL,
	} {
		if v[i], err = d.ReadU8(addr); err != nil {
			return nil, fmt.Errorf("failed to read register %d: %w", addr, err)
		}
	}
	id.HWVersion = fmt.Sprintf("%d.%d", v[0], v[1])
	id.Assembly = v[2]
	id.HarpVersion = fmt.Sprintf("%d.%d", v[3], v[4])
	id.FWVersion = fmt.Sprintf("%d.%d", v[5], v[6])

	if id.SerialNumber, err = d.readU16(core.RegSerialNumber); err != nil {
		return nil, fmt.Errorf("failed to read SerialNumber: %w", err)
	}
	name, err := d.Read(core.RegDeviceName, protocol.U8)
	if err != nil {
		return nil, fmt.Errorf("failed to read DeviceName: %w", err)
	}
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	id.Name = string(name[:n])

	d.identity = id
	return id, nil
}

// GetIdentity returns the identity from the last ReadIdentity
func (d *Device) GetIdentity() *Identity {
	return d.identity
}

// IdentityJSON returns the last identity as indented JSON
func (d *Device) IdentityJSON() ([]byte, error) {
	if d.identity == nil {
		return nil, fmt.Errorf("identity not loaded")
	}
	return json.MarshalIndent(d.identity, "", "  ")
}

// PrintIdentity prints a summary of the identity
func (d *Device) PrintIdentity() {
	if d.identity == nil {
		fmt.Println("No identity loaded")
		return
	}
	id := d.identity
	fmt.Println("\n=== Device ===")
	fmt.Printf("Name:      %s\n", id.Name)
	fmt.Printf("WhoAmI:    0x%04X\n", id.WhoAmI)
	fmt.Printf("Serial:    %d\n", id.SerialNumber)
	fmt.Printf("Hardware:  %s (assembly %d)\n", id.HWVersion, id.Assembly)
	fmt.Printf("Firmware:  %s\n", id.FWVersion)
	fmt.Printf("Harp core: %s\n", id.HarpVersion)
	fmt.Println("==============")
	fmt.Println()
}

// Timestamp returns the device's Harp time in whole seconds
func (d *Device) Timestamp() (uint32, error) {
	p, err := d.Read(core.RegTimestampSecond, protocol.U32)
	if err != nil {
		return 0, err
	}
	v, ok := protocol.ReadU32(p)
	if !ok {
		return 0, fmt.Errorf("short timestamp payload")
	}
	return v, nil
}

// SetTimestamp sets the device's Harp time seconds
func (d *Device) SetTimestamp(seconds uint32) error {
	return d.Write(core.RegTimestampSecond, protocol.U32, protocol.PayloadU32(seconds))
}

// SetMuted toggles reply muting in OperationControl. Replies to the
// write itself are suppressed once muting takes effect, so the request
// times out and the error is ignored.
func (d *Device) SetMuted(muted bool) error {
	if !d.muted {
		ctrl, err := d.ReadU8(core.RegOperationCtrl)
		if err != nil {
			return err
		}
		d.opCtrl = ctrl
	}
	if muted {
		d.opCtrl |= core.OpMuteReply
	} else {
		d.opCtrl &^= core.OpMuteReply
	}
	err := d.WriteU8(core.RegOperationCtrl, d.opCtrl)
	d.muted = muted
	if muted {
		return nil
	}
	return err
}

// Muted reports whether this client last muted the device
func (d *Device) Muted() bool {
	return d.muted
}

// ResetDefaults asks the device to reset its app to defaults
func (d *Device) ResetDefaults() error {
	return d.WriteU8(core.RegResetDevice, core.ResetDefault)
}

// NextEvent waits for the next event
func (d *Device) NextEvent(timeout time.Duration) (*Event, error) {
	if !d.connected {
		return nil, fmt.Errorf("not connected")
	}
	msg, err := d.transport.ReceiveEvent(timeout)
	if err != nil {
		return nil, err
	}
	return &Event{
		Address:     msg.Address,
		PayloadType: msg.PayloadType,
		Payload:     msg.Payload,
		TimestampUS: msg.TimestampUS(),
	}, nil
}

// OnEvent sets a callback run from the reader goroutine for every event.
// Events passed to the callback are not returned by NextEvent.
func (d *Device) OnEvent(fn func(*Event)) {
	if fn == nil {
		d.transport.SetEventHandler(nil)
		return
	}
	d.transport.SetEventHandler(func(msg *protocol.Message) {
		fn(&Event{
			Address:     msg.Address,
			PayloadType: msg.PayloadType,
			Payload:     msg.Payload,
			TimestampUS: msg.TimestampUS(),
		})
	})
}

// Dropped returns the number of bytes the reader discarded
func (d *Device) Dropped() uint32 {
	if d.transport == nil {
		return 0
	}
	return d.transport.Dropped()
}
