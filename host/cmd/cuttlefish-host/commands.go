package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"cuttlefish/core"
	"cuttlefish/host/device"
	"cuttlefish/protocol"
)

// client is the part of *device.Device the commands use
type client interface {
	ReadIdentity() (*device.Identity, error)
	IdentityJSON() ([]byte, error)
	Read(address uint8, pt protocol.PayloadType) ([]byte, error)
	Write(address uint8, pt protocol.PayloadType, payload []byte) error
	Timestamp() (uint32, error)
	SetTimestamp(seconds uint32) error
	SetMuted(muted bool) error
	ResetDefaults() error
	NextEvent(timeout time.Duration) (*device.Event, error)

	SetPortDirection(mask uint8) error
	PortDirection() (uint8, error)
	PortState() (uint8, error)
	SetPortState(state uint8) error
	AddPwmTask(spec core.TaskSpec) error
	Start() error
	Abort() error
	ArmStartTrigger(mask uint8, rising bool) error
	ArmStopTrigger(mask uint8, rising bool) error
	ScheduleError() (core.ScheduleError, error)
	TaskCount() (uint8, error)

	EnableSchedule(on bool) error
	AddLaserTask(s core.LaserTaskSettings) error
	RemoveLaserTask(index int) error
	ClearLaserTasks() error
	LaserTaskCount() (int, error)
	LaserTask(index int) (core.LaserTaskSettings, error)
	ReconfigureLaserTask(index int, s core.LaserTaskSettings) error
}

var _ client = (*device.Device)(nil)

type command struct {
	usage string
	help  string
	run   func(dev client, args []string, out io.Writer) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":    {"help", "Show this help message", runHelp},
		"info":    {"info [-json]", "Print the device identity", runInfo},
		"read":    {"read <addr> [type]", "Read a register (type u8|u16|u32|u64|float)", runRead},
		"write":   {"write <addr> <type> <value>...", "Write a register", runWrite},
		"time":    {"time [seconds]", "Read or set the Harp time", runTime},
		"mute":    {"mute on|off", "Suppress non-error replies", runMute},
		"reset":   {"reset", "Reset the app to defaults", runReset},
		"events":  {"events [-n N] [-timeout D]", "Print events pushed by the device", runEvents},
		"dir":     {"dir [mask]", "Read or set the IO output mask", runDir},
		"port":    {"port [state]", "Read the IO lines or drive the outputs", runPort},
		"pwm":     {"pwm -mask M -on US -period US [-offset US] [-cycles N] [-invert]", "Queue a waveform task", runPwm},
		"start":   {"start", "Start the queued waveform tasks", runStart},
		"abort":   {"abort", "Stop the schedule and drop its tasks", runAbort},
		"trigger": {"trigger start|stop -mask M [-falling]", "Arm an external trigger", runTrigger},
		"status":  {"status", "Print queued tasks and the last schedule error", runStatus},
		"enable":  {"enable on|off", "Run or stop the exposure sequence", runEnable},
		"laser":   {"laser add|set|rm|clear|show|count ...", "Edit the exposure sequence", runLaser},
	}
}

func runHelp(dev client, args []string, out io.Writer) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, "\nAvailable commands:")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(out, "  %-58s - %s\n", c.usage, c.help)
	}
	fmt.Fprintf(out, "  %-58s - %s\n\n", "quit/exit/q", "Exit the program")
	return nil
}

func runInfo(dev client, args []string, out io.Writer) error {
	fs := newFlagSet("info")
	asJSON := fs.Bool("json", false, "Print as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := dev.ReadIdentity()
	if err != nil {
		return err
	}
	if *asJSON {
		js, err := dev.IdentityJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(js))
		return nil
	}
	fmt.Fprintf(out, "%s 0x%04X serial %d hw %s fw %s\n", id.Name, id.WhoAmI, id.SerialNumber, id.HWVersion, id.FWVersion)
	return nil
}

func runRead(dev client, args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("read")
	}
	addr, err := parseU8(args[0])
	if err != nil {
		return err
	}
	pt := protocol.U8
	if len(args) == 2 {
		if pt, err = parsePayloadType(args[1]); err != nil {
			return err
		}
	}
	p, err := dev.Read(addr, pt)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "[%d] %s\n", addr, formatPayload(pt, p))
	return nil
}

func runWrite(dev client, args []string, out io.Writer) error {
	if len(args) < 3 {
		return usageError("write")
	}
	addr, err := parseU8(args[0])
	if err != nil {
		return err
	}
	pt, err := parsePayloadType(args[1])
	if err != nil {
		return err
	}
	var payload []byte
	for _, s := range args[2:] {
		b, err := encodeValue(pt, s)
		if err != nil {
			return err
		}
		payload = append(payload, b...)
	}
	return dev.Write(addr, pt, payload)
}

func runTime(dev client, args []string, out io.Writer) error {
	if len(args) == 1 {
		sec, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("bad seconds %q: %w", args[0], err)
		}
		return dev.SetTimestamp(uint32(sec))
	}
	sec, err := dev.Timestamp()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d s\n", sec)
	return nil
}

func runMute(dev client, args []string, out io.Writer) error {
	on, err := parseOnOff("mute", args)
	if err != nil {
		return err
	}
	return dev.SetMuted(on)
}

func runReset(dev client, args []string, out io.Writer) error {
	return dev.ResetDefaults()
}

func runEvents(dev client, args []string, out io.Writer) error {
	fs := newFlagSet("events")
	n := fs.Int("n", 1, "Number of events to wait for")
	wait := fs.Duration("timeout", 5*time.Second, "Timeout per event")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for i := 0; i < *n; i++ {
		e, err := dev.NextEvent(*wait)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatEvent(e))
	}
	return nil
}

func runDir(dev client, args []string, out io.Writer) error {
	if len(args) == 1 {
		mask, err := parseU8(args[0])
		if err != nil {
			return err
		}
		return dev.SetPortDirection(mask)
	}
	dir, err := dev.PortDirection()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "outputs 0b%08b\n", dir)
	return nil
}

func runPort(dev client, args []string, out io.Writer) error {
	if len(args) == 1 {
		state, err := parseU8(args[0])
		if err != nil {
			return err
		}
		return dev.SetPortState(state)
	}
	state, err := dev.PortState()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "lines 0b%08b\n", state)
	return nil
}

func runPwm(dev client, args []string, out io.Writer) error {
	spec, err := parseTaskSpec(args)
	if err != nil {
		return err
	}
	return dev.AddPwmTask(spec)
}

// parseTaskSpec reads a waveform task from command flags
func parseTaskSpec(args []string) (core.TaskSpec, error) {
	fs := newFlagSet("pwm")
	mask := fs.String("mask", "", "IO lines to drive")
	on := fs.Uint("on", 0, "High time in µs")
	period := fs.Uint("period", 0, "Period in µs")
	offset := fs.Uint("offset", 0, "Delay before the first rising edge in µs")
	cycles := fs.Uint("cycles", 0, "Number of periods, 0 runs forever")
	invert := fs.Bool("invert", false, "Invert the output")
	if err := fs.Parse(args); err != nil {
		return core.TaskSpec{}, err
	}
	m, err := parseU8(*mask)
	if err != nil {
		return core.TaskSpec{}, fmt.Errorf("-mask: %w", err)
	}
	spec := core.TaskSpec{
		OffsetUS:    uint32(*offset),
		OnTimeUS:    uint32(*on),
		PeriodUS:    uint32(*period),
		ChannelMask: m,
		Cycles:      uint32(*cycles),
		Invert:      *invert,
	}
	return spec, spec.Validate()
}

func runStart(dev client, args []string, out io.Writer) error {
	return dev.Start()
}

func runAbort(dev client, args []string, out io.Writer) error {
	return dev.Abort()
}

func runTrigger(dev client, args []string, out io.Writer) error {
	if len(args) < 1 || (args[0] != "start" && args[0] != "stop") {
		return usageError("trigger")
	}
	fs := newFlagSet("trigger")
	mask := fs.String("mask", "", "IO lines to watch")
	falling := fs.Bool("falling", false, "Trigger on falling edges")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	m, err := parseU8(*mask)
	if err != nil {
		return fmt.Errorf("-mask: %w", err)
	}
	if args[0] == "start" {
		return dev.ArmStartTrigger(m, !*falling)
	}
	return dev.ArmStopTrigger(m, !*falling)
}

func runStatus(dev client, args []string, out io.Writer) error {
	n, err := dev.TaskCount()
	if err != nil {
		return err
	}
	f, err := dev.ScheduleError()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d task(s) queued, last error %s\n", n, faultName(f))
	return nil
}

func runEnable(dev client, args []string, out io.Writer) error {
	on, err := parseOnOff("enable", args)
	if err != nil {
		return err
	}
	return dev.EnableSchedule(on)
}

func runLaser(dev client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("laser")
	}
	switch args[0] {
	case "add":
		s, err := parseLaserTask(device.DefaultLaserTask(0, 0), args[1:])
		if err != nil {
			return err
		}
		return dev.AddLaserTask(s)

	case "set":
		if len(args) < 2 {
			return usageError("laser")
		}
		i, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad index %q", args[1])
		}
		cur, err := dev.LaserTask(i)
		if err != nil {
			return err
		}
		s, err := parseLaserTask(cur, args[2:])
		if err != nil {
			return err
		}
		return dev.ReconfigureLaserTask(i, s)

	case "rm":
		if len(args) != 2 {
			return usageError("laser")
		}
		i, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad index %q", args[1])
		}
		return dev.RemoveLaserTask(i)

	case "clear":
		return dev.ClearLaserTasks()

	case "count":
		n, err := dev.LaserTaskCount()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d laser task(s)\n", n)
		return nil

	case "show":
		n, err := dev.LaserTaskCount()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			s, err := dev.LaserTask(i)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "[%d] %s\n", i, formatLaserTask(s))
		}
		return nil
	}
	return usageError("laser")
}

// parseLaserTask applies command flags on top of base
func parseLaserTask(base core.LaserTaskSettings, args []string) (core.LaserTaskSettings, error) {
	s := base
	fs := newFlagSet("laser")
	pwm := fs.String("pwm", "", "IO line mask carrying the laser PWM (one bit)")
	outputs := fs.String("out", "", "IO lines raised during the exposure")
	duty := fs.Float64("duty", float64(s.DutyCycle), "Laser duty cycle, 0 to 1")
	freq := fs.Float64("freq", float64(s.FrequencyHz), "Laser PWM frequency in Hz")
	d1 := fs.Uint("d1", uint(s.Delta1US), "Camera exposure in µs")
	d2 := fs.Uint("d2", uint(s.Delta2US), "Laser off to next task in µs")
	d3 := fs.Uint("d3", uint(s.Delta3US), "Laser on to camera on in µs")
	d4 := fs.Uint("d4", uint(s.Delta4US), "Camera off to laser off in µs")
	muted := fs.Bool("muted", s.Muted, "Run the timing without driving outputs")
	events := fs.Bool("events", s.EventsEnabled, "Report rising edges")
	if err := fs.Parse(args); err != nil {
		return s, err
	}
	if *pwm != "" {
		v, err := parseU8(*pwm)
		if err != nil {
			return s, fmt.Errorf("-pwm: %w", err)
		}
		s.PWMChannel = uint32(v)
	}
	if *outputs != "" {
		v, err := parseU8(*outputs)
		if err != nil {
			return s, fmt.Errorf("-out: %w", err)
		}
		s.OutputMask = uint32(v)
	}
	s.DutyCycle = float32(*duty)
	s.FrequencyHz = float32(*freq)
	s.Delta1US = uint32(*d1)
	s.Delta2US = uint32(*d2)
	s.Delta3US = uint32(*d3)
	s.Delta4US = uint32(*d4)
	s.Muted = *muted
	s.EventsEnabled = *events
	return s, s.Validate()
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func usageError(name string) error {
	return fmt.Errorf("usage: %s", commands[name].usage)
}

func parseOnOff(name string, args []string) (bool, error) {
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "on", "1", "true":
			return true, nil
		case "off", "0", "false":
			return false, nil
		}
	}
	return false, usageError(name)
}

// parseU8 accepts decimal, 0x hex and 0b binary
func parseU8(s string) (uint8, error) {
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad byte %q", s)
	}
	return uint8(v), nil
}

func parsePayloadType(s string) (protocol.PayloadType, error) {
	switch strings.ToLower(s) {
	case "u8":
		return protocol.U8, nil
	case "u16":
		return protocol.U16, nil
	case "u32":
		return protocol.U32, nil
	case "u64":
		return protocol.U64, nil
	case "s8":
		return protocol.S8, nil
	case "s16":
		return protocol.S16, nil
	case "s32":
		return protocol.S32, nil
	case "s64":
		return protocol.S64, nil
	case "float":
		return protocol.Float, nil
	}
	return 0, fmt.Errorf("unknown payload type %q", s)
}

func encodeValue(pt protocol.PayloadType, s string) ([]byte, error) {
	if pt == protocol.Float {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("bad float %q", s)
		}
		return protocol.PayloadFloat(float32(f)), nil
	}
	size := pt.ElementSize()
	var v uint64
	if pt&0x80 != 0 {
		i, err := strconv.ParseInt(s, 0, size*8)
		if err != nil {
			return nil, fmt.Errorf("bad value %q", s)
		}
		v = uint64(i)
	} else {
		u, err := strconv.ParseUint(s, 0, size*8)
		if err != nil {
			return nil, fmt.Errorf("bad value %q", s)
		}
		v = u
	}
	b := protocol.PayloadU64(v)
	return b[:size], nil
}

func formatPayload(pt protocol.PayloadType, p []byte) string {
	size := pt.ElementSize()
	if size == 0 || len(p)%size != 0 {
		return fmt.Sprintf("% x", p)
	}
	parts := make([]string, 0, len(p)/size)
	for i := 0; i < len(p); i += size {
		el := p[i : i+size]
		switch size {
		case 1:
			parts = append(parts, strconv.Itoa(int(el[0])))
		case 2:
			v, _ := protocol.ReadU16(el)
			parts = append(parts, strconv.Itoa(int(v)))
		case 4:
			if pt == protocol.Float {
				v, _ := protocol.ReadU32(el)
				f := math.Float32frombits(v)
				parts = append(parts, strconv.FormatFloat(float64(f), 'g', -1, 32))
				break
			}
			v, _ := protocol.ReadU32(el)
			parts = append(parts, strconv.FormatUint(uint64(v), 10))
		case 8:
			v, _ := protocol.ReadU64(el)
			parts = append(parts, strconv.FormatUint(v, 10))
		}
	}
	return strings.Join(parts, " ")
}

func formatEvent(e *device.Event) string {
	ts := float64(e.TimestampUS) / 1e6
	if f, ok := e.ScheduleFault(); ok {
		return fmt.Sprintf("%.6f schedule error: %s", ts, faultName(f))
	}
	if r, ok := e.RisingEdge(); ok {
		return fmt.Sprintf("%.6f rising edge: 0b%08b", ts, r.OutputState)
	}
	return fmt.Sprintf("%.6f event [%d] %s", ts, e.Address, formatPayload(e.PayloadType, e.Payload))
}

func formatLaserTask(s core.LaserTaskSettings) string {
	flags := ""
	if s.Muted {
		flags += " muted"
	}
	if !s.EventsEnabled {
		flags += " no-events"
	}
	return fmt.Sprintf("pwm 0b%08b %.0fHz %.0f%% out 0b%08b d1 %d d2 %d d3 %d d4 %d%s",
		s.PWMChannel, s.FrequencyHz, s.DutyCycle*100, s.OutputMask,
		s.Delta1US, s.Delta2US, s.Delta3US, s.Delta4US, flags)
}

func faultName(f core.ScheduleError) string {
	if f == core.FaultNone {
		return "none"
	}
	return string(f.Code())
}
