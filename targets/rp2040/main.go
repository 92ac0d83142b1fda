//go:build rp2040

package main

import (
	"machine"
	"time"

	"cuttlefish/core"
	"cuttlefish/protocol"
)

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// Scheduling loop handed to core1
	schedLoop schedulingLoop

	// Debug counters
	msgerrors uint32

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Disable the watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitDebug()
	core.TimerInit()
	UpdateSystemTime()

	board := InitBoard()
	port := NewSIOPort()

	harp := core.NewHarpCore(board.DeviceInfo(), clock)
	mode := GetMode(board, port, harp)

	table := core.NewRegisterTable()
	harp.Install(table)
	mode.App.Install(table)

	inputBuffer = protocol.NewFifoBuffer(4 * protocol.FrameMax)
	outputBuffer = protocol.NewScratchOutput()
	transport = protocol.NewTransport(outputBuffer, table, harp.NowUS)
	// Push each reply out as soon as it is framed; the scratch buffer only
	// holds a few
	transport.SetFlushCallback(writeUSB)
	mode.App.SetEventSink(transport)

	harp.OnMute = transport.SetMuted
	harp.OnReset = func() {
		mode.App.Reset()
		board.SetFault(false)
	}

	schedLoop = mode.Loop
	machine.Core1.Start(core1Main)
	if !mode.Ready.Wait(time.Second) {
		core.DebugPrintln("[MAIN] core1 did not report ready")
	}
	core.DebugPrintln("[MAIN] " + mode.Name + " firmware up, serial " + itoa(int(harp.Info().SerialNumber)))
	board.StartHeartbeat()

	go usbReaderLoop()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
			}

			mode.App.Update()

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}

			core.ProcessTimers()
		}()

		// Yield to the USB reader goroutine
		time.Sleep(10 * time.Microsecond)
	}
}

// core1Main runs the scheduling loop. It never returns.
func core1Main() {
	schedLoop.Init()
	for {
		schedLoop.Step()
	}
}

// usbReaderLoop runs in a goroutine to continuously read USB data
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// A host reconnecting starts from a clean parser state
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{data}) == 0 {
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB writes the pending output to USB. Repeated failures mark the
// host as gone and drop the stale data.
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}

// itoa converts int to string without importing strconv
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	negative := i < 0
	if negative {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
