//go:build rp2040 && debug

package main

import (
	"machine"

	"cuttlefish/core"
)

var debugUART *machine.UART

// InitDebug routes core debug output to UART0, TX only on GPIO0
func InitDebug() {
	debugUART = machine.UART0
	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 921600,
		TX:       uartTXPin,
		RX:       machine.NoPin,
	})
	if err != nil {
		return
	}

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()
	core.DebugPrintln("=== cuttlefish debug UART ===")
}
