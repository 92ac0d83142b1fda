package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/shlex"

	"cuttlefish/host/device"
	"cuttlefish/host/serial"
)

var (
	devicePath = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", 1000000, "Baud rate (ignored for USB CDC)")
	timeout    = flag.Duration("timeout", device.DefaultTimeout, "Register request timeout")
	execLine   = flag.String("c", "", "Run one command line and exit")
	verbose    = flag.Bool("verbose", false, "Print events as they arrive")
)

func main() {
	flag.Parse()

	fmt.Println("cuttlefish host - Harp client")
	fmt.Println("=============================")
	fmt.Println()

	dev := device.NewDevice()
	dev.Timeout = *timeout

	fmt.Printf("Connecting to %s...\n", *devicePath)
	cfg := serial.DefaultConfig(*devicePath)
	cfg.Baud = *baud
	if err := dev.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	if _, err := dev.ReadIdentity(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read identity: %v\n", err)
		os.Exit(1)
	}
	dev.PrintIdentity()

	if *verbose {
		dev.OnEvent(func(e *device.Event) { fmt.Println(formatEvent(e)) })
	}

	if *execLine != "" {
		if err := runLine(dev, *execLine, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" || line == "q" {
			fmt.Println("Goodbye!")
			return
		}
		if err := runLine(dev, line, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// runLine splits a command line with shell quoting rules and runs it
func runLine(dev client, line string, out io.Writer) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("bad command line: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", args[0])
	}
	return cmd.run(dev, args[1:], out)
}
