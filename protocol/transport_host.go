package protocol

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// EventHandler is called from the read loop for every EVENT frame
type EventHandler func(msg *Message)

// HostTransport handles the Harp protocol from the host side: it sends
// requests, matches replies and forwards events.
type HostTransport struct {
	// Serial I/O
	port io.ReadWriteCloser

	inputBuffer *FifoBuffer

	// Replies to READ/WRITE requests, in arrival order
	replyChan chan *Message

	// Events not consumed by eventHandler
	eventChan    chan *Message
	eventHandler EventHandler

	// One request in flight at a time
	requestMutex sync.Mutex
	readMutex    sync.Mutex

	dropped uint32 // atomic

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewHostTransport creates a host transport and starts its reader
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:        port,
		inputBuffer: NewFifoBuffer(4 * FrameMax),
		replyChan:   make(chan *Message, 4),
		eventChan:   make(chan *Message, 64),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// Request sends msg and waits for the reply to the same address
func (t *HostTransport) Request(msg *Message, timeout time.Duration) (*Message, error) {
	t.requestMutex.Lock()
	defer t.requestMutex.Unlock()

	// Discard stale replies from earlier timed-out requests
	for len(t.replyChan) > 0 {
		<-t.replyChan
	}

	frame, err := AppendFrame(nil, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := t.writeFrame(frame); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	deadline := time.After(timeout)
	for {
		select {
		case reply := <-t.replyChan:
			if reply.Address != msg.Address || reply.Type&^ErrorFlag != msg.Type {
				continue
			}
			if reply.Type.IsError() {
				return reply, &RegisterError{Address: reply.Address, Type: reply.Type}
			}
			return reply, nil

		case <-deadline:
			return nil, fmt.Errorf("reply timeout after %v for register %d", timeout, msg.Address)

		case <-t.stopChan:
			return nil, fmt.Errorf("transport stopped")
		}
	}
}

// ReadRegister reads one register
func (t *HostTransport) ReadRegister(address uint8, pt PayloadType, timeout time.Duration) (*Message, error) {
	return t.Request(&Message{Type: Read, Address: address, Port: DefaultPort, PayloadType: pt}, timeout)
}

// WriteRegister writes payload to one register
func (t *HostTransport) WriteRegister(address uint8, pt PayloadType, payload []byte, timeout time.Duration) (*Message, error) {
	return t.Request(&Message{Type: Write, Address: address, Port: DefaultPort, PayloadType: pt, Payload: payload}, timeout)
}

// RegisterError is returned when the device answers with an error reply
type RegisterError struct {
	Address uint8
	Type    MessageType
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("device replied %s for register %d", e.Type, e.Address)
}

// writeFrame sends a frame to the serial port
func (t *HostTransport) writeFrame(frame []byte) error {
	n, err := t.port.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(frame))
	}
	return nil
}

// ReceiveEvent waits for the next event not taken by the event handler
func (t *HostTransport) ReceiveEvent(timeout time.Duration) (*Message, error) {
	select {
	case evt := <-t.eventChan:
		return evt, nil

	case <-time.After(timeout):
		return nil, fmt.Errorf("event timeout after %v", timeout)

	case <-t.stopChan:
		return nil, fmt.Errorf("transport stopped")
	}
}

// SetEventHandler sets a callback for events. Handled events are not
// queued for ReceiveEvent.
func (t *HostTransport) SetEventHandler(handler EventHandler) {
	t.readMutex.Lock()
	t.eventHandler = handler
	t.readMutex.Unlock()
}

// readLoop continuously reads from the serial port and processes frames
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if err != nil {
			if err == io.EOF {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if n > 0 {
			t.inputBuffer.Write(buffer[:n])
			t.processFrames()
		}
	}
}

// processFrames parses and dispatches frames from the input buffer
func (t *HostTransport) processFrames() {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	data := t.inputBuffer.Data()

	for len(data) > 0 {
		if !isReply(MessageType(data[0])) {
			data = data[1:]
			atomic.AddUint32(&t.dropped, 1)
			continue
		}
		msg, n, err := DecodeFrame(data)
		if err == ErrIncomplete {
			break
		}
		if err != nil {
			data = data[1:]
			atomic.AddUint32(&t.dropped, 1)
			continue
		}

		// Detach the payload from the input buffer
		msg.Payload = append([]byte(nil), msg.Payload...)
		data = data[n:]
		t.dispatchMessage(&msg)
	}

	consumed := t.inputBuffer.Available() - len(data)
	if consumed > 0 {
		t.inputBuffer.Pop(consumed)
	}
}

func isReply(m MessageType) bool {
	switch m {
	case Read, Write, Event, ReadError, WriteError:
		return true
	}
	return false
}

// dispatchMessage routes a frame to the reply or event path
func (t *HostTransport) dispatchMessage(msg *Message) {
	if msg.Type == Event {
		if t.eventHandler != nil {
			t.eventHandler(msg)
			return
		}
		select {
		case t.eventChan <- msg:
		default:
			// Event channel full, drop oldest
			select {
			case <-t.eventChan:
			default:
			}
			t.eventChan <- msg
		}
		return
	}

	select {
	case t.replyChan <- msg:
	default:
		atomic.AddUint32(&t.dropped, uint32(len(msg.Payload)))
	}
}

// Dropped returns the number of bytes discarded by the parser
func (t *HostTransport) Dropped() uint32 {
	return atomic.LoadUint32(&t.dropped)
}

// Close stops the transport and closes the serial port
func (t *HostTransport) Close() error {
	t.stopOnce.Do(func() { close(t.stopChan) })

	var err error
	if t.port != nil {
		err = t.port.Close()
	}
	<-t.doneChan // Wait for read loop to finish
	return err
}
