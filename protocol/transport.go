package protocol

import "sync/atomic"

// RegisterHandler serves decoded READ and WRITE requests. The returned
// payload is echoed in the reply; an error turns the reply into a
// READ_ERROR or WRITE_ERROR carrying the register's current value.
type RegisterHandler interface {
	HandleMessage(msg *Message) (PayloadType, []byte, error)
}

// Transport is the device side of the Harp protocol: it parses requests
// from the host, dispatches them and frames the replies.
type Transport struct {
	output  OutputBuffer
	handler RegisterHandler
	now     func() uint64 // Device time in microseconds

	muted   uint32 // atomic bool, suppresses non-error replies
	dropped uint32 // atomic, bytes skipped while resynchronising

	flushCallback func()
}

// NewTransport creates a device transport. now supplies reply timestamps.
func NewTransport(output OutputBuffer, handler RegisterHandler, now func() uint64) *Transport {
	return &Transport{
		output:  output,
		handler: handler,
		now:     now,
	}
}

// Receive processes every complete frame in input. A byte that cannot
// start a valid frame is dropped and parsing resumes at the next one.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		// Only a request type can start a frame; checking it first keeps a
		// garbage length byte from stalling the parser.
		if !isRequest(MessageType(data[0])) {
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
		data = data[n:]
		t.dispatch(&msg)
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func isRequest(m MessageType) bool {
	return m == Read || m == Write
}

// dispatch calls the handler and sends the reply
func (t *Transport) dispatch(msg *Message) {
	pt, payload, err := t.serve(msg)
	kind := msg.Type
	if err != nil {
		kind |= ErrorFlag
	} else if t.Muted() {
		return
	}
	if pt == 0 {
		pt = msg.PayloadType
	}
	t.send(kind, msg.Address, pt, payload, t.now())
}

// serve recovers from handler panics so a bad request cannot take the
// firmware down.
func (t *Transport) serve(msg *Message) (pt PayloadType, payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			pt, payload, err = msg.PayloadType, nil, ErrMalformed
		}
	}()
	if t.handler == nil {
		return msg.PayloadType, nil, ErrMalformed
	}
	return t.handler.HandleMessage(msg)
}

// SendEvent emits an EVENT frame for address
func (t *Transport) SendEvent(address uint8, pt PayloadType, payload []byte, timestampUS uint64) {
	t.send(Event, address, pt, payload, timestampUS)
}

func (t *Transport) send(kind MessageType, address uint8, pt PayloadType, payload []byte, timestampUS uint64) {
	msg := Message{
		Type:        kind,
		Address:     address,
		Port:        DefaultPort,
		PayloadType: pt,
		Payload:     payload,
	}
	msg.SetTimestampUS(timestampUS)
	if err := EncodeFrame(t.output, &msg); err != nil {
		// Reply with no payload rather than nothing at all
		msg.Payload = nil
		msg.PayloadType = U8
		EncodeFrame(t.output, &msg)
	}
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// SetMuted suppresses READ and WRITE replies. Errors and events still go out.
func (t *Transport) SetMuted(muted bool) {
	if muted {
		atomic.StoreUint32(&t.muted, 1)
	} else {
		atomic.StoreUint32(&t.muted, 0)
	}
}

// Muted reports whether replies are suppressed
func (t *Transport) Muted() bool {
	return atomic.LoadUint32(&t.muted) != 0
}

// Dropped returns the number of bytes skipped while resynchronising
func (t *Transport) Dropped() uint32 {
	return atomic.LoadUint32(&t.dropped)
}

// SetFlushCallback sets a callback run after each frame is queued, so
// targets can push replies to USB immediately.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
