package serialmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// TestablePort implements SerialPorter with configurable behaviour for
// tests: scripted reads, captured writes, and injectable errors.
type TestablePort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuffer  *bytes.Buffer
	writeBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set.
	ReadError error
	// WriteError is returned by the next Write call if set.
	WriteError error
	// ShortWrite truncates the next write to half its length.
	ShortWrite bool

	closed bool
}

// NewTestablePort creates an empty TestablePort.
func NewTestablePort() *TestablePort {
	p := &TestablePort{
		readBuffer:  bytes.NewBuffer(nil),
		writeBuffer: bytes.NewBuffer(nil),
	}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Feed appends data for subsequent Read calls and wakes blocked readers.
func (p *TestablePort) Feed(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuffer.WriteString(data)
	p.readCond.Broadcast()
}

// Read blocks until data is fed or the port is closed.
func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.readBuffer.Len() == 0 && !p.closed && p.ReadError == nil {
		p.readCond.Wait()
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}
	if p.closed && p.readBuffer.Len() == 0 {
		return 0, io.EOF
	}
	return p.readBuffer.Read(b)
}

// Write captures written data.
func (p *TestablePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("serial port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	if p.ShortWrite {
		p.ShortWrite = false
		n := len(b) / 2
		p.writeBuffer.Write(b[:n])
		return n, nil
	}
	return p.writeBuffer.Write(b)
}

// Close marks the port closed and wakes blocked readers.
func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return nil
}

// Written returns everything written to the port so far.
func (p *TestablePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeBuffer.String()
}

// NewMockMux creates a Mux backed by a TestablePort that replays the
// given line at the given interval, simulating a chatty serial device.
func NewMockMux(line string, interval time.Duration) (*Mux[*TestablePort], *TestablePort) {
	port := NewTestablePort()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			port.mu.Lock()
			closed := port.closed
			port.mu.Unlock()
			if closed {
				return
			}
			port.Feed(line + "\n")
		}
	}()
	return NewMux(port), port
}
