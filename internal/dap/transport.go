// Package dap serves the Debug Adapter Protocol (DAP) in front of the cloud
// debugger, so an IDE can set snapshots and logpoints on a deployed
// service the way it sets breakpoints locally.
//
// This package provides:
//   - Transport: Low-level message sending/receiving over a TCP connection or stdio
//   - Bridge: the adapter side of a session, mapping source breakpoints to
//     snapshots and logpoints and reporting their results as events
//
// The protocol is described at: https://microsoft.github.io/debug-adapter-protocol/
package dap

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/go-dap"
)

// Transport handles communication with a DAP client
type Transport struct {
	conn   io.ReadWriteCloser
	reader *bufio.Reader
	writer *bufio.Writer
	mu     sync.Mutex
	seq    int
}

// Accept listens on address and returns a transport for the first client
// that connects.
func Accept(address string) (*Transport, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	defer listener.Close()

	conn, err := listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("failed to accept DAP client on %s: %w", address, err)
	}
	return NewConnTransport(conn), nil
}

// NewConnTransport creates a transport over an established connection
func NewConnTransport(conn net.Conn) *Transport {
	return &Transport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		seq:    1,
	}
}

// NewStreamTransport creates a transport reading requests from in and
// writing responses and events to out, such as the process's stdin and
// stdout.
func NewStreamTransport(in io.ReadCloser, out io.WriteCloser) *Transport {
	rwc := &streamRWC{
		reader: in,
		writer: out,
	}

	return &Transport{
		conn:   rwc,
		reader: bufio.NewReader(in),
		writer: bufio.NewWriter(out),
		seq:    1,
	}
}

type streamRWC struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *streamRWC) Read(p []byte) (n int, err error) {
	return s.reader.Read(p)
}

func (s *streamRWC) Write(p []byte) (n int, err error) {
	return s.writer.Write(p)
}

func (s *streamRWC) Close() error {
	err1 := s.reader.Close()
	err2 := s.writer.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// NextSeq returns the next sequence number
func (t *Transport) NextSeq() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.seq
	t.seq++
	return seq
}

// Send sends a DAP message
func (t *Transport) Send(msg dap.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := dap.WriteProtocolMessage(t.writer, msg); err != nil {
		return fmt.Errorf("failed to write DAP message: %w", err)
	}

	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush DAP message: %w", err)
	}

	return nil
}

// Receive receives a DAP message
func (t *Transport) Receive() (dap.Message, error) {
	msg, err := dap.ReadProtocolMessage(t.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read DAP message: %w", err)
	}
	return msg, nil
}

// Close closes the transport
func (t *Transport) Close() error {
	return t.conn.Close()
}
