// Package testutil provides test helpers for the clamd-go client.
package testutil

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ReplyOK is the reply clamd sends for a clean stream.
	ReplyOK = "stream: OK\n"
	// ReplyEicar is the reply clamd sends for the EICAR test file.
	ReplyEicar = "stream: Eicar-Test-Signature FOUND\n"
	// ReplySizeLimit is the reply clamd sends when StreamMaxLength is exceeded.
	ReplySizeLimit = "INSTREAM size limit exceeded. ERROR\n"
	// ReplyPong is the reply to PING.
	ReplyPong = "PONG\n"
)

// drainTimeout bounds how long a handler keeps reading after it has replied early.
const drainTimeout = 10 * time.Second

// Handler serves one client connection. The connection is closed when it returns.
type Handler func(conn net.Conn)

// Request is what a mock daemon received in one INSTREAM session.
type Request struct {
	// Command is the command line including its prefix and newline.
	Command string
	// Chunks holds the length of every chunk, including the terminator.
	Chunks []uint32
	// Data is the concatenated payload.
	Data []byte
}

// MockDaemon is a TCP server that speaks the clamd protocol.
type MockDaemon struct {
	// Host and Port are the listening address.
	Host string
	Port int

	ln          net.Listener
	handler     Handler
	wg          sync.WaitGroup
	connections atomic.Int64
}

// NewMockDaemon starts a daemon on a loopback port. Each connection is served by handler.
func NewMockDaemon(handler Handler) *MockDaemon {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("testutil: failed to listen: " + err.Error())
	}

	addr := ln.Addr().(*net.TCPAddr)
	d := &MockDaemon{
		Host:    addr.IP.String(),
		Port:    addr.Port,
		ln:      ln,
		handler: handler,
	}

	d.wg.Add(1)
	go d.serve()

	return d
}

// Addr returns the host:port address of the daemon.
func (d *MockDaemon) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Connections returns the number of accepted connections.
func (d *MockDaemon) Connections() int64 {
	return d.connections.Load()
}

// Close stops the listener and waits for all handlers to return.
func (d *MockDaemon) Close() {
	d.ln.Close() //nolint:errcheck
	d.wg.Wait()
}

func (d *MockDaemon) serve() {
	defer d.wg.Done()
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		d.connections.Add(1)

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer conn.Close()
			d.handler(conn)
		}()
	}
}

// InstreamHandler returns a Handler that reads a complete INSTREAM session
// and answers with the reply returned by replyFunc.
func InstreamHandler(replyFunc func(req *Request) string) Handler {
	return func(conn net.Conn) {
		br := bufio.NewReader(conn)
		cmd, err := br.ReadString('\n')
		if err != nil {
			return
		}
		serveInstream(conn, br, cmd, replyFunc)
	}
}

// DaemonHandler returns a Handler that answers PING with ReplyPong and
// INSTREAM sessions with the reply returned by replyFunc, like a healthy clamd.
func DaemonHandler(replyFunc func(req *Request) string) Handler {
	return func(conn net.Conn) {
		br := bufio.NewReader(conn)
		cmd, err := br.ReadString('\n')
		if err != nil {
			return
		}
		switch cmd {
		case "nPING\n":
			io.WriteString(conn, ReplyPong) //nolint:errcheck
		case "nINSTREAM\n":
			serveInstream(conn, br, cmd, replyFunc)
		default:
			io.WriteString(conn, "UNKNOWN COMMAND\n") //nolint:errcheck
		}
	}
}

func serveInstream(conn net.Conn, br *bufio.Reader, cmd string, replyFunc func(req *Request) string) {
	req, ok := readInstream(br, cmd)
	if !ok {
		return
	}
	io.WriteString(conn, replyFunc(req)) //nolint:errcheck
}

// readInstream reads chunks up to and including the terminator.
func readInstream(br *bufio.Reader, cmd string) (*Request, bool) {
	req := &Request{Command: cmd}
	for {
		n, err := readChunk(br, req)
		if err != nil {
			return nil, false
		}
		if n == 0 {
			return req, true
		}
	}
}

// readRequest reads one command line and, for INSTREAM, the complete upload.
func readRequest(br *bufio.Reader) bool {
	cmd, err := br.ReadString('\n')
	if err != nil {
		return false
	}
	if cmd == "nINSTREAM\n" {
		_, ok := readInstream(br, cmd)
		return ok
	}
	return true
}

// ResetAfterReplyHandler returns a Handler that reads a complete request,
// sends reply and then resets the connection instead of closing it cleanly.
func ResetAfterReplyHandler(reply string) Handler {
	return func(conn net.Conn) {
		if !readRequest(bufio.NewReader(conn)) {
			return
		}
		io.WriteString(conn, reply) //nolint:errcheck
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetLinger(0) //nolint:errcheck
		}
	}
}

// StallAfterReplyHandler returns a Handler that reads a complete request,
// sends reply and then keeps the connection open until the client hangs up.
func StallAfterReplyHandler(reply string) Handler {
	return func(conn net.Conn) {
		if !readRequest(bufio.NewReader(conn)) {
			return
		}
		io.WriteString(conn, reply) //nolint:errcheck
		io.Copy(io.Discard, conn)   //nolint:errcheck
	}
}

// SizeLimitHandler returns a Handler that behaves like clamd when
// StreamMaxLength is exceeded: once more than limit payload bytes arrived it
// replies with ReplySizeLimit. received, if non-nil, is set to the number of
// payload bytes read before replying.
func SizeLimitHandler(limit int, received *atomic.Int64) Handler {
	return EarlyReplyHandler(limit, ReplySizeLimit, received)
}

// EarlyReplyHandler returns a Handler that accepts chunks until more than
// limit payload bytes were received and then sends reply without waiting for
// the terminator. Afterwards it half-closes the connection and discards the
// rest of the upload. A stream that ends before the limit gets ReplyOK.
func EarlyReplyHandler(limit int, reply string, received *atomic.Int64) Handler {
	return func(conn net.Conn) {
		br := bufio.NewReader(conn)
		if _, err := br.ReadString('\n'); err != nil {
			return
		}

		req := &Request{}
		for len(req.Data) <= limit {
			n, err := readChunk(br, req)
			if err != nil {
				return
			}
			if n == 0 {
				io.WriteString(conn, ReplyOK) //nolint:errcheck
				return
			}
		}
		if received != nil {
			received.Store(int64(len(req.Data)))
		}

		io.WriteString(conn, reply) //nolint:errcheck
		closeWriteAndDrain(conn)
	}
}

// PingHandler returns a Handler that reads one command line and answers with reply.
func PingHandler(reply string) Handler {
	return func(conn net.Conn) {
		if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
			return
		}
		io.WriteString(conn, reply) //nolint:errcheck
	}
}

// SilentHandler returns a Handler that reads everything and never replies.
func SilentHandler() Handler {
	return func(conn net.Conn) {
		io.Copy(io.Discard, conn) //nolint:errcheck
	}
}

// readChunk reads one length-prefixed chunk into req and returns its length.
func readChunk(r io.Reader, req *Request) (uint32, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(header[:])
	req.Chunks = append(req.Chunks, n)
	if n == 0 {
		return 0, nil
	}

	start := len(req.Data)
	req.Data = append(req.Data, make([]byte, n)...)
	if _, err := io.ReadFull(r, req.Data[start:]); err != nil {
		return 0, err
	}
	return n, nil
}

// closeWriteAndDrain half-closes conn and discards input until the client
// hangs up, so the client can read the reply without a connection reset.
func closeWriteAndDrain(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite() //nolint:errcheck
	}
	conn.SetReadDeadline(time.Now().Add(drainTimeout)) //nolint:errcheck
	io.Copy(io.Discard, conn)                           //nolint:errcheck
}

// CountingDialer dials TCP and counts opened and closed connections.
type CountingDialer struct {
	net.Dialer

	opens  atomic.Int64
	closes atomic.Int64
}

// DialContext dials address and wraps the connection so that Close calls are counted.
func (d *CountingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	d.opens.Add(1)
	return &countingConn{Conn: conn, closes: &d.closes}, nil
}

// Opens returns the number of successfully opened connections.
func (d *CountingDialer) Opens() int64 {
	return d.opens.Load()
}

// Closes returns the number of Close calls on opened connections.
func (d *CountingDialer) Closes() int64 {
	return d.closes.Load()
}

type countingConn struct {
	net.Conn
	closes *atomic.Int64
}

func (c *countingConn) Close() error {
	c.closes.Add(1)
	return c.Conn.Close()
}

// InfiniteReader is an io.Reader that never returns EOF.
type InfiniteReader struct {
	read atomic.Int64
}

// Read fills p with data and reports it fully read.
func (r *InfiniteReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	r.read.Add(int64(len(p)))
	return len(p), nil
}

// BytesRead returns the number of bytes handed out so far.
func (r *InfiniteReader) BytesRead() int64 {
	return r.read.Load()
}

// EICAR is the EICAR anti-malware test file.
var EICAR = []byte(`X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`)
