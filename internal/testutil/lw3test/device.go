// Package lw3test runs a scripted LW3 device on a loopback listener.
package lw3test

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// Reply tells the device what to do with one command.
type Reply struct {
	Frame  string
	Delay  time.Duration
	Hangup bool
	Silent bool
}

// Handler maps a received command line (without CRLF) to a reply.
type Handler func(cmd string) Reply

// Device accepts connections and answers each command via its Handler.
type Device struct {
	ln      net.Listener
	handler Handler

	mu       sync.Mutex
	received []string
	conns    []net.Conn
	wg       sync.WaitGroup
}

func NewDevice(t testing.TB, h Handler) *Device {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	d := &Device{ln: ln, handler: h}
	d.wg.Add(1)
	go d.accept()
	t.Cleanup(d.Close)
	return d
}

func (d *Device) Addr() string {
	return d.ln.Addr().String()
}

// Received returns the commands seen so far in arrival order.
func (d *Device) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

func (d *Device) Close() {
	_ = d.ln.Close()
	d.mu.Lock()
	for _, c := range d.conns {
		_ = c.Close()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Device) accept() {
	defer d.wg.Done()
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		d.mu.Lock()
		d.conns = append(d.conns, conn)
		d.mu.Unlock()
		d.wg.Add(1)
		go d.serve(conn)
	}
}

func (d *Device) serve(conn net.Conn) {
	defer d.wg.Done()
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		d.mu.Lock()
		d.received = append(d.received, cmd)
		d.mu.Unlock()

		reply := d.handler(cmd)
		if reply.Delay > 0 {
			time.Sleep(reply.Delay)
		}
		if reply.Hangup {
			return
		}
		if reply.Silent {
			continue
		}
		if _, err := conn.Write([]byte(reply.Frame)); err != nil {
			return
		}
	}
}

// Frame wraps content lines the way a device does.
func Frame(lines ...string) string {
	var b strings.Builder
	b.WriteString("{0000\r\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	b.WriteString("}\r\n")
	return b.String()
}

// Static answers from a fixed command-to-frame table and with a syntax error
// for anything else.
func Static(frames map[string]string) Handler {
	return func(cmd string) Reply {
		if f, ok := frames[cmd]; ok {
			return Reply{Frame: f}
		}
		return Reply{Frame: Frame("-E " + cmd + " %E001:Syntax error")}
	}
}
