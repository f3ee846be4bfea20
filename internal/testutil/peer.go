package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"
)

// Peer is the scripted far end of a line-delimited JSON stream.
type Peer struct {
	conn   net.Conn
	reader *bufio.Reader
	t      *testing.T
}

// NewPeer returns a Peer and the client end of an in-memory duplex pipe.
//
// Postcondition: both ends are closed when the test ends.
func NewPeer(t *testing.T) (*Peer, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return &Peer{conn: server, reader: bufio.NewReader(server), t: t}, client
}

// ReadFrame reads one line and decodes it as a JSON object.
//
// Postcondition: Returns the decoded frame, or fails the test on timeout or bad JSON.
func (p *Peer) ReadFrame(timeout time.Duration) map[string]any {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := p.reader.ReadBytes('\n')
	if err != nil {
		p.t.Errorf("reading frame: got %q, error: %v", line, err)
		return nil
	}
	var frame map[string]any
	if err := json.Unmarshal(line, &frame); err != nil {
		p.t.Errorf("decoding frame %q: %v", line, err)
		return nil
	}
	return frame
}

// Send writes text followed by a newline.
func (p *Peer) Send(text string) {
	p.t.Helper()
	_ = p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(p.conn, "%s\n", text); err != nil {
		p.t.Errorf("sending %q: %v", text, err)
	}
}

// SendRaw writes text exactly as given, without a trailing newline.
func (p *Peer) SendRaw(text string) {
	p.t.Helper()
	_ = p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := p.conn.Write([]byte(text)); err != nil {
		p.t.Errorf("sending %q: %v", text, err)
	}
}

// SendJSON encodes v as one line.
func (p *Peer) SendJSON(v any) {
	p.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		p.t.Errorf("encoding frame: %v", err)
		return
	}
	p.Send(string(data))
}

// Reply answers request with a success frame carrying result.
func (p *Peer) Reply(request map[string]any, result any) {
	p.t.Helper()
	p.SendJSON(map[string]any{"jsonrpc": "2.0", "id": request["id"], "result": result})
}

// Close closes the peer's end.
func (p *Peer) Close() {
	p.conn.Close()
}
