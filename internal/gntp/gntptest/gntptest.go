// Package gntptest provides GNTP test doubles: an in-memory transport fed
// with canned responses and a TCP server that acknowledges every request.
package gntptest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/bark-labs/gntp-notify/internal/gntp"
)

var ErrNoResponse = errors.New("gntptest: no queued response")

// Request is one request seen by a double.
type Request struct {
	Addr   string
	Action gntp.Action
	Raw    []byte
	// Message is the decoded request. MockTransport leaves it empty when
	// the request is encrypted.
	Message gntp.Message
}

// MockTransport answers requests from per-action queues of raw responses.
type MockTransport struct {
	mu        sync.Mutex
	queues    map[gntp.Action][][]byte
	requests  []Request
	failAddrs map[string]error
}

var _ gntp.Transport = (*MockTransport)(nil)

// NewMockTransport returns an empty mock.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		queues:    map[gntp.Action][][]byte{},
		failAddrs: map[string]error{},
	}
}

// AddResponse queues raw under the action named by its Response-Action
// header. Responses without one are queued for any action.
func (m *MockTransport) AddResponse(raw string) {
	var action gntp.Action
	if resp, err := gntp.DecodeResponse([]byte(raw)); err == nil {
		action = resp.Action
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[action] = append(m.queues[action], []byte(raw))
}

// AddOK queues a -OK response for action.
func (m *MockTransport) AddOK(action gntp.Action) {
	raw, _ := gntp.EncodeResponse(gntp.Response{Status: gntp.StatusOK, Action: action})
	m.AddResponse(string(raw))
}

// AddError queues a -ERROR response for action.
func (m *MockTransport) AddError(action gntp.Action, code int, description string) {
	raw, _ := gntp.EncodeResponse(gntp.Response{
		Status:           gntp.StatusError,
		Action:           action,
		ErrorCode:        code,
		ErrorDescription: description,
	})
	m.AddResponse(string(raw))
}

// FailAddr makes every round trip to addr return err.
func (m *MockTransport) FailAddr(addr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAddrs[addr] = err
}

// RoundTrip records the request and pops the queue for its action.
func (m *MockTransport) RoundTrip(ctx context.Context, addr string, request []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	action := actionOf(request)
	msg, _ := gntp.DecodeMessage(request, "")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, Request{Addr: addr, Action: action, Raw: append([]byte(nil), request...), Message: msg})
	if err, ok := m.failAddrs[addr]; ok {
		return nil, err
	}
	for _, key := range []gntp.Action{action, ""} {
		if q := m.queues[key]; len(q) > 0 {
			m.queues[key] = q[1:]
			return q[0], nil
		}
	}
	return nil, fmt.Errorf("%w for %s", ErrNoResponse, action)
}

// Requests returns a copy of every request seen so far.
func (m *MockTransport) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// RequestsFor returns requests with the given action.
func (m *MockTransport) RequestsFor(action gntp.Action) []Request {
	var out []Request
	for _, r := range m.Requests() {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}

func actionOf(request []byte) gntp.Action {
	line, _, _ := bytes.Cut(request, []byte("\n"))
	fields := strings.Fields(string(line))
	if len(fields) < 2 {
		return ""
	}
	return gntp.Action(strings.ToUpper(fields[1]))
}

// Server is a TCP GNTP endpoint that replies -OK to every request and
// records what it received.
type Server struct {
	ln       net.Listener
	password string
	mu       sync.Mutex
	requests []Request
	wg       sync.WaitGroup
	reply    func(gntp.Action) gntp.Response
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithPassword lets the server decode hashed or encrypted requests.
func WithPassword(password string) ServerOption {
	return func(s *Server) { s.password = password }
}

// NewServer listens on a random loopback port.
func NewServer(opts ...ServerOption) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{ln: ln, reply: func(a gntp.Action) gntp.Response {
		return gntp.Response{Status: gntp.StatusOK, Action: a}
	}}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// SetReply overrides the response built for each action.
func (s *Server) SetReply(fn func(gntp.Action) gntp.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = fn
}

// Addr returns host:port.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Requests returns a copy of every request received.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Close stops the listener and waits for in-flight connections.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	raw, msg, err := s.readRequest(bufio.NewReader(conn))
	if err != nil {
		return
	}
	action := gntp.Action(msg.Directive)
	s.mu.Lock()
	s.requests = append(s.requests, Request{Addr: conn.LocalAddr().String(), Action: action, Raw: raw, Message: msg})
	reply := s.reply
	s.mu.Unlock()

	resp, err := gntp.EncodeResponse(reply(action))
	if err != nil {
		return
	}
	_, _ = conn.Write(resp)
}

// readRequest accumulates lines and tries to decode after every blank line
// until the message is complete.
func (s *Server) readRequest(r *bufio.Reader) ([]byte, gntp.Message, error) {
	var buf bytes.Buffer
	for {
		line, err := r.ReadBytes('\n')
		buf.Write(line)
		if err != nil {
			return nil, gntp.Message{}, err
		}
		if len(bytes.TrimRight(line, "\r\n")) != 0 {
			continue
		}
		if msg, ok := complete(buf.Bytes(), s.password); ok {
			return buf.Bytes(), msg, nil
		}
	}
}

// complete reports whether raw decodes to a request with every declared
// section and every referenced resource present.
func complete(raw []byte, password string) (gntp.Message, bool) {
	msg, err := gntp.DecodeMessage(raw, password)
	if err != nil {
		return msg, false
	}
	if gntp.Action(msg.Directive) == gntp.ActionRegister {
		count, _ := strconv.Atoi(msg.Headers.Get(gntp.HeaderNotificationsCount))
		if len(msg.Sections) < count {
			return msg, false
		}
	}
	for _, block := range append([]gntp.Headers{msg.Headers}, msg.Sections...) {
		for _, h := range block {
			if id, ok := strings.CutPrefix(h.Value, gntp.ResourceScheme); ok {
				if _, have := msg.Resources[id]; !have {
					return msg, false
				}
			}
		}
	}
	return msg, true
}
