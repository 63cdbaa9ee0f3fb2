package growlclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/sirupsen/logrus"
)

// Client is one GNTP session for a single application. It registers the
// application with each target before notifying it and is safe for
// concurrent use. Requests to one target are serialized; different targets
// proceed in parallel.
type Client struct {
	app       gntp.Application
	transport gntp.Transport
	codec     *gntp.Codec
	addr      string
	log       logrus.FieldLogger

	mu         sync.Mutex // guards registered and targets
	registered map[string]bool
	targets    map[string]*sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithAddress sets the local target, host or host:port.
func WithAddress(addr string) Option {
	return func(c *Client) { c.addr = gntp.Address(addr) }
}

// WithSecurity hashes and optionally encrypts every request with sec.
func WithSecurity(sec gntp.Security) Option {
	return func(c *Client) { c.codec.Security = sec }
}

// WithLogger sets where request lines and outcomes are logged.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a session for app over transport.
func New(app gntp.Application, transport gntp.Transport, opts ...Option) (*Client, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	c := &Client{
		app:        app,
		transport:  transport,
		codec:      &gntp.Codec{},
		addr:       gntp.Address(""),
		log:        logrus.StandardLogger(),
		registered: map[string]bool{},
		targets:    map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.codec.Security.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Application returns the registered identity.
func (c *Client) Application() gntp.Application { return c.app }

// Address returns the local target.
func (c *Client) Address() string { return c.addr }

// Registered reports whether the local target accepted REGISTER.
func (c *Client) Registered() bool { return c.RegisteredAt(c.addr) }

// RegisteredAt reports whether host accepted REGISTER.
func (c *Client) RegisteredAt(host string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered[gntp.Address(host)]
}

// Register sends REGISTER to the local target.
func (c *Client) Register(ctx context.Context) error {
	return c.register(ctx, c.addr)
}

// RegisterRemote sends REGISTER to host.
func (c *Client) RegisterRemote(ctx context.Context, host string) error {
	return c.register(ctx, gntp.Address(host))
}

// lockTarget serializes requests to addr and returns the unlock func.
func (c *Client) lockTarget(addr string) func() {
	c.mu.Lock()
	l, ok := c.targets[addr]
	if !ok {
		l = &sync.Mutex{}
		c.targets[addr] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (c *Client) register(ctx context.Context, addr string) error {
	defer c.lockTarget(addr)()

	msg, err := c.codec.RegisterMessage(c.app)
	if err != nil {
		return err
	}
	log := c.log.WithFields(logrus.Fields{"action": gntp.ActionRegister, "addr": addr})
	resp, err := c.roundTrip(ctx, log, addr, msg)
	if err != nil {
		return &RegistrationError{Host: addr, Err: err}
	}
	if !resp.OK() || resp.Action != gntp.ActionRegister {
		return &RegistrationError{Host: addr, Status: resp.Status, Code: resp.ErrorCode, Description: resp.ErrorDescription}
	}
	c.mu.Lock()
	c.registered[addr] = true
	c.mu.Unlock()
	log.Info("Application was registered")
	return nil
}

// Notify sends n to the local target.
func (c *Client) Notify(ctx context.Context, n gntp.Notification) (Result, error) {
	return c.notify(ctx, c.addr, c.addr, false, n)
}

// NotifyRemote sends n to host, which must have been registered with
// RegisterRemote.
func (c *Client) NotifyRemote(ctx context.Context, host string, n gntp.Notification) (Result, error) {
	return c.notify(ctx, host, gntp.Address(host), true, n)
}

func (c *Client) notify(ctx context.Context, host, addr string, remote bool, n gntp.Notification) (Result, error) {
	defer c.lockTarget(addr)()

	res := Result{Host: host, Addr: addr, Remote: remote}
	// Both failures are reported together so that either can be matched.
	var errs []error
	if !c.RegisteredAt(addr) {
		errs = append(errs, &NotRegisteredError{Host: addr})
	}
	if err := n.Validate(); err != nil {
		errs = append(errs, err)
	} else if !c.app.Supports(n.Name) {
		errs = append(errs, &gntp.ValidationError{Field: gntp.HeaderNotificationName, Reason: fmt.Sprintf("%q was not registered", n.Name)})
	}
	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}

	msg, err := c.codec.NotifyMessage(c.app, n)
	if err != nil {
		return res, err
	}
	res.NotificationID = msg.Headers.Get(gntp.HeaderNotificationID)
	log := c.log.WithFields(logrus.Fields{"action": gntp.ActionNotify, "addr": addr})
	resp, err := c.roundTrip(ctx, log, addr, msg)
	if err != nil {
		return res, &DeliveryError{Host: addr, Err: err}
	}
	res.Response = resp
	if !resp.OK() || resp.Action != gntp.ActionNotify {
		return res, &DeliveryError{Host: addr, Status: resp.Status, Code: resp.ErrorCode, Description: resp.ErrorDescription}
	}
	log.Info(res.Summary())
	return res, nil
}

// roundTrip logs msg line by line, encodes and sends it, and decodes the
// reply.
func (c *Client) roundTrip(ctx context.Context, log logrus.FieldLogger, addr string, msg gntp.Message) (gntp.Response, error) {
	for _, line := range msg.Lines() {
		log.Debug(line)
	}
	req, err := c.codec.Encode(msg)
	if err != nil {
		return gntp.Response{}, err
	}
	raw, err := c.transport.RoundTrip(ctx, addr, req)
	if err != nil {
		return gntp.Response{}, err
	}
	resp, err := c.codec.DecodeResponse(raw)
	if err != nil {
		return gntp.Response{}, err
	}
	log.WithField("status", resp.Status).Debugf("%s: %s", gntp.HeaderResponseAction, resp.Action)
	return resp, nil
}
