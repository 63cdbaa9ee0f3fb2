package gntp

import (
	"bytes"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/bark-labs/gntp-notify/internal/crypto"
	"github.com/google/uuid"
)

const crlf = "\r\n"

// foldValue turns every CRLF in a header value into LF. Folding can join a
// lone CR to the next LF, so it repeats until no CRLF is left.
func foldValue(v string) string {
	for strings.Contains(v, crlf) {
		v = strings.ReplaceAll(v, crlf, "\n")
	}
	return v
}

// Codec encodes requests and decodes responses under one Security setting.
type Codec struct {
	Security Security
	// Rand supplies salts and IVs; crypto/rand when nil.
	Rand io.Reader
	// NewID generates Notification-ID values; uuid.NewString when nil.
	NewID func() string
}

var defaultCodec = &Codec{}

// NewCodec returns a codec using sec for every message.
func NewCodec(sec Security) (*Codec, error) {
	if err := sec.Validate(); err != nil {
		return nil, err
	}
	return &Codec{Security: sec}, nil
}

// EncodeRegister encodes a plain REGISTER request for app.
func EncodeRegister(app Application) ([]byte, error) { return defaultCodec.EncodeRegister(app) }

// EncodeNotify encodes a plain NOTIFY request for n on behalf of app.
func EncodeNotify(app Application, n Notification) ([]byte, error) {
	return defaultCodec.EncodeNotify(app, n)
}

// EncodeResponse encodes a plain response, as a GNTP server would send it.
func EncodeResponse(r Response) ([]byte, error) { return defaultCodec.EncodeResponse(r) }

func (c *Codec) EncodeRegister(app Application) ([]byte, error) {
	m, err := c.RegisterMessage(app)
	if err != nil {
		return nil, err
	}
	return c.Encode(m)
}

func (c *Codec) EncodeNotify(app Application, n Notification) ([]byte, error) {
	m, err := c.NotifyMessage(app, n)
	if err != nil {
		return nil, err
	}
	return c.Encode(m)
}

func (c *Codec) EncodeResponse(r Response) ([]byte, error) {
	return c.Encode(ResponseMessage(r))
}

// RegisterMessage builds the REGISTER message for app without encoding it.
func (c *Codec) RegisterMessage(app Application) (Message, error) {
	if err := app.Validate(); err != nil {
		return Message{}, err
	}
	m := Message{Directive: string(ActionRegister), Resources: map[string][]byte{}}
	m.Headers.add(HeaderApplicationName, app.Name)
	if !app.Icon.IsZero() {
		m.Headers.add(HeaderApplicationIcon, app.Icon.headerValue(m.Resources))
	}
	m.Headers.add(HeaderNotificationsCount, strconv.Itoa(len(app.Notifications)))
	for _, t := range app.Notifications {
		var s Headers
		s.add(HeaderNotificationName, t.Name)
		display := t.DisplayName
		if display == "" {
			display = t.Name
		}
		s.add(HeaderNotificationDisplayName, display)
		s.add(HeaderNotificationEnabled, boolString(!t.Disabled))
		if !t.Icon.IsZero() {
			s.add(HeaderNotificationIcon, t.Icon.headerValue(m.Resources))
		}
		m.Sections = append(m.Sections, s)
	}
	return m, nil
}

// NotifyMessage builds the NOTIFY message for n without encoding it.
func (c *Codec) NotifyMessage(app Application, n Notification) (Message, error) {
	if strings.TrimSpace(app.Name) == "" {
		return Message{}, &ValidationError{Field: HeaderApplicationName, Reason: "cannot be empty"}
	}
	if err := n.Validate(); err != nil {
		return Message{}, err
	}
	id := n.ID
	if id == "" {
		id = c.newID()
	}
	m := Message{Directive: string(ActionNotify), Resources: map[string][]byte{}}
	m.Headers.add(HeaderApplicationName, app.Name)
	m.Headers.add(HeaderNotificationName, n.Name)
	m.Headers.add(HeaderNotificationID, id)
	m.Headers.add(HeaderNotificationTitle, n.Title)
	m.Headers.add(HeaderNotificationText, n.Text)
	if n.Sticky {
		m.Headers.add(HeaderNotificationSticky, "1")
	}
	if n.Priority != PriorityNormal {
		m.Headers.add(HeaderNotificationPriority, strconv.Itoa(int(n.Priority)))
	}
	if !n.Icon.IsZero() {
		m.Headers.add(HeaderNotificationIcon, n.Icon.headerValue(m.Resources))
	}
	if !app.Icon.IsZero() {
		m.Headers.add(HeaderApplicationIcon, app.Icon.headerValue(m.Resources))
	}
	if n.CoalescingID != "" {
		m.Headers.add(HeaderNotificationCoalescingID, n.CoalescingID)
	}
	if n.CallbackContext != "" {
		m.Headers.add(HeaderCallbackContext, n.CallbackContext)
		m.Headers.add(HeaderCallbackContextType, n.CallbackContextType)
	}
	if n.CallbackTarget != "" {
		m.Headers.add(HeaderCallbackTarget, n.CallbackTarget)
	}
	return m, nil
}

// ResponseMessage builds the message a server sends for r.
func ResponseMessage(r Response) Message {
	m := Message{Directive: string(r.Status)}
	if r.Action != "" {
		m.Headers.add(HeaderResponseAction, string(r.Action))
	}
	if r.NotificationID != "" {
		m.Headers.add(HeaderNotificationID, r.NotificationID)
	}
	if r.ErrorCode != 0 {
		m.Headers.add(HeaderErrorCode, strconv.Itoa(r.ErrorCode))
	}
	if r.ErrorDescription != "" {
		m.Headers.add(HeaderErrorDescription, r.ErrorDescription)
	}
	if r.CallbackResult != "" {
		m.Headers.add(HeaderCallbackResult, r.CallbackResult)
	}
	return m
}

// Encode renders m to wire bytes, applying the codec's Security.
func (c *Codec) Encode(m Message) ([]byte, error) {
	if err := c.Security.Validate(); err != nil {
		return nil, err
	}
	enc := c.Security.Encryption.normalized()

	var body bytes.Buffer
	writeHeaders(&body, m.Headers)
	for _, s := range m.Sections {
		body.WriteString(crlf)
		writeHeaders(&body, s)
	}

	var out bytes.Buffer
	out.WriteString(ProtocolName + "/" + Version + " " + m.Directive + " ")

	if !c.Security.Enabled() {
		out.WriteString(string(EncryptionNone) + crlf)
		out.Write(body.Bytes())
		out.WriteString(crlf)
		writeResources(&out, m.Resources, nil)
		return out.Bytes(), nil
	}

	km, err := newKeyMaterial(c.Security, c.Rand)
	if err != nil {
		return nil, err
	}
	if enc == EncryptionNone {
		out.WriteString(string(EncryptionNone) + " " + km.token() + crlf)
		out.Write(body.Bytes())
		out.WriteString(crlf)
		writeResources(&out, m.Resources, nil)
		return out.Bytes(), nil
	}

	ciph, err := enc.cipher()
	if err != nil {
		return nil, err
	}
	iv, err := crypto.RandomBytes(c.Rand, ciph.BlockSize())
	if err != nil {
		return nil, err
	}
	sealed, err := km.encrypt(enc, iv, body.Bytes())
	if err != nil {
		return nil, err
	}
	out.WriteString(string(enc) + ":" + strings.ToUpper(hex.EncodeToString(iv)) + " " + km.token() + crlf)
	out.Write(sealed)
	out.WriteString(crlf + crlf)
	var sealErr error
	writeResources(&out, m.Resources, func(data []byte) []byte {
		b, err := km.encrypt(enc, iv, data)
		if err != nil && sealErr == nil {
			sealErr = err
		}
		return b
	})
	if sealErr != nil {
		return nil, sealErr
	}
	return out.Bytes(), nil
}

func (c *Codec) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

func writeHeaders(buf *bytes.Buffer, h Headers) {
	for _, hdr := range h {
		buf.WriteString(hdr.Key)
		buf.WriteString(": ")
		buf.WriteString(foldValue(hdr.Value))
		buf.WriteString(crlf)
	}
}

func writeResources(buf *bytes.Buffer, resources map[string][]byte, seal func([]byte) []byte) {
	ids := make([]string, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		data := resources[id]
		if seal != nil {
			data = seal(data)
		}
		buf.WriteString(HeaderIdentifier + ": " + id + crlf)
		buf.WriteString(HeaderLength + ": " + strconv.Itoa(len(data)) + crlf)
		buf.WriteString(crlf)
		buf.Write(data)
		buf.WriteString(crlf + crlf)
	}
}

func boolString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
