package gntp

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Header is one "Key: Value" line.
type Header struct {
	Key   string
	Value string
}

// Headers keeps header lines in wire order.
type Headers []Header

// Get returns the first value for key, matched case-insensitively.
func (h Headers) Get(key string) string {
	v, _ := h.Lookup(key)
	return v
}

// Lookup is Get that also reports presence.
func (h Headers) Lookup(key string) (string, bool) {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Key, key) {
			return hdr.Value, true
		}
	}
	return "", false
}

func (h *Headers) add(key, value string) {
	*h = append(*h, Header{Key: key, Value: value})
}

// Lines renders headers as "Key: Value" strings.
func (h Headers) Lines() []string {
	out := make([]string, 0, len(h))
	for _, hdr := range h {
		out = append(out, hdr.Key+": "+hdr.Value)
	}
	return out
}

// Message is a decoded or to-be-encoded GNTP message. Directive holds the
// action for requests (REGISTER, NOTIFY) and the status for responses.
type Message struct {
	Version    string
	Directive  string
	Encryption EncryptionAlgorithm
	Hash       HashAlgorithm
	Headers    Headers
	Sections   []Headers
	Resources  map[string][]byte
}

// Lines renders the message headers and sections for display, without
// resource payloads.
func (m Message) Lines() []string {
	lines := m.Headers.Lines()
	for _, s := range m.Sections {
		lines = append(lines, s.Lines()...)
	}
	ids := make([]string, 0, len(m.Resources))
	for id := range m.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		lines = append(lines, HeaderIdentifier+": "+id, HeaderLength+": "+strconv.Itoa(len(m.Resources[id])))
	}
	return lines
}

// Icon is either a URL sent verbatim or raw image bytes sent as a binary
// resource.
type Icon struct {
	URL  string
	Data []byte
}

// IconURL returns an icon referenced by URL.
func IconURL(u string) Icon { return Icon{URL: u} }

// IconData returns an icon carried inline as a binary resource.
func IconData(b []byte) Icon { return Icon{Data: b} }

// IsZero reports whether no icon is set.
func (i Icon) IsZero() bool { return i.URL == "" && len(i.Data) == 0 }

// ResourceID is the hex MD5 of the icon bytes.
func (i Icon) ResourceID() string {
	sum := md5.Sum(i.Data)
	return hex.EncodeToString(sum[:])
}

// headerValue returns the value to place in an icon header and records
// binary data in resources.
func (i Icon) headerValue(resources map[string][]byte) string {
	if len(i.Data) > 0 {
		id := i.ResourceID()
		resources[id] = i.Data
		return ResourceScheme + id
	}
	return i.URL
}

// NotificationType is a category an application declares in REGISTER.
type NotificationType struct {
	Name        string
	DisplayName string
	Disabled    bool
	Icon        Icon
}

// Application identifies the registering program and its notification types.
type Application struct {
	Name          string
	Icon          Icon
	Notifications []NotificationType
}

// NewApplication declares an application with the given type names, all
// enabled.
func NewApplication(name string, icon Icon, types ...string) Application {
	app := Application{Name: name, Icon: icon}
	for _, t := range types {
		app.Notifications = append(app.Notifications, NotificationType{Name: t})
	}
	return app
}

// Supports reports whether name was declared.
func (a Application) Supports(name string) bool {
	for _, t := range a.Notifications {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Validate checks the fields REGISTER requires.
func (a Application) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return &ValidationError{Field: HeaderApplicationName, Reason: "cannot be empty"}
	}
	if len(a.Notifications) == 0 {
		return &ValidationError{Field: HeaderNotificationsCount, Reason: "at least one notification type is required"}
	}
	for _, t := range a.Notifications {
		if strings.TrimSpace(t.Name) == "" {
			return &ValidationError{Field: HeaderNotificationName, Reason: "cannot be empty"}
		}
	}
	return nil
}

// Notification is one NOTIFY request. Build it with NewNotification.
type Notification struct {
	Name                string
	Title               string
	Text                string
	Sticky              bool
	Priority            Priority
	Icon                Icon
	ID                  string
	CoalescingID        string
	CallbackContext     string
	CallbackContextType string
	CallbackTarget      string
}

// NotificationOption customizes a Notification.
type NotificationOption func(*Notification)

// WithSticky keeps the notification on screen until dismissed.
func WithSticky(sticky bool) NotificationOption {
	return func(n *Notification) { n.Sticky = sticky }
}

// WithPriority sets the display priority; PriorityNormal is not sent.
func WithPriority(p Priority) NotificationOption {
	return func(n *Notification) { n.Priority = p }
}

// WithIcon sets the notification icon, a URL or bytes sent as a resource.
func WithIcon(icon Icon) NotificationOption {
	return func(n *Notification) { n.Icon = icon }
}

// WithID overrides the generated Notification-ID.
func WithID(id string) NotificationOption {
	return func(n *Notification) { n.ID = id }
}

// WithCoalescingID replaces an earlier notification with the same ID.
func WithCoalescingID(id string) NotificationOption {
	return func(n *Notification) { n.CoalescingID = id }
}

// WithCallback asks the server to report clicks back with the given context.
func WithCallback(context, contextType string) NotificationOption {
	return func(n *Notification) {
		n.CallbackContext = context
		n.CallbackContextType = contextType
	}
}

// WithCallbackTarget asks the server to open target when clicked.
func WithCallbackTarget(target string) NotificationOption {
	return func(n *Notification) { n.CallbackTarget = target }
}

// NewNotification builds a notification of type name.
func NewNotification(name, title, text string, opts ...NotificationOption) Notification {
	n := Notification{Name: name, Title: title, Text: text}
	for _, opt := range opts {
		opt(&n)
	}
	return n
}

// Validate checks the fields NOTIFY requires.
func (n Notification) Validate() error {
	if n.Text == "" {
		return &ValidationError{Field: HeaderNotificationText, Reason: "cannot be empty"}
	}
	if strings.TrimSpace(n.Name) == "" {
		return &ValidationError{Field: HeaderNotificationName, Reason: "cannot be empty"}
	}
	if !n.Priority.Valid() {
		return &ValidationError{Field: HeaderNotificationPriority, Reason: "out of range " + strconv.Itoa(int(n.Priority))}
	}
	return nil
}

// Response is a decoded server reply.
type Response struct {
	Status           Status
	Action           Action
	ErrorCode        int
	ErrorDescription string
	NotificationID   string
	CallbackResult   string
	Headers          Headers
}

// OK reports a -OK status.
func (r Response) OK() bool { return r.Status == StatusOK }
