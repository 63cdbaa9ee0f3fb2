package growlclient

import "github.com/bark-labs/gntp-notify/internal/gntp"

// Result describes one delivered notification.
type Result struct {
	// Host is the target as the caller named it.
	Host string
	// Addr is the host:port actually dialled.
	Addr           string
	Remote         bool
	NotificationID string
	Response       gntp.Response
}

// Summary is the human-readable outcome line.
func (r Result) Summary() string {
	if r.Remote {
		return "Notification was sent to remote host " + r.Host
	}
	return "Notification was sent"
}
