package model

import "time"

// Host is a stored GNTP target plus the credentials used to reach it.
type Host struct {
	Key           string    `json:"key"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Password      string    `json:"password"`
	HashAlgorithm string    `json:"hashAlgorithm"`
	Encryption    string    `json:"encryption"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

const (
	HostStatusActive = "ACTIVE"
	HostStatusStop   = "STOP"
)

// Active reports whether broadcasts should reach h. An empty status counts
// as active.
func (h *Host) Active() bool {
	return h.Status == "" || h.Status == HostStatusActive
}

// HostView hides the password when returning hosts to clients.
type HostView struct {
	Key           string    `json:"key"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Password      string    `json:"password"`
	HashAlgorithm string    `json:"hashAlgorithm"`
	Encryption    string    `json:"encryption"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
