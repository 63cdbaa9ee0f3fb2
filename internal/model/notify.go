package model

// NotifyRequest carries one notification as the CLI and HTTP API accept it.
// Icons are http(s) URLs or local file paths.
type NotifyRequest struct {
	Message             string `json:"message"`
	Title               string `json:"title"`
	Notification        string `json:"notification"`
	Sticky              bool   `json:"sticky"`
	Priority            string `json:"priority"`
	AppIcon             string `json:"appIcon"`
	Icon                string `json:"icon"`
	Host                string `json:"host"`
	ID                  string `json:"id"`
	CoalescingID        string `json:"coalescingId"`
	CallbackContext     string `json:"callbackContext"`
	CallbackContextType string `json:"callbackContextType"`
	CallbackTarget      string `json:"callbackTarget"`
	// HostKeys limits a broadcast to these stored hosts.
	HostKeys []string `json:"hostKeys"`
}

// NotifyResult summarises a delivery attempt to one target.
type NotifyResult struct {
	Host           string `json:"host"`
	Remote         bool   `json:"remote"`
	NotificationID string `json:"notificationId,omitempty"`
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
}

// NotifySummary counts a broadcast's outcomes.
type NotifySummary struct {
	SendNum    int `json:"sendNum"`
	SuccessNum int `json:"successNum"`
}

const (
	NotifyStatusSuccess = "SUCCESS"
	NotifyStatusFailed  = "FAILED"
)
