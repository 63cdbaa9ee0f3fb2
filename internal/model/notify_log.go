package model

import "time"

// NotifyLog tracks each delivery attempt.
type NotifyLog struct {
	ID             uint64    `json:"id"`
	Host           string    `json:"host"`
	Application    string    `json:"application"`
	Notification   string    `json:"notification"`
	NotificationID string    `json:"notificationId"`
	Title          string    `json:"title"`
	Text           string    `json:"text"`
	Priority       int       `json:"priority"`
	Sticky         bool      `json:"sticky"`
	Result         string    `json:"result"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NotifyLogFilter describes query parameters for log searching.
type NotifyLogFilter struct {
	Host         string
	Notification string
	Status       string
	BeginTime    *time.Time
	EndTime      *time.Time
	Page         int
	PageSize     int
}
