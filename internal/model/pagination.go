package model

// NotifyLogPage is one page of delivery logs, newest first.
type NotifyLogPage struct {
	Data     []*NotifyLog `json:"data"`
	Total    int          `json:"total"`
	Pages    int          `json:"pages"`
	PageNum  int          `json:"pageNum"`
	PageSize int          `json:"pageSize"`
}
