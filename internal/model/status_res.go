package model

// StatusRes is the /status/endpoint payload.
type StatusRes struct {
	Status        string `json:"status"`
	Application   string `json:"application"`
	Address       string `json:"address"`
	ActiveHostNum int    `json:"activeHostNum"`
	AllHostNum    int    `json:"allHostNum"`
}
