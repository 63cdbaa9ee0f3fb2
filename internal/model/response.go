package model

// BasicResponse is the JSON envelope of every HTTP response.
type BasicResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

const (
	SuccessCode      = "000000"
	ValidationCode   = "000400"
	UnauthorizedCode = "000401"
	NotFoundCode     = "000404"
	DeliveryCode     = "000502"
	ErrorCode        = "999999"
)

// Success wraps data with a success code.
func Success(msg string, data any) BasicResponse {
	return BasicResponse{Code: SuccessCode, Msg: msg, Data: data}
}

// Error returns a BasicResponse with the default error code.
func Error(msg string) BasicResponse {
	return BasicResponse{Code: ErrorCode, Msg: msg}
}

// ErrorWithCode allows specifying a custom error code. data carries partial
// results, e.g. the delivery outcome of a failed notify.
func ErrorWithCode(code, msg string, data any) BasicResponse {
	return BasicResponse{Code: code, Msg: msg, Data: data}
}
