package growlclient

import (
	"errors"
	"fmt"

	"github.com/bark-labs/gntp-notify/internal/gntp"
)

// ErrNotRegistered matches NotRegisteredError with errors.Is.
var ErrNotRegistered = errors.New("growlclient: application is not registered")

// NotRegisteredError is returned when NOTIFY is attempted before a
// successful REGISTER with the same target.
type NotRegisteredError struct {
	Host string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("growlclient: application is not registered with %s", e.Host)
}

func (e *NotRegisteredError) Is(target error) bool { return target == ErrNotRegistered }

// RegistrationError reports a failed REGISTER round trip. Err is set when
// no usable response arrived; otherwise the response fields are.
type RegistrationError struct {
	Host        string
	Status      gntp.Status
	Code        int
	Description string
	Err         error
}

func (e *RegistrationError) Error() string {
	return describe("register", e.Host, e.Status, e.Code, e.Description, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// DeliveryError reports a failed NOTIFY round trip.
type DeliveryError struct {
	Host        string
	Status      gntp.Status
	Code        int
	Description string
	Err         error
}

func (e *DeliveryError) Error() string {
	return describe("notify", e.Host, e.Status, e.Code, e.Description, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func describe(op, host string, status gntp.Status, code int, desc string, err error) string {
	if err != nil {
		return fmt.Sprintf("growlclient: %s %s: %v", op, host, err)
	}
	if code != 0 {
		return fmt.Sprintf("growlclient: %s %s: %s %d %s", op, host, status, code, desc)
	}
	return fmt.Sprintf("growlclient: %s %s: unexpected response %s", op, host, status)
}
