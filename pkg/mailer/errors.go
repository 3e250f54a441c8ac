package mailer

import "fmt"

// ErrDisabled is returned by Send when mail delivery is turned off.
type ErrDisabled struct{}

func (e ErrDisabled) Error() string { return "mail delivery is disabled" }

// ErrInvalidMessage is returned when a message cannot be built.
type ErrInvalidMessage struct{ Reason string }

func (e ErrInvalidMessage) Error() string { return "invalid email message: " + e.Reason }

// ErrSend wraps a transport failure.
type ErrSend struct {
	Provider string
	Err      error
}

func (e ErrSend) Error() string { return fmt.Sprintf("email send failed (%s): %v", e.Provider, e.Err) }
func (e ErrSend) Unwrap() error { return e.Err }
