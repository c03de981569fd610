// Package authn negotiates caller authentication over HTTP: mechanisms
// inspect a request and report one of four statuses, and a SecurityContext
// turns a SUCCESS into an established caller in the session.
package authn

import "strconv"

// Status is the outcome of one authentication step.
type Status int

const (
	// NotDone means the mechanism did not authenticate and wrote no response.
	NotDone Status = iota
	// SendContinue means a dialog is in progress and a response (a login page
	// or a redirect to one) has been written.
	SendContinue
	// Success means the caller is authenticated.
	Success
	// SendFailure means authentication failed and an error response has been written.
	SendFailure
)

func (s Status) String() string {
	switch s {
	case NotDone:
		return "NOT_DONE"
	case SendContinue:
		return "SEND_CONTINUE"
	case Success:
		return "SUCCESS"
	case SendFailure:
		return "SEND_FAILURE"
	default:
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
}
