package gateway

// ValidationError reports a request rejected before any network call
// was made: a required identifier or payload was missing locally.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " is required"
}

// TransportError reports a failed round-trip: the network was
// unreachable or the backend answered with a non-success status. The
// two cases are deliberately indistinguishable except by Reason.
type TransportError struct {
	Reason string
}

func (e *TransportError) Error() string {
	return e.Reason
}
