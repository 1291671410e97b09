package model

// Delivery is the outcome of forwarding one message to a sink.
// Status is the HTTP status when one was received, zero otherwise.
type Delivery struct {
	Message Message
	Status  int
	Err     error
}

// OK reports whether the message was accepted by the sink.
func (d Delivery) OK() bool {
	return d.Err == nil
}
