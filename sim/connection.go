package sim

// SendError marks a failed send or deliver. The sender is expected to retry
// after being notified that the other side is available again.
type SendError struct{}

// NewSendError creates a SendError
func NewSendError() *SendError {
	return new(SendError)
}

// A Connection is responsible for delivering messages to their destination.
type Connection interface {
	Named
	Hookable

	PlugIn(port Port)
	Unplug(port Port)

	// NotifyAvailable is called by a port when its incoming buffer frees up.
	NotifyAvailable(port Port)

	// NotifySend is called by a port when its outgoing buffer becomes
	// non-empty.
	NotifySend()
}

// HookPosConnDeliver marks a connection delivered a message.
var HookPosConnDeliver = &HookPos{Name: "Conn Deliver"}
