package notification

// DispatchRequest is one message to deliver over a channel.
type DispatchRequest struct {
	Channel     Channel
	Destination string // E.164, optionally channel-prefixed
	Body        string
}

// DispatchResult is returned by a successful send.
type DispatchResult struct {
	MessageID string
}
