package store

// Key naming is an external contract: every component that touches the
// routing store must agree on these names (spec section 6).
const (
	ActiveWorkersKey   = "workers:active"
	ChannelRoutePrefix = "channel:route:"
	WorkerStreamPrefix = "messages:worker:"
)

// ChannelRouteKey returns the binding key for a channel.
func ChannelRouteKey(channel string) string {
	return ChannelRoutePrefix + channel
}

// WorkerStreamKey returns the stream key for a worker id.
func WorkerStreamKey(workerID string) string {
	return WorkerStreamPrefix + workerID
}
