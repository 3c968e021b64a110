package notify

import (
	"github.com/loomkg/loom/pkg/orchestrator"
)

// ChannelNotifier pushes records into a buffered channel, used by the
// HTTP layer to stream them as server-sent events. Status records are
// dropped when the consumer falls behind; terminal records (result,
// error) always get through, since the consumer drains until Close.
type ChannelNotifier struct {
	ch chan Record
}

// NewChannelNotifier creates a notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelNotifier{ch: make(chan Record, buffer)}
}

// Records exposes the delivery channel for the consumer.
func (c *ChannelNotifier) Records() <-chan Record {
	return c.ch
}

// Close ends delivery. Only the producer side may call it, after the run
// has finished.
func (c *ChannelNotifier) Close() {
	close(c.ch)
}

func (c *ChannelNotifier) push(r Record) {
	select {
	case c.ch <- r:
	default:
	}
}

func (c *ChannelNotifier) Status(conversationID, runID, message string) {
	c.push(statusRecord(conversationID, runID, message))
}

// Error delivers the terminal error record. A run ends with exactly one
// terminal record, so a full buffer must not swallow it.
func (c *ChannelNotifier) Error(conversationID, runID, message string) {
	c.ch <- errorRecord(conversationID, runID, message)
}

// Result delivers the terminal result record, blocking like Error.
func (c *ChannelNotifier) Result(conversationID, runID string, result *orchestrator.RunResult) {
	c.ch <- resultRecord(conversationID, runID, result)
}
