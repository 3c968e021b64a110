// Package notify delivers run progress records to interested consumers.
package notify

import (
	"time"

	"github.com/loomkg/loom/pkg/orchestrator"
)

// Record types emitted over a run's lifetime. Exactly one terminal record
// (result or error) closes a run.
const (
	TypeStatus = "status"
	TypeError  = "error"
	TypeResult = "result"
)

// Record is one notification as delivered to consumers.
type Record struct {
	Type           string                  `json:"type"`
	ConversationID string                  `json:"conversation_id"`
	RunID          string                  `json:"run_id"`
	Message        string                  `json:"message,omitempty"`
	Result         *orchestrator.RunResult `json:"result,omitempty"`
	Timestamp      time.Time               `json:"timestamp"`
}

func statusRecord(conversationID, runID, message string) Record {
	return Record{
		Type:           TypeStatus,
		ConversationID: conversationID,
		RunID:          runID,
		Message:        message,
		Timestamp:      time.Now(),
	}
}

func errorRecord(conversationID, runID, message string) Record {
	return Record{
		Type:           TypeError,
		ConversationID: conversationID,
		RunID:          runID,
		Message:        message,
		Timestamp:      time.Now(),
	}
}

func resultRecord(conversationID, runID string, result *orchestrator.RunResult) Record {
	return Record{
		Type:           TypeResult,
		ConversationID: conversationID,
		RunID:          runID,
		Result:         result,
		Timestamp:      time.Now(),
	}
}

// Multi fans every notification out to all wrapped notifiers.
type Multi struct {
	notifiers []orchestrator.Notifier
}

// NewMulti builds a fan-out notifier, skipping nil entries.
func NewMulti(notifiers ...orchestrator.Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

func (m *Multi) Status(conversationID, runID, message string) {
	for _, n := range m.notifiers {
		n.Status(conversationID, runID, message)
	}
}

func (m *Multi) Error(conversationID, runID, message string) {
	for _, n := range m.notifiers {
		n.Error(conversationID, runID, message)
	}
}

func (m *Multi) Result(conversationID, runID string, result *orchestrator.RunResult) {
	for _, n := range m.notifiers {
		n.Result(conversationID, runID, result)
	}
}
