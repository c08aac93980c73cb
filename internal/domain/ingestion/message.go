package ingestion

import (
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain/document"
)

// Message is the queue payload between the dispatcher and the ingestion worker.
type Message struct {
	Candidate document.Candidate
	Timestamp time.Time
}

// NewMessage stamps a validated candidate for enqueueing.
func NewMessage(c document.Candidate, now time.Time) Message {
	return Message{Candidate: c.Normalize(), Timestamp: now.UTC()}
}

// Delivery is a message as received from the queue, carrying the broker
// bookkeeping the worker needs to ack or dead-letter it.
type Delivery struct {
	ID         string // broker entry id
	Message    Message
	Deliveries int64 // number of times the entry has been delivered, including this one
	DecodeErr  error // non-nil when the payload could not be decoded
}

// Outcome is the worker decision for one delivery.
type Outcome string

// Worker outcomes.
const (
	OutcomeAcked        Outcome = "acked"
	OutcomeSkipped      Outcome = "skipped" // idempotent duplicate, acked
	OutcomeDropped      Outcome = "dropped" // terminal failure, acked without retry
	OutcomeRetry        Outcome = "retry"   // transient failure, left pending
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// Acks reports whether the outcome removes the entry from the pending list.
func (o Outcome) Acks() bool { return o != OutcomeRetry }

// Reclaimed is the outcome of one pass over deliveries whose visibility timeout expired.
type Reclaimed struct {
	Redeliver    []Delivery // claimed for another attempt
	DeadLettered []string   // entry ids moved to the dead-letter stream
}
