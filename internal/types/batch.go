package types

import "time"

// BatchState is the lifecycle state of a batch as derived from its flags.
type BatchState string

const (
	// BatchStateAvailable means the batch can receive documents and be acquired.
	BatchStateAvailable BatchState = "available"

	// BatchStateCheckedOut means a reviewer currently holds the batch lease.
	BatchStateCheckedOut BatchState = "checked_out"

	// BatchStateFinished is terminal; the batch never re-enters circulation.
	BatchStateFinished BatchState = "finished"
)

// Batch is a bounded group of documents reviewed by one operator at a time.
// The record is the unit of contention: every read-check-write against it
// runs inside a store transaction.
type Batch struct {
	BatchID       string   `firestore:"batchId" json:"batch_id"`
	Organization  string   `firestore:"organization" json:"organization"`
	Documents     []string `firestore:"documents" json:"documents"`
	DocumentCount int      `firestore:"documentCount" json:"document_count"`

	// DocumentIndex is the reviewer's cursor into Documents for the current
	// checkout session. Reset to zero whenever the batch becomes available.
	DocumentIndex int `firestore:"documentIndex" json:"document_index"`

	IsFull       bool      `firestore:"isFull" json:"is_full"`
	IsCheckedOut bool      `firestore:"isCheckedOut" json:"is_checked_out"`
	Owner        string    `firestore:"owner" json:"owner,omitempty"`
	Heartbeat    time.Time `firestore:"heartbeat" json:"heartbeat,omitempty"`
	IsFinished   bool      `firestore:"isFinished" json:"is_finished"`

	TimeCreated  time.Time `firestore:"timeCreated" json:"time_created"`
	TimeFinished time.Time `firestore:"timeFinished,omitempty" json:"time_finished,omitempty"`
}

// State derives the lifecycle state from the batch flags.
func (b *Batch) State() BatchState {
	switch {
	case b.IsFinished:
		return BatchStateFinished
	case b.IsCheckedOut:
		return BatchStateCheckedOut
	default:
		return BatchStateAvailable
	}
}

// Assignable reports whether the batch can accept another document.
func (b *Batch) Assignable() bool {
	return !b.IsFull && !b.IsCheckedOut && !b.IsFinished
}

// HeartbeatStale reports whether the holder has been silent for at least
// threshold as of now. Only meaningful while the batch is checked out.
func (b *Batch) HeartbeatStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(b.Heartbeat) >= threshold
}
