// Package journal keeps a short history of control sessions: who connected,
// for how long, how many lines were applied or dropped and why the session
// ended. Actuator positions are never stored.
package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/asdine/storm/v3"
)

const (
	EndDisconnect = "disconnect"
	EndIdle       = "idle"
	EndReset      = "reset"
	EndShutdown   = "shutdown"
)

type Record struct {
	ID        int       `storm:"id,increment" json:"id"`
	Session   string    `storm:"unique" json:"session"`
	Remote    string    `json:"remote"`
	Transport string    `json:"transport"`
	Started   time.Time `json:"started"`
	Ended     time.Time `json:"ended,omitempty"`
	Applied   int       `json:"applied"`
	Rejected  int       `json:"rejected"`
	EndReason string    `json:"end_reason,omitempty"`
}

// Duration is zero while the session is still running.
func (r Record) Duration() time.Duration {
	if r.Ended.IsZero() {
		return 0
	}
	return r.Ended.Sub(r.Started)
}

type Journal struct {
	node storm.Node
}

// New stores records under node, usually db.From("sessions").
func New(node storm.Node) (*Journal, error) {
	if err := node.Init(&Record{}); err != nil {
		return nil, err
	}
	return &Journal{node}, nil
}

// Start saves a new record and assigns its ID.
func (j *Journal) Start(rec *Record) error {
	rec.ID = 0
	return j.node.Save(rec)
}

// Finish overwrites the record saved by Start.
func (j *Journal) Finish(rec *Record) error {
	if rec.ID == 0 {
		return errors.New("record was never started")
	}
	return j.node.Save(rec)
}

// Recent returns up to n records, newest first.
func (j *Journal) Recent(n int) (records []Record, err error) {
	err = j.node.All(&records, storm.Reverse(), storm.Limit(n))
	if errors.Is(err, storm.ErrNotFound) {
		err = nil
	}
	if records == nil {
		records = []Record{}
	}
	return
}

// Prune deletes everything but the newest keep records and returns how many
// were removed.
func (j *Journal) Prune(keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("cannot keep %d sessions", keep)
	}

	var old []Record
	err := j.node.All(&old, storm.Reverse(), storm.Skip(keep))
	if err != nil && !errors.Is(err, storm.ErrNotFound) {
		return 0, err
	}

	for i := range old {
		if err := j.node.DeleteStruct(&old[i]); err != nil {
			return i, err
		}
	}
	return len(old), nil
}
