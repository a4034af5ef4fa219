package journal

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/asdine/storm/v3"
	. "github.com/smartystreets/goconvey/convey"
)

func openTestJournal(t *testing.T) *Journal {
	db, err := storm.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	j, err := New(db.From("sessions"))
	if err != nil {
		t.Fatal(err)
	}
	return j
}

func TestJournal(t *testing.T) {
	Convey("sessions are recorded from start to finish", t, func() {
		j := openTestJournal(t)
		started := time.Now().Add(-time.Minute)

		rec := &Record{
			Session:   "abc",
			Remote:    "192.168.4.2:50000",
			Transport: "tcp",
			Started:   started,
		}
		So(j.Start(rec), ShouldBeNil)
		So(rec.ID, ShouldBeGreaterThan, 0)

		rec.Applied = 12
		rec.Rejected = 1
		rec.Ended = started.Add(30 * time.Second)
		rec.EndReason = EndDisconnect
		So(j.Finish(rec), ShouldBeNil)

		recent, err := j.Recent(10)
		So(err, ShouldBeNil)
		So(recent, ShouldHaveLength, 1)
		So(recent[0].Session, ShouldEqual, "abc")
		So(recent[0].Applied, ShouldEqual, 12)
		So(recent[0].EndReason, ShouldEqual, EndDisconnect)
		So(recent[0].Duration(), ShouldEqual, 30*time.Second)

		Convey("finishing an unsaved record fails", func() {
			So(j.Finish(&Record{Session: "nope"}), ShouldNotBeNil)
		})
	})

	Convey("an empty journal lists nothing", t, func() {
		j := openTestJournal(t)
		recent, err := j.Recent(5)
		So(err, ShouldBeNil)
		So(recent, ShouldBeEmpty)
	})

	Convey("recent lists newest first and prune keeps the newest", t, func() {
		j := openTestJournal(t)
		for i := 0; i < 5; i++ {
			So(j.Start(&Record{Session: fmt.Sprintf("s%d", i), Started: time.Now()}), ShouldBeNil)
		}

		recent, err := j.Recent(2)
		So(err, ShouldBeNil)
		So(recent, ShouldHaveLength, 2)
		So(recent[0].Session, ShouldEqual, "s4")
		So(recent[1].Session, ShouldEqual, "s3")

		removed, err := j.Prune(3)
		So(err, ShouldBeNil)
		So(removed, ShouldEqual, 2)

		recent, err = j.Recent(10)
		So(err, ShouldBeNil)
		So(recent, ShouldHaveLength, 3)
		So(recent[2].Session, ShouldEqual, "s2")

		Convey("records read back keep their ids", func() {
			for _, rec := range recent {
				So(rec.ID, ShouldBeGreaterThan, 0)
			}

			rec := recent[0]
			rec.EndReason = EndIdle
			So(j.Finish(&rec), ShouldBeNil)

			again, err := j.Recent(10)
			So(err, ShouldBeNil)
			So(again, ShouldHaveLength, 3)
			So(again[0].EndReason, ShouldEqual, EndIdle)
		})

		Convey("pruning to nothing empties the journal", func() {
			removed, err := j.Prune(0)
			So(err, ShouldBeNil)
			So(removed, ShouldEqual, 3)

			recent, err := j.Recent(10)
			So(err, ShouldBeNil)
			So(recent, ShouldBeEmpty)
		})

		Convey("a negative keep is refused", func() {
			_, err := j.Prune(-1)
			So(err, ShouldNotBeNil)

			recent, err := j.Recent(10)
			So(err, ShouldBeNil)
			So(recent, ShouldHaveLength, 3)
		})
	})
}
