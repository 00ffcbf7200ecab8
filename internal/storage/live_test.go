package storage

import (
	"testing"
	"time"
)

func receive[T any](t *testing.T, sub Subscription[T]) []T {
	t.Helper()
	select {
	case v, ok := <-sub.Updates:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return nil
}

func expectNoUpdate[T any](t *testing.T, sub Subscription[T]) {
	t.Helper()
	select {
	case v, ok := <-sub.Updates:
		if ok {
			t.Fatalf("unexpected update: %+v", v)
		}
	default:
	}
}

func TestWatchEventsEmitsOnChange(t *testing.T) {
	s := openTestStore(t)

	sub, err := s.WatchEvents(StartAscending)
	if err != nil {
		t.Fatalf("WatchEvents: %v", err)
	}
	defer sub.Close()

	if got := receive(t, sub); len(got) != 0 {
		t.Fatalf("initial = %+v, want empty", got)
	}

	id, err := s.InsertEvent(Event{Title: "A", StartTime: at(9, 0)})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	got := receive(t, sub)
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("after insert = %+v, want [%d]", got, id)
	}

	if err := s.DeleteEvent(id); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if got := receive(t, sub); len(got) != 0 {
		t.Fatalf("after delete = %+v, want empty", got)
	}
}

func TestWatchSkipsNoOpDelete(t *testing.T) {
	s := openTestStore(t)

	sub, err := s.WatchEvents(StartAscending)
	if err != nil {
		t.Fatalf("WatchEvents: %v", err)
	}
	defer sub.Close()
	receive(t, sub)

	if err := s.DeleteEvent(31337); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	expectNoUpdate(t, sub)
}

func TestWatchRangeIgnoresOtherDays(t *testing.T) {
	s := openTestStore(t)

	sub, err := s.WatchEventsInRange(at(0, 0), at(0, 0).Add(24*time.Hour))
	if err != nil {
		t.Fatalf("WatchEventsInRange: %v", err)
	}
	defer sub.Close()
	receive(t, sub)

	if _, err := s.InsertEvent(Event{Title: "tomorrow", StartTime: at(0, 0).Add(30 * time.Hour)}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if got := receive(t, sub); len(got) != 0 {
		t.Errorf("range result = %+v, want empty", got)
	}

	if _, err := s.InsertEvent(Event{Title: "today", StartTime: at(15, 0)}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if got := receive(t, sub); len(got) != 1 || got[0].Title != "today" {
		t.Errorf("range result = %+v, want [today]", got)
	}
}

func TestNoDeliveryAfterClose(t *testing.T) {
	s := openTestStore(t)

	sub, err := s.WatchEvents(StartAscending)
	if err != nil {
		t.Fatalf("WatchEvents: %v", err)
	}
	sub.Close()

	if _, err := s.InsertEvent(Event{Title: "late", StartTime: at(9, 0)}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	if v, ok := <-sub.Updates; ok {
		t.Errorf("received %+v after Close", v)
	}
	if n := s.live.len(); n != 0 {
		t.Errorf("live queries = %d after Close, want 0", n)
	}
	sub.Close()
}

func TestStoreCloseEndsSubscriptions(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sub, err := s.WatchContacts()
	if err != nil {
		t.Fatalf("WatchContacts: %v", err)
	}
	s.Close()

	if _, ok := <-sub.Updates; ok {
		t.Error("subscription still open after Store.Close")
	}
}

func TestWatchSearchFollowsRenames(t *testing.T) {
	s := openTestStore(t)
	f := seedProspects(t, s)

	sub, err := s.WatchSearch("initech")
	if err != nil {
		t.Fatalf("WatchSearch: %v", err)
	}
	defer sub.Close()
	if got := receive(t, sub); len(got) != 0 {
		t.Fatalf("initial = %v, want empty", ids(got))
	}

	if err := s.UpdateCompany(Company{ID: f.globex, Name: "Initech"}); err != nil {
		t.Fatalf("UpdateCompany: %v", err)
	}
	if got := receive(t, sub); !equalIDs(ids(got), []int64{f.bobMeeting}) {
		t.Errorf("after rename = %v, want [%d]", ids(got), f.bobMeeting)
	}
}

func TestWatchDueInteractions(t *testing.T) {
	s := openTestStore(t)
	f := seedProspects(t, s)

	sub, err := s.WatchDueInteractions(at(13, 0))
	if err != nil {
		t.Fatalf("WatchDueInteractions: %v", err)
	}
	defer sub.Close()
	if got := receive(t, sub); !equalIDs(ids(got), []int64{f.aliceCall}) {
		t.Fatalf("initial due = %v, want [%d]", ids(got), f.aliceCall)
	}

	if err := s.DeleteContact(f.alice); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	if got := receive(t, sub); len(got) != 0 {
		t.Errorf("due after cascade = %v, want empty", ids(got))
	}
}

func TestFeedDropsOldestWhenFull(t *testing.T) {
	f := newFeed[int](2)
	f.deliver([]int{1})
	f.deliver([]int{2})
	f.deliver([]int{3})

	first := <-f.ch
	second := <-f.ch
	if first[0] != 2 || second[0] != 3 {
		t.Errorf("received %v, %v, want [2] [3]", first, second)
	}

	f.close()
	f.deliver([]int{4})
	if _, ok := <-f.ch; ok {
		t.Error("feed delivered after close")
	}
}
