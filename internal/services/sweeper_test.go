package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"prizedraw/internal/clock"
	"prizedraw/internal/models"
	"prizedraw/internal/store"
)

// failingStore injects an error into DeleteEvent, including inside
// transactions, so tests can observe rollback.
type failingStore struct {
	store.Store
	deleteEventErr error
}

func (f *failingStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.RunInTransaction(ctx, func(tx store.Store) error {
		return fn(&failingStore{Store: tx, deleteEventErr: f.deleteEventErr})
	})
}

func (f *failingStore) DeleteEvent(ctx context.Context, id int64) error {
	if f.deleteEventErr != nil {
		return f.deleteEventErr
	}
	return f.Store.DeleteEvent(ctx, id)
}

func joinAll(t *testing.T, svc *LotteryService, eventID int64, emails ...string) {
	t.Helper()
	for _, email := range emails {
		if _, err := svc.Join(context.Background(), eventID, email); err != nil {
			t.Fatalf("join %d as %s: %v", eventID, email, err)
		}
	}
}

func TestLotteryService_SweepsWithNothingDue(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustRegisterEvent(t, svc, "Later", testNow.Add(time.Hour), 10)

	expiry, err := svc.RemovePastEvents(ctx)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if len(expiry.Removed) != 0 || len(expiry.Skipped) != 0 {
		t.Errorf("Expected an empty expiry report, got %+v", expiry)
	}

	final, err := svc.FinalizeEvents(ctx)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if len(final.Winners) != 0 || len(final.Expired) != 0 || len(final.Skipped) != 0 {
		t.Errorf("Expected an empty finalize report, got %+v", final)
	}

	events, _ := svc.ListEvents(ctx)
	if len(events) != 1 {
		t.Errorf("Expected the future event to survive, got %d events", len(events))
	}
}

func TestLotteryService_FinalizeEvents(t *testing.T) {
	svc, st, clk := newTestService(t)
	ctx := context.Background()

	for _, u := range [][2]string{{"Alice", "a@x.com"}, {"Bob", "b@x.com"}, {"Carol", "c@x.com"}} {
		mustRegisterUser(t, svc, u[0], u[1])
	}

	e1 := mustRegisterEvent(t, svc, "E1", testNow.Add(-time.Hour), 100)
	e2 := mustRegisterEvent(t, svc, "E2", testNow.Add(30*time.Minute), 250)
	future := mustRegisterEvent(t, svc, "Future", testNow.Add(48*time.Hour), 5)
	joinAll(t, svc, e2, "a@x.com", "b@x.com", "c@x.com")
	joinAll(t, svc, future, "a@x.com")

	clk.Set(testNow.Add(time.Hour))

	t.Run("draws one winner and tears down past events", func(t *testing.T) {
		report, err := svc.FinalizeEvents(ctx)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}

		if len(report.Expired) != 1 || report.Expired[0] != e1 {
			t.Errorf("Expected E1 expired without a winner, got %v", report.Expired)
		}
		if len(report.Winners) != 1 {
			t.Fatalf("Expected exactly 1 winner, got %d", len(report.Winners))
		}
		w := report.Winners[0]
		if w.EventID != e2 || w.EventName != "E2" || w.Prize != 250 {
			t.Errorf("Unexpected winner record: %+v", w)
		}
		if w.TicketNumber < 1 || w.TicketNumber > 3 {
			t.Errorf("Expected winning ticket in {1,2,3}, got %d", w.TicketNumber)
		}
		if w.DrawnAtMillis != testNow.Add(time.Hour).UnixMilli() {
			t.Errorf("Expected drawn_at from the injected clock, got %d", w.DrawnAtMillis)
		}

		for _, id := range []int64{e1, e2} {
			if _, err := st.GetEvent(ctx, id); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Expected event %d to be deleted, got %v", id, err)
			}
		}
		participants, err := st.ListParticipants(ctx, e2)
		if err != nil {
			t.Fatalf("list participants: %v", err)
		}
		if len(participants) != 0 {
			t.Errorf("Expected E2 participants to be deleted, got %d", len(participants))
		}
		if _, err := st.GetEvent(ctx, future); err != nil {
			t.Errorf("Expected future event to survive, got %v", err)
		}
	})

	t.Run("re-running is a no-op", func(t *testing.T) {
		report, err := svc.FinalizeEvents(ctx)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if len(report.Winners) != 0 || len(report.Expired) != 0 {
			t.Errorf("Expected an empty report, got %+v", report)
		}
	})

	t.Run("winner ledger keeps one row per event", func(t *testing.T) {
		winners, err := svc.ListWinners(ctx)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if len(winners) != 1 || winners[0].EventID != e2 {
			t.Errorf("Expected a single winner for E2, got %+v", winners)
		}
	})
}

func TestLotteryService_FinalizeUsesPicker(t *testing.T) {
	last := func(n int) int { return n - 1 }
	svc, _, clk := newTestService(t, WithPicker(last))
	ctx := context.Background()

	mustRegisterUser(t, svc, "Alice", "a@x.com")
	mustRegisterUser(t, svc, "Bob", "b@x.com")
	eventID := mustRegisterEvent(t, svc, "Picked", testNow.Add(time.Minute), 1)
	joinAll(t, svc, eventID, "a@x.com", "b@x.com")
	clk.Set(testNow.Add(time.Minute))

	report, err := svc.FinalizeEvents(ctx)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if len(report.Winners) != 1 {
		t.Fatalf("Expected 1 winner, got %d", len(report.Winners))
	}
	if w := report.Winners[0]; w.WinnerIdentityToken != "b@x.com" || w.WinnerName != "Bob" || w.TicketNumber != 2 {
		t.Errorf("Expected Bob with ticket 2, got %+v", w)
	}
}

func TestLotteryService_FinalizeRejectsBadPick(t *testing.T) {
	svc, st, clk := newTestService(t, WithPicker(func(n int) int { return n }))
	ctx := context.Background()

	mustRegisterUser(t, svc, "Alice", "a@x.com")
	eventID := mustRegisterEvent(t, svc, "Broken", testNow.Add(time.Minute), 1)
	joinAll(t, svc, eventID, "a@x.com")
	clk.Set(testNow.Add(time.Hour))

	if _, err := svc.FinalizeEvents(ctx); !errors.Is(err, ErrStorage) {
		t.Fatalf("Expected ErrStorage, got %v", err)
	}
	if _, err := st.GetEvent(ctx, eventID); err != nil {
		t.Errorf("Expected event to survive a failed draw, got %v", err)
	}
}

func TestLotteryService_FinalizeRollsBackOnFailure(t *testing.T) {
	st := openTestStore(t)
	clk := &manualClock{now: testNow}
	healthy := NewLotteryService(st, WithClock(clk))
	ctx := context.Background()

	mustRegisterUser(t, healthy, "Alice", "a@x.com")
	mustRegisterUser(t, healthy, "Bob", "b@x.com")
	eventID := mustRegisterEvent(t, healthy, "Fragile", testNow.Add(time.Minute), 7)
	joinAll(t, healthy, eventID, "a@x.com", "b@x.com")
	clk.Set(testNow.Add(time.Hour))

	boom := errors.New("disk on fire")
	broken := NewLotteryService(&failingStore{Store: st, deleteEventErr: boom}, WithClock(clk))

	_, err := broken.FinalizeEvents(ctx)
	if !errors.Is(err, ErrStorage) || !errors.Is(err, boom) {
		t.Fatalf("Expected a storage error wrapping the cause, got %v", err)
	}

	if _, err := st.GetEvent(ctx, eventID); err != nil {
		t.Errorf("Expected event to be restored by rollback, got %v", err)
	}
	participants, err := st.ListParticipants(ctx, eventID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 2 {
		t.Errorf("Expected 2 participants after rollback, got %d", len(participants))
	}
	winners, err := st.ListWinners(ctx)
	if err != nil {
		t.Fatalf("list winners: %v", err)
	}
	if len(winners) != 0 {
		t.Errorf("Expected no winner after rollback, got %+v", winners)
	}

	// The healthy service can still finalize the same event afterwards.
	report, err := healthy.FinalizeEvents(ctx)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if len(report.Winners) != 1 {
		t.Errorf("Expected 1 winner on retry, got %d", len(report.Winners))
	}
}

func TestLotteryService_SweepSkipsMalformedTimes(t *testing.T) {
	svc, st, clk := newTestService(t)
	ctx := context.Background()

	// Written straight to the store, bypassing RegisterEvent's validation.
	bad := &models.Event{Name: "Legacy", ScheduledTime: "someday soon", Prize: 3}
	if err := st.CreateEvent(ctx, bad); err != nil {
		t.Fatalf("create event: %v", err)
	}
	good := mustRegisterEvent(t, svc, "Good", testNow.Add(-time.Minute), 3)
	clk.Set(testNow)

	report, err := svc.FinalizeEvents(ctx)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].EventID != bad.ID || report.Skipped[0].ScheduledTime != "someday soon" {
		t.Errorf("Expected the legacy event to be reported as skipped, got %+v", report.Skipped)
	}
	if len(report.Expired) != 1 || report.Expired[0] != good {
		t.Errorf("Expected the good event to be processed, got %+v", report.Expired)
	}
	if _, err := st.GetEvent(ctx, bad.ID); err != nil {
		t.Errorf("Expected the skipped event to remain, got %v", err)
	}
}

func TestLotteryService_RemovePastEvents(t *testing.T) {
	svc, st, clk := newTestService(t)
	ctx := context.Background()

	mustRegisterUser(t, svc, "Alice", "a@x.com")
	joined := mustRegisterEvent(t, svc, "Joined", testNow.Add(time.Minute), 10)
	empty := mustRegisterEvent(t, svc, "Empty", testNow.Add(-time.Minute), 10)
	live := mustRegisterEvent(t, svc, "Live", testNow.Add(time.Hour), 10)
	joinAll(t, svc, joined, "a@x.com")
	clk.Set(testNow.Add(2 * time.Minute))

	report, err := svc.RemovePastEvents(ctx)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if len(report.Removed) != 2 || report.Removed[0] != joined || report.Removed[1] != empty {
		t.Errorf("Expected both past events removed, got %v", report.Removed)
	}

	participants, err := st.ListParticipants(ctx, joined)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 0 {
		t.Errorf("Expected participants to be deleted, got %d", len(participants))
	}
	winners, err := st.ListWinners(ctx)
	if err != nil {
		t.Fatalf("list winners: %v", err)
	}
	if len(winners) != 0 {
		t.Errorf("Expected hard expiry to record no winners, got %d", len(winners))
	}
	if _, err := st.GetEvent(ctx, live); err != nil {
		t.Errorf("Expected live event to survive, got %v", err)
	}

	again, err := svc.RemovePastEvents(ctx)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if len(again.Removed) != 0 {
		t.Errorf("Expected second sweep to be a no-op, got %v", again.Removed)
	}
}

func TestLotteryService_TeardownRemovesOrganisers(t *testing.T) {
	st, path := openTestStoreAt(t)
	clk := &manualClock{now: testNow}
	svc := NewLotteryService(st, WithClock(clk))
	ctx := context.Background()

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer raw.Close()

	countOrganisers := func() int {
		t.Helper()
		var n int
		if err := raw.QueryRow(`SELECT COUNT(*) FROM organisers`).Scan(&n); err != nil {
			t.Fatalf("count organisers: %v", err)
		}
		return n
	}
	register := func(name string, at time.Time) int64 {
		t.Helper()
		event, err := svc.RegisterEvent(ctx, RegisterEventInput{
			Name:           name,
			ScheduledTime:  at.Format(time.RFC3339),
			Prize:          10,
			OrganiserName:  "Org " + name,
			OrganiserEmail: name + "@org.example",
		})
		if err != nil {
			t.Fatalf("register event %s: %v", name, err)
		}
		return event.ID
	}

	mustRegisterUser(t, svc, "Alice", "a@x.com")
	drawn := register("drawn", testNow.Add(time.Minute))
	unjoined := register("unjoined", testNow.Add(-time.Minute))
	expired := register("expired", testNow.Add(2*time.Hour))
	live := register("live", testNow.Add(48*time.Hour))
	joinAll(t, svc, drawn, "a@x.com")
	if got := countOrganisers(); got != 4 {
		t.Fatalf("Expected 4 organiser rows, got %d", got)
	}

	clk.Set(testNow.Add(time.Hour))
	report, err := svc.FinalizeEvents(ctx)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if len(report.Winners) != 1 || len(report.Expired) != 1 || report.Expired[0] != unjoined {
		t.Fatalf("Unexpected finalize report: %+v", report)
	}
	if got := countOrganisers(); got != 2 {
		t.Errorf("Expected finalize to drop both organisers, %d rows remain", got)
	}

	clk.Set(testNow.Add(3 * time.Hour))
	removed, err := svc.RemovePastEvents(ctx)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if len(removed.Removed) != 1 || removed.Removed[0] != expired {
		t.Fatalf("Expected only %d removed, got %v", expired, removed.Removed)
	}

	var eventID int64
	if err := raw.QueryRow(`SELECT event_id FROM organisers`).Scan(&eventID); err != nil {
		t.Fatalf("Expected the live organiser to remain: %v", err)
	}
	if eventID != live {
		t.Errorf("Expected remaining organiser for event %d, got %d", live, eventID)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	svc, st, _ := newTestService(t, WithClock(clock.NewFixed(testNow)))
	eventID := mustRegisterEvent(t, svc, "Polled", testNow.Add(-time.Second), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweeper(svc, 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		if _, err := st.GetEvent(context.Background(), eventID); errors.Is(err, store.ErrNotFound) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper never removed the past event")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
