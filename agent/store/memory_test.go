package store

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

const testPhone = "89123456789"

func TestUpsertCustomerRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.UpsertCustomer(ctx, "8-912-345-67-89", map[string]any{"tariff": "convergent"})
	if err != nil {
		t.Fatalf("UpsertCustomer() error = %v", err)
	}
	if created.PhoneNumber != testPhone {
		t.Fatalf("stored key = %q, want normalized %q", created.PhoneNumber, testPhone)
	}

	got, err := s.GetCustomer(ctx, testPhone)
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if got.Attributes["tariff"] != "convergent" {
		t.Fatalf("attributes = %v, want tariff preserved", got.Attributes)
	}
}

func TestUpsertCustomerMergesAttributes(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.UpsertCustomer(ctx, testPhone, map[string]any{"tariff": "basic", "premium": true}); err != nil {
		t.Fatalf("first upsert error = %v", err)
	}
	updated, err := s.UpsertCustomer(ctx, testPhone, map[string]any{"tariff": "convergent"})
	if err != nil {
		t.Fatalf("second upsert error = %v", err)
	}

	if updated.Attributes["tariff"] != "convergent" {
		t.Fatalf("tariff = %v, want updated value", updated.Attributes["tariff"])
	}
	if updated.Attributes["premium"] != true {
		t.Fatalf("premium = %v, attributes not supplied must keep prior values", updated.Attributes["premium"])
	}
}

func TestUpsertCustomerRejectsBadPhone(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()

	_, err := s.UpsertCustomer(context.Background(), "12345", nil)
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("UpsertCustomer() error = %v, want ErrValidation", err)
	}
}

func TestAppendTurnRequiresCustomer(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()

	_, err := s.AppendTurn(context.Background(), testPhone, "когда спишутся деньги")
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("AppendTurn() error = %v, want ErrNotFound", err)
	}
}

func TestAppendTurnAssignsMonotonicTimestamps(t *testing.T) {
	t.Parallel()

	// A frozen clock forces the monotonic bump path.
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return frozen }))
	ctx := context.Background()
	mustCustomer(t, s)

	var last int64
	for i := 0; i < 5; i++ {
		ts, err := s.AppendTurn(ctx, testPhone, "сообщение")
		if err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
		if ts <= last {
			t.Fatalf("timestamp %d not strictly greater than previous %d", ts, last)
		}
		last = ts
	}
	if last <= 0 {
		t.Fatalf("timestamp %d must be positive", last)
	}
}

func TestAppendTurnInitializesPendingResults(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	mustCustomer(t, s)

	ts, err := s.AppendTurn(ctx, testPhone, "когда спишутся деньги")
	if err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	turn, err := s.GetTurn(ctx, testPhone, ts)
	if err != nil {
		t.Fatalf("GetTurn() error = %v", err)
	}
	if !turn.Automated.Pending() {
		t.Fatalf("automated results = %+v, want pending", turn.Automated)
	}
}

func TestHistoryWindowAndSequence(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	mustCustomer(t, s)

	var stamps []int64
	for i := 0; i < 4; i++ {
		ts, err := s.AppendTurn(ctx, testPhone, "msg")
		if err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
		stamps = append(stamps, ts)
	}

	history, err := s.History(ctx, testPhone, 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Timestamp != stamps[2] || history[1].Timestamp != stamps[3] {
		t.Fatalf("history window = %v, want two most recent oldest first", history)
	}
	if history[0].Sequence != 2 || history[1].Sequence != 3 {
		t.Fatalf("sequence numbers = %d,%d, want 2,3", history[0].Sequence, history[1].Sequence)
	}
}

func TestTurnsByTimestampsPreservesInputOrder(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	mustCustomer(t, s)

	first, _ := s.AppendTurn(ctx, testPhone, "первое")
	second, _ := s.AppendTurn(ctx, testPhone, "второе")

	turns, err := s.TurnsByTimestamps(ctx, testPhone, []int64{second, first})
	if err != nil {
		t.Fatalf("TurnsByTimestamps() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Timestamp != second || turns[1].Timestamp != first {
		t.Fatal("turns must come back in input order, not creation order")
	}
}

func TestTurnsByTimestampsFailsWholeCallOnMissing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	mustCustomer(t, s)

	ts, _ := s.AppendTurn(ctx, testPhone, "сообщение")

	_, err := s.TurnsByTimestamps(ctx, testPhone, []int64{ts, ts + 12345})
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("TurnsByTimestamps() error = %v, want ErrNotFound for missing timestamp", err)
	}
}

func TestSetOperatorResponseConflictsOnResubmission(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	mustCustomer(t, s)

	ts, _ := s.AppendTurn(ctx, testPhone, "когда спишутся деньги")

	turn, err := s.SetOperatorResponse(ctx, testPhone, ts, "Деньги списываются 1 числа")
	if err != nil {
		t.Fatalf("SetOperatorResponse() error = %v", err)
	}
	if turn.OperatorResponse == "" {
		t.Fatal("operator response not recorded")
	}

	_, err = s.SetOperatorResponse(ctx, testPhone, ts, "другой текст")
	if !errors.Is(err, contractx.ErrConflict) {
		t.Fatalf("second SetOperatorResponse() error = %v, want ErrConflict", err)
	}
}

func TestSetOperatorResponseMissingTurn(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	mustCustomer(t, s)

	_, err := s.SetOperatorResponse(ctx, testPhone, 42, "ответ")
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("SetOperatorResponse() error = %v, want ErrNotFound", err)
	}
}

func TestWriteAutomatedResultsAtMostOnce(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	mustCustomer(t, s)

	ts, _ := s.AppendTurn(ctx, testPhone, "сообщение")

	winner := contractx.AutomatedResults{
		QAFeedback: contractx.AutomatedSlot{State: contractx.StateCompleted},
		Summary:    contractx.AutomatedSlot{State: contractx.StateCompleted},
	}
	turn, err := s.WriteAutomatedResults(ctx, testPhone, ts, winner)
	if err != nil {
		t.Fatalf("WriteAutomatedResults() error = %v", err)
	}
	if turn.Automated.QAFeedback.State != contractx.StateCompleted {
		t.Fatalf("qa state = %s, want completed", turn.Automated.QAFeedback.State)
	}

	loser := contractx.AutomatedResults{
		QAFeedback: contractx.AutomatedSlot{State: contractx.StateFailed, Error: "late"},
		Summary:    contractx.AutomatedSlot{State: contractx.StateFailed, Error: "late"},
	}
	turn, err = s.WriteAutomatedResults(ctx, testPhone, ts, loser)
	if err != nil {
		t.Fatalf("losing WriteAutomatedResults() error = %v, want no-op success", err)
	}
	if turn.Automated.QAFeedback.State != contractx.StateCompleted {
		t.Fatalf("qa state = %s after lost race, want winner's completed", turn.Automated.QAFeedback.State)
	}
}

func TestDeleteCustomerCascades(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	mustCustomer(t, s)

	if _, err := s.AppendTurn(ctx, testPhone, "сообщение"); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	if err := s.DeleteCustomer(ctx, testPhone); err != nil {
		t.Fatalf("DeleteCustomer() error = %v", err)
	}

	if _, err := s.History(ctx, testPhone, 10); !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("History() after delete error = %v, want ErrNotFound", err)
	}

	if err := s.DeleteCustomer(ctx, testPhone); !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("second DeleteCustomer() error = %v, want ErrNotFound", err)
	}

	// A re-created customer must not see the old history.
	mustCustomer(t, s)
	history, err := s.History(ctx, testPhone, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("len(history) = %d after re-create, want 0", len(history))
	}
}

func mustCustomer(t *testing.T, s *MemoryStore) {
	t.Helper()

	if _, err := s.UpsertCustomer(context.Background(), testPhone, map[string]any{"is_mts_subscriber": true}); err != nil {
		t.Fatalf("UpsertCustomer() error = %v", err)
	}
}
