package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

// MemoryStore is the in-process Store backend used for tests and local runs.
// One mutex covers profiles and turns, so the delete cascade is atomic with
// respect to concurrent readers.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	customers map[string]*contractx.Customer
	turns     map[string][]*contractx.Turn
	lastTS    map[string]int64
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:       time.Now,
		customers: make(map[string]*contractx.Customer),
		turns:     make(map[string][]*contractx.Turn),
		lastTS:    make(map[string]int64),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) UpsertCustomer(ctx context.Context, phoneNumber string, attributes map[string]any) (*contractx.Customer, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	existing, ok := s.customers[phone]
	if !ok {
		c := &contractx.Customer{
			PhoneNumber: phone,
			Attributes:  cloneAttributes(attributes),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.customers[phone] = c
		return cloneCustomer(c), nil
	}

	// Merge: attributes not supplied keep their prior values.
	if existing.Attributes == nil {
		existing.Attributes = make(map[string]any, len(attributes))
	}
	for k, v := range attributes {
		existing.Attributes[k] = v
	}
	existing.UpdatedAt = now
	return cloneCustomer(existing), nil
}

func (s *MemoryStore) GetCustomer(ctx context.Context, phoneNumber string) (*contractx.Customer, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[phone]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", contractx.ErrNotFound, phone)
	}
	return cloneCustomer(c), nil
}

func (s *MemoryStore) DeleteCustomer(ctx context.Context, phoneNumber string) error {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[phone]; !ok {
		return fmt.Errorf("%w: customer %s", contractx.ErrNotFound, phone)
	}
	delete(s.customers, phone)
	delete(s.turns, phone)
	delete(s.lastTS, phone)
	return nil
}

func (s *MemoryStore) AppendTurn(ctx context.Context, phoneNumber, userText string) (int64, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[phone]; !ok {
		return 0, fmt.Errorf("%w: customer %s", contractx.ErrNotFound, phone)
	}

	now := s.now().UTC()
	ts := now.UnixNano()
	if last := s.lastTS[phone]; ts <= last {
		ts = last + 1
	}
	s.lastTS[phone] = ts

	s.turns[phone] = append(s.turns[phone], &contractx.Turn{
		PhoneNumber: phone,
		Timestamp:   ts,
		UserText:    userText,
		Automated:   contractx.NewPendingResults(),
		CreatedAt:   now,
	})
	return ts, nil
}

func (s *MemoryStore) History(ctx context.Context, phoneNumber string, limit int) ([]contractx.Turn, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.customers[phone]; !ok {
		return nil, fmt.Errorf("%w: customer %s", contractx.ErrNotFound, phone)
	}

	all := s.turns[phone]
	start := len(all) - limit
	if start < 0 {
		start = 0
	}
	out := make([]contractx.Turn, 0, len(all)-start)
	for i := start; i < len(all); i++ {
		t := *all[i]
		t.Sequence = i
		out = append(out, t)
	}
	return out, nil
}

func (s *MemoryStore) TurnsByTimestamps(ctx context.Context, phoneNumber string, timestamps []int64) ([]contractx.Turn, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.customers[phone]; !ok {
		return nil, fmt.Errorf("%w: customer %s", contractx.ErrNotFound, phone)
	}

	out := make([]contractx.Turn, 0, len(timestamps))
	for _, ts := range timestamps {
		idx := s.indexOfLocked(phone, ts)
		if idx < 0 {
			return nil, fmt.Errorf("%w: turn %s/%d", contractx.ErrNotFound, phone, ts)
		}
		t := *s.turns[phone][idx]
		t.Sequence = idx
		out = append(out, t)
	}
	return out, nil
}

func (s *MemoryStore) GetTurn(ctx context.Context, phoneNumber string, timestamp int64) (*contractx.Turn, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOfLocked(phone, timestamp)
	if idx < 0 {
		return nil, fmt.Errorf("%w: turn %s/%d", contractx.ErrNotFound, phone, timestamp)
	}
	t := *s.turns[phone][idx]
	t.Sequence = idx
	return &t, nil
}

func (s *MemoryStore) SetOperatorResponse(ctx context.Context, phoneNumber string, timestamp int64, text string) (*contractx.Turn, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(phone, timestamp)
	if idx < 0 {
		return nil, fmt.Errorf("%w: turn %s/%d", contractx.ErrNotFound, phone, timestamp)
	}
	turn := s.turns[phone][idx]
	if turn.OperatorResponse != "" {
		return nil, fmt.Errorf("%w: operator response already recorded for turn %s/%d", contractx.ErrConflict, phone, timestamp)
	}
	turn.OperatorResponse = text

	t := *turn
	t.Sequence = idx
	return &t, nil
}

func (s *MemoryStore) WriteAutomatedResults(ctx context.Context, phoneNumber string, timestamp int64, results contractx.AutomatedResults) (*contractx.Turn, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(phone, timestamp)
	if idx < 0 {
		return nil, fmt.Errorf("%w: turn %s/%d", contractx.ErrNotFound, phone, timestamp)
	}
	turn := s.turns[phone][idx]
	if turn.Automated.Pending() {
		turn.Automated = results
	}
	// A lost race restates the winner's results, not an error.
	t := *turn
	t.Sequence = idx
	return &t, nil
}

func (s *MemoryStore) indexOfLocked(phone string, ts int64) int {
	for i, t := range s.turns[phone] {
		if t.Timestamp == ts {
			return i
		}
	}
	return -1
}

func cloneCustomer(c *contractx.Customer) *contractx.Customer {
	out := *c
	out.Attributes = cloneAttributes(c.Attributes)
	return &out
}

func cloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
