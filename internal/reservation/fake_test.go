package reservation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/outbox"
	"github.com/iliyamo/lounge-reservation/internal/queue"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// memStore is an in-memory Store. A single mutex stands in for the row
// locks: LockSlots takes it and Commit/Rollback release it, so concurrent
// transactions are serialised exactly where MySQL would block them.
type memStore struct {
	lock sync.Mutex

	mu       sync.Mutex
	nextID   uint64
	bookings map[uint64]*model.Booking
	lockKeys [][]string

	failInsert error
}

func newMemStore() *memStore {
	return &memStore{bookings: map[uint64]*model.Booking{}}
}

func (s *memStore) BeginTx(_ context.Context) (Tx, error) {
	return &memTx{store: s}, nil
}

func (s *memStore) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) Cancel(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return apperr.ErrNotFound
	}
	b.Status = model.StatusCancelled
	return nil
}

func (s *memStore) HardDelete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bookings, id)
	return nil
}

func (s *memStore) confirmed() []*model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Booking
	for _, b := range s.bookings {
		if b.Active() {
			out = append(out, b)
		}
	}
	return out
}

type memTx struct {
	store   *memStore
	locked  bool
	pending *model.Booking
	done    bool
}

func (t *memTx) LockSlots(_ context.Context, _ time.Time, keys []string) error {
	t.store.lock.Lock()
	t.locked = true
	t.store.mu.Lock()
	t.store.lockKeys = append(t.store.lockKeys, keys)
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) LockOverlapping(_ context.Context, date time.Time, start slot.Clock, duration int) ([]model.Booking, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var out []model.Booking
	for _, b := range t.store.bookings {
		if b.Active() && b.BookingDate.Equal(date) && slot.Overlaps(b.StartMinute, b.DurationMinutes, start, duration) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	if t.store.failInsert != nil {
		return t.store.failInsert
	}
	t.store.mu.Lock()
	t.store.nextID++
	b.ID = t.store.nextID
	t.store.mu.Unlock()
	cp := *b
	t.pending = &cp
	return nil
}

func (t *memTx) InsertDevices(_ context.Context, _ uint64, devices []model.BookingDevice) error {
	t.pending.Devices = append([]model.BookingDevice(nil), devices...)
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	if t.pending != nil {
		t.store.mu.Lock()
		t.store.bookings[t.pending.ID] = t.pending
		t.store.mu.Unlock()
	}
	t.release()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.release()
	return nil
}

func (t *memTx) release() {
	if t.locked {
		t.locked = false
		t.store.lock.Unlock()
	}
}

// syncOutbox runs tasks inline and records their names.
type syncOutbox struct {
	mu    sync.Mutex
	names []string
	errs  []error
}

func (o *syncOutbox) Enqueue(t outbox.Task) error {
	err := t.Run(context.Background())
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, t.Name)
	o.errs = append(o.errs, err)
	return nil
}

type memMemberships struct {
	byUser map[uint64][]model.Membership
	used   map[uint64]decimal.Decimal
}

func (m *memMemberships) ActiveForUser(_ context.Context, userID uint64, _ time.Time) ([]model.Membership, error) {
	return m.byUser[userID], nil
}

func (m *memMemberships) AddHoursUsed(_ context.Context, id uint64, hours decimal.Decimal) error {
	if m.used == nil {
		m.used = map[uint64]decimal.Decimal{}
	}
	m.used[id] = m.used[id].Add(hours)
	return nil
}

type recordingEffects struct {
	mu          sync.Mutex
	events      []queue.BookingConfirmedEvent
	promos      []uint64
	points      map[uint64]int64
	invalidated []time.Time
	notifyErr   error
}

func (r *recordingEffects) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.notifyErr
}

func (r *recordingEffects) IncrementUsage(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promos = append(r.promos, id)
	return nil
}

func (r *recordingEffects) AddPoints(_ context.Context, userID uint64, points int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.points == nil {
		r.points = map[uint64]int64{}
	}
	r.points[userID] += points
	return nil
}

func (r *recordingEffects) InvalidateDate(_ context.Context, date time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, date)
	return nil
}
