package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/repositories"
	"restaurant_booking_backend/pkg/utils"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memStore emulates the bookings, tables and customers tables with their constraints.
type memStore struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	prefixMu  sync.Mutex
	prefixes  map[string]*sync.Mutex
	bookings  map[int64]*models.Booking
	nextID    int64
	tables    map[string]*models.FloorPlanTable
	customers map[string]int64
	stats     []models.BookingStat
	statsErr  error
	activeErr error
	updates   int
}

func newMemStore(tables ...models.FloorPlanTable) *memStore {
	s := &memStore{
		prefixes:  map[string]*sync.Mutex{},
		bookings:  map[int64]*models.Booking{},
		tables:    map[string]*models.FloorPlanTable{},
		customers: map[string]int64{},
	}
	for i := range tables {
		t := tables[i]
		if t.Status == "" {
			t.Status = models.TableStatusAvailable
		}
		s.tables[t.TableCode] = &t
	}
	return s
}

func testTable(code string, capacity int) models.FloorPlanTable {
	return models.FloorPlanTable{
		ID:           int64(len(code) + capacity),
		FloorPlanID:  1,
		RestaurantID: 1,
		TableCode:    code,
		Capacity:     capacity,
		IsActive:     true,
	}
}

func cloneBooking(b *models.Booking) *models.Booking {
	c := *b
	c.History = append(models.BookingHistory(nil), b.History...)
	return &c
}

// --- Transactor ---

type memTx struct{ s *memStore }

func (t memTx) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()
	return fn(nil)
}

// concurrentTx runs units of work in parallel like READ COMMITTED transactions do.
// Only the advisory lock taken by MaxReferenceSequence orders them.
type concurrentTx struct{ s *memStore }

func (t concurrentTx) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	tx := &memTxState{s: t.s}
	defer tx.release()
	return fn(tx)
}

// memTxState is the executor of one concurrentTx unit; it holds advisory locks until the unit ends.
type memTxState struct {
	s    *memStore
	held []*sync.Mutex
}

func (tx *memTxState) lockPrefix(prefix string) {
	tx.s.prefixMu.Lock()
	m, ok := tx.s.prefixes[prefix]
	if !ok {
		m = &sync.Mutex{}
		tx.s.prefixes[prefix] = m
	}
	tx.s.prefixMu.Unlock()
	m.Lock()
	tx.held = append(tx.held, m)
}

func (tx *memTxState) release() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].Unlock()
	}
	tx.held = nil
}

func (tx *memTxState) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, fmt.Errorf("memTxState: raw SQL is not supported")
}

func (tx *memTxState) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func (tx *memTxState) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, fmt.Errorf("memTxState: raw SQL is not supported")
}

// --- BookingRepository ---

type memBookingRepo struct{ s *memStore }

func (r memBookingRepo) CreateBooking(ctx context.Context, executor repositories.SQLExecutor, booking *models.Booking) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.Reference == booking.Reference {
			return nil, repositories.ErrReferenceConflict
		}
		if b.RestaurantID == booking.RestaurantID && b.TableCode == booking.TableCode && b.BookingDate == booking.BookingDate &&
			b.Status.IsActive() && utils.RangesOverlap(b.StartMinute, b.EndMinute, booking.StartMinute, booking.EndMinute) {
			return nil, repositories.ErrSlotConflict
		}
	}
	r.s.nextID++
	created := cloneBooking(booking)
	created.ID = r.s.nextID
	created.Version = 0
	r.s.bookings[created.ID] = created
	return cloneBooking(created), nil
}

func (r memBookingRepo) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (r memBookingRepo) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.Reference == reference {
			return cloneBooking(b), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r memBookingRepo) GetBookings(ctx context.Context, f models.BookingFilters) ([]models.Booking, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Booking{}
	for _, b := range r.s.bookings {
		if f.CustomerID != nil && (b.CustomerID == nil || *b.CustomerID != *f.CustomerID) {
			continue
		}
		if f.ActiveOnly && !b.Status.IsActive() {
			continue
		}
		if f.DateFrom != nil && b.BookingDate < *f.DateFrom {
			continue
		}
		out = append(out, *cloneBooking(b))
	}
	return out, len(out), nil
}

func (r memBookingRepo) ListActiveBookings(ctx context.Context, restaurantID int64, date string, tableCode string) ([]models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.activeErr != nil {
		return nil, r.s.activeErr
	}
	out := []models.Booking{}
	for _, b := range r.s.bookings {
		if b.RestaurantID != restaurantID || b.BookingDate != date || !b.Status.IsActive() {
			continue
		}
		if tableCode != "" && b.TableCode != tableCode {
			continue
		}
		out = append(out, *cloneBooking(b))
	}
	return out, nil
}

func (r memBookingRepo) MaxReferenceSequence(ctx context.Context, executor repositories.SQLExecutor, prefix string) (int, error) {
	if tx, ok := executor.(*memTxState); ok {
		tx.lockPrefix(prefix)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	max := 0
	for _, b := range r.s.bookings {
		if !strings.HasPrefix(b.Reference, prefix) {
			continue
		}
		var seq int
		if _, err := fmt.Sscanf(strings.TrimPrefix(b.Reference, prefix), "%d", &seq); err == nil && seq > max {
			max = seq
		}
	}
	return max, nil
}

func (r memBookingRepo) UpdateWithExpectedVersion(ctx context.Context, executor repositories.SQLExecutor, id int64, patch models.BookingPatch, expectedVersion int) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if b.Version != expectedVersion {
		return nil, repositories.ErrVersionConflict
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.SpecialRequests != nil {
		b.SpecialRequests = patch.SpecialRequests
	}
	if patch.Pricing != nil {
		b.Pricing = patch.Pricing
	}
	if patch.History != nil {
		b.History = append(models.BookingHistory(nil), patch.History...)
	}
	b.Version++
	r.s.updates++
	return cloneBooking(b), nil
}

func (r memBookingRepo) ListBookingStats(ctx context.Context, restaurantID int64, from, to string) ([]models.BookingStat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.statsErr != nil {
		return nil, r.s.statsErr
	}
	out := []models.BookingStat{}
	for _, st := range r.s.stats {
		if st.BookingDate >= from && st.BookingDate <= to {
			out = append(out, st)
		}
	}
	return out, nil
}

// --- FloorPlanRepository ---

type memFloorRepo struct{ s *memStore }

func (r memFloorRepo) GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error) {
	return &models.Restaurant{ID: id, Name: "Test Kitchen"}, nil
}

func (r memFloorRepo) ListTables(ctx context.Context, restaurantID int64, activeOnly bool) ([]models.FloorPlanTable, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.FloorPlanTable{}
	for _, t := range r.s.tables {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r memFloorRepo) GetTable(ctx context.Context, restaurantID int64, tableCode string) (*models.FloorPlanTable, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tables[tableCode]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r memFloorRepo) RefreshTableStatus(ctx context.Context, executor repositories.SQLExecutor, restaurantID int64, tableCode string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tables[tableCode]
	if !ok {
		return "", repositories.ErrNotFound
	}
	t.Status = models.TableStatusAvailable
	for _, b := range r.s.bookings {
		if b.RestaurantID == restaurantID && b.TableCode == tableCode && b.Status.IsActive() {
			t.Status = models.TableStatusBooked
			break
		}
	}
	return t.Status, nil
}

func (s *memStore) tableStatus(code string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[code].Status
}

// --- CustomerRepository ---

type memCustomerRepo struct{ s *memStore }

func (r memCustomerRepo) FindOrCreateByLineUserID(ctx context.Context, executor repositories.SQLExecutor, lineUserID string, displayName *string) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.customers[lineUserID]
	if !ok {
		id = int64(len(r.s.customers) + 1)
		r.s.customers[lineUserID] = id
	}
	return &models.Customer{ID: id, LineUserID: lineUserID, DisplayName: displayName}, nil
}

func (r memCustomerRepo) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for line, cid := range r.s.customers {
		if cid == id {
			return &models.Customer{ID: cid, LineUserID: line}, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// --- HolidayRepository ---

type memHolidayRepo struct {
	mu       sync.Mutex
	holidays map[string]models.Holiday
	err      error
	calls    int
}

func newMemHolidayRepo(holidays ...models.Holiday) *memHolidayRepo {
	r := &memHolidayRepo{holidays: map[string]models.Holiday{}}
	for _, h := range holidays {
		r.holidays[h.Date] = h
	}
	return r
}

func (r *memHolidayRepo) GetByDate(ctx context.Context, date string) (*models.Holiday, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	h, ok := r.holidays[date]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &h, nil
}

func (r *memHolidayRepo) ListBetween(ctx context.Context, from, to string) ([]models.Holiday, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := []models.Holiday{}
	for d, h := range r.holidays {
		if d >= from && d <= to {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *memHolidayRepo) Upsert(ctx context.Context, executor repositories.SQLExecutor, holiday *models.Holiday) (*models.Holiday, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holidays[holiday.Date] = *holiday
	h := *holiday
	return &h, nil
}

func (r *memHolidayRepo) DeleteByDate(ctx context.Context, executor repositories.SQLExecutor, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.holidays[date]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.holidays, date)
	return nil
}

// --- PricingService stub ---

type stubPricing struct {
	result models.PricingResult
	calls  int
	mu     sync.Mutex
}

func (p *stubPricing) CalculatePrice(ctx context.Context, req models.PriceQuoteRequest) models.PricingResult {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	r := p.result
	r.Context.TableID = req.TableID
	return r
}

func (p *stubPricing) Params() PricingParams { return DefaultPricingParams() }
func (p *stubPricing) SetParams(PricingParams) {}
func (p *stubPricing) ClearQuoteCache() {}
func (p *stubPricing) StartSweeper(ctx context.Context, d time.Duration) {}

// --- Notifier recorder ---

type recordingNotifier struct {
	mu      sync.Mutex
	created []string
	changed []string
}

func (n *recordingNotifier) BookingCreated(ctx context.Context, b *models.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, b.Reference)
	return nil
}

func (n *recordingNotifier) BookingStatusChanged(ctx context.Context, b *models.Booking, previous models.BookingStatus) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, fmt.Sprintf("%s:%s->%s", b.Reference, previous, b.Status))
	return nil
}
