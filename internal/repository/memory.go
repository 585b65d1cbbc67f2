package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cadak-tickets/internal/model"

	"github.com/rs/zerolog"
)

// errMemConflict marks a memory transaction whose reads went stale before commit.
var errMemConflict = errors.New("memory store: concurrent write detected")

func isMemConflict(err error) bool {
	return errors.Is(err, errMemConflict)
}

// MemoryStore is an in-process store with optimistic transactions. Every
// transaction records the version of each row it reads and buffers its
// writes; commit fails when any read row changed in the meantime, and the
// transaction is re-run like a database serialization failure.
type MemoryStore struct {
	mu         sync.Mutex
	versions   map[string]uint64
	orders     map[string]model.Order
	refs       map[string]string
	tickets    map[string]model.Ticket
	byOrder    map[string][]string
	events     map[string]model.Event
	types      map[string]model.TicketType
	scans      []model.Scan
	access     map[string]model.ScannerAccess
	payouts    map[string]model.PayoutRequest
	maxRetries int
	injected   int
	logger     zerolog.Logger
}

// NewMemoryStore creates an empty store. txMaxRetries bounds conflict re-runs.
func NewMemoryStore(txMaxRetries int, logger zerolog.Logger) *MemoryStore {
	if txMaxRetries < 0 {
		txMaxRetries = DefaultTxMaxRetries
	}
	return &MemoryStore{
		versions:   make(map[string]uint64),
		orders:     make(map[string]model.Order),
		refs:       make(map[string]string),
		tickets:    make(map[string]model.Ticket),
		byOrder:    make(map[string][]string),
		events:     make(map[string]model.Event),
		types:      make(map[string]model.TicketType),
		access:     make(map[string]model.ScannerAccess),
		payouts:    make(map[string]model.PayoutRequest),
		maxRetries: txMaxRetries,
		logger:     logger.With().Str("repository", "memory").Logger(),
	}
}

// Orders returns the store's OrderStore view.
func (s *MemoryStore) Orders() OrderStore { return memOrders{s} }

// Tickets returns the store's TicketStore view.
func (s *MemoryStore) Tickets() TicketStore { return memTickets{s} }

// Catalog returns the store's CatalogRepository view.
func (s *MemoryStore) Catalog() CatalogRepository { return memCatalog{s} }

// Access returns the store's AccessRepository view.
func (s *MemoryStore) Access() AccessRepository { return memAccess{s} }

// Payouts returns the store's PayoutRepository view.
func (s *MemoryStore) Payouts() PayoutRepository { return memPayouts{s} }

// SeedEvent adds or replaces an event and its ticket types.
func (s *MemoryStore) SeedEvent(event model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putEvent(event)
}

// putEvent must be called with s.mu held.
func (s *MemoryStore) putEvent(event model.Event) {
	types := event.TicketTypes
	event.TicketTypes = nil
	s.events[event.ID] = event
	for _, tt := range types {
		tt.EventID = event.ID
		s.types[tt.ID] = tt
		s.bump(typeKey(tt.ID))
	}
}

// Scans returns a copy of the check-in audit log.
func (s *MemoryStore) Scans() []model.Scan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Scan(nil), s.scans...)
}

// SimulateConflicts makes the next n commits fail as if a concurrent writer
// had won. It exists for fault-injection drills.
func (s *MemoryStore) SimulateConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injected = n
}

// Transact runs fn with optimistic concurrency control.
func (s *MemoryStore) Transact(ctx context.Context, fn TxFunc) error {
	return retryTx(ctx, "memory", s.maxRetries, isMemConflict, s.logger, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := newMemTx(s)
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return s.commit(tx)
	})
}

func orderKey(id string) string { return "order:" + id }
func refKey(ref string) string { return "ref:" + ref }
func ticketKey(id string) string { return "ticket:" + id }
func orderTicketsKey(id string) string { return "order-tickets:" + id }
func typeKey(id string) string { return "ticket-type:" + id }
func accessKey(seller, member string) string {
	return "access:" + seller + "/" + member
}

// bump must be called with s.mu held.
func (s *MemoryStore) bump(key string) {
	s.versions[key]++
}

func (s *MemoryStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.injected > 0 {
		s.injected--
		return errMemConflict
	}

	for key, version := range tx.reads {
		if s.versions[key] != version {
			return errMemConflict
		}
	}
	for ref, id := range tx.refs {
		if existing, ok := s.refs[ref]; ok && existing != id {
			return errMemConflict
		}
	}
	for orderID, ids := range tx.newTickets {
		if len(ids) > 0 && len(s.byOrder[orderID]) > 0 {
			return errMemConflict
		}
	}

	for id, o := range tx.orders {
		s.orders[id] = o
		s.bump(orderKey(id))
	}
	for ref, id := range tx.refs {
		s.refs[ref] = id
		s.bump(refKey(ref))
	}
	for id, t := range tx.tickets {
		s.tickets[id] = t
		s.bump(ticketKey(id))
	}
	for orderID, ids := range tx.newTickets {
		s.byOrder[orderID] = append(s.byOrder[orderID], ids...)
		s.bump(orderTicketsKey(orderID))
	}
	for id := range tx.deleted {
		t, ok := s.tickets[id]
		if !ok {
			continue
		}
		delete(s.tickets, id)
		s.byOrder[t.OrderID] = removeID(s.byOrder[t.OrderID], id)
		s.bump(ticketKey(id))
		s.bump(orderTicketsKey(t.OrderID))
	}
	for id, delta := range tx.sold {
		tt := s.types[id]
		tt.QuantitySold = max(tt.QuantitySold+delta, 0)
		s.types[id] = tt
		s.bump(typeKey(id))
	}
	s.scans = append(s.scans, tx.scans...)

	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func cloneOrder(o model.Order) model.Order {
	o.Items = append([]model.LineItem(nil), o.Items...)
	if o.BuyerID != nil {
		id := *o.BuyerID
		o.BuyerID = &id
	}
	if o.PaidAt != nil {
		at := *o.PaidAt
		o.PaidAt = &at
	}
	o.RawEvent = append([]byte(nil), o.RawEvent...)
	return o
}

// memTx buffers one attempt's reads and writes.
type memTx struct {
	s          *MemoryStore
	reads      map[string]uint64
	orders     map[string]model.Order
	refs       map[string]string
	tickets    map[string]model.Ticket
	newTickets map[string][]string
	deleted    map[string]bool
	sold       map[string]int
	scans      []model.Scan
}

func newMemTx(s *MemoryStore) *memTx {
	return &memTx{
		s:          s,
		reads:      make(map[string]uint64),
		orders:     make(map[string]model.Order),
		refs:       make(map[string]string),
		tickets:    make(map[string]model.Ticket),
		newTickets: make(map[string][]string),
		deleted:    make(map[string]bool),
		sold:       make(map[string]int),
	}
}

// track records the version of key the first time it is read. Callers hold s.mu.
func (tx *memTx) track(key string) {
	if _, ok := tx.reads[key]; !ok {
		tx.reads[key] = tx.s.versions[key]
	}
}

func (tx *memTx) GetOrderByReference(_ context.Context, reference string) (*model.Order, error) {
	if id, ok := tx.refs[reference]; ok {
		o := cloneOrder(tx.orders[id])
		return &o, nil
	}

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	tx.track(refKey(reference))
	id, ok := tx.s.refs[reference]
	if !ok {
		return nil, nil
	}
	tx.track(orderKey(id))
	if staged, ok := tx.orders[id]; ok {
		o := cloneOrder(staged)
		return &o, nil
	}
	o := cloneOrder(tx.s.orders[id])
	return &o, nil
}

func (tx *memTx) InsertOrder(_ context.Context, order *model.Order) error {
	if _, ok := tx.refs[order.Reference]; ok {
		return fmt.Errorf("failed to insert order: duplicate reference %s", order.Reference)
	}
	tx.orders[order.ID] = cloneOrder(*order)
	tx.refs[order.Reference] = order.ID
	return nil
}

func (tx *memTx) TransitionOrder(_ context.Context, orderID string, to model.OrderStatus, paidAt *time.Time, rawEvent []byte) error {
	o, ok := tx.orders[orderID]
	if !ok {
		tx.s.mu.Lock()
		tx.track(orderKey(orderID))
		o, ok = tx.s.orders[orderID]
		tx.s.mu.Unlock()
		if !ok {
			return fmt.Errorf("failed to update order status: order %s not found", orderID)
		}
		o = cloneOrder(o)
	}
	if !model.CanTransition(o.Status, to) {
		return model.ErrInvalidOrderState
	}

	o.Status = to
	if o.PaidAt == nil && paidAt != nil {
		at := *paidAt
		o.PaidAt = &at
	}
	if len(rawEvent) > 0 {
		o.RawEvent = append([]byte(nil), rawEvent...)
	}
	tx.orders[orderID] = o
	return nil
}

func (tx *memTx) ListTicketsByOrder(_ context.Context, orderID string) ([]model.Ticket, error) {
	tx.s.mu.Lock()
	tx.track(orderTicketsKey(orderID))
	ids := append([]string(nil), tx.s.byOrder[orderID]...)
	out := make([]model.Ticket, 0, len(ids)+len(tx.newTickets[orderID]))
	for _, id := range ids {
		if tx.deleted[id] {
			continue
		}
		if staged, ok := tx.tickets[id]; ok {
			out = append(out, staged)
			continue
		}
		out = append(out, tx.s.tickets[id])
	}
	tx.s.mu.Unlock()

	for _, id := range tx.newTickets[orderID] {
		out = append(out, tx.tickets[id])
	}
	return out, nil
}

func (tx *memTx) InsertTickets(_ context.Context, tickets []model.Ticket) error {
	for _, t := range tickets {
		if _, ok := tx.tickets[t.ID]; ok {
			return fmt.Errorf("failed to insert ticket: duplicate id %s", t.ID)
		}
		tx.tickets[t.ID] = t
		tx.newTickets[t.OrderID] = append(tx.newTickets[t.OrderID], t.ID)
	}
	return nil
}

func (tx *memTx) AddQuantitySold(_ context.Context, ticketTypeID string, quantity int) (int, bool, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	tx.track(typeKey(ticketTypeID))
	tt, ok := tx.s.types[ticketTypeID]
	if !ok {
		return 0, false, nil
	}
	tx.sold[ticketTypeID] += quantity
	return tt.QuantityTotal - max(tt.QuantitySold+tx.sold[ticketTypeID], 0), true, nil
}

func (tx *memTx) GetTicket(_ context.Context, ticketID string) (*model.Ticket, error) {
	if tx.deleted[ticketID] {
		return nil, nil
	}
	if staged, ok := tx.tickets[ticketID]; ok {
		return &staged, nil
	}

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	tx.track(ticketKey(ticketID))
	t, ok := tx.s.tickets[ticketID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (tx *memTx) MarkCheckedIn(ctx context.Context, ticketID string, scannedAt time.Time) error {
	t, err := tx.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if t == nil || t.Status != model.TicketUnused {
		return fmt.Errorf("ticket %s is no longer unused", ticketID)
	}
	at := scannedAt
	t.Status = model.TicketCheckedIn
	t.ScannedAt = &at
	tx.tickets[ticketID] = *t
	return nil
}

func (tx *memTx) DeleteTicket(ctx context.Context, ticketID string) error {
	t, err := tx.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if t == nil || t.Status != model.TicketUnused {
		return model.ErrTicketNotDeletable
	}
	delete(tx.tickets, ticketID)
	tx.deleted[ticketID] = true
	return nil
}

func (tx *memTx) InsertScan(_ context.Context, scan *model.Scan) error {
	tx.scans = append(tx.scans, *scan)
	return nil
}

func (tx *memTx) HasScannerAccess(_ context.Context, sellerID, memberID string) (bool, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	key := accessKey(sellerID, memberID)
	tx.track(key)
	_, ok := tx.s.access[key]
	return ok, nil
}

type memOrders struct{ s *MemoryStore }

func (m memOrders) Transact(ctx context.Context, fn TxFunc) error { return m.s.Transact(ctx, fn) }

func (m memOrders) CreatePending(_ context.Context, order *model.Order) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.refs[order.Reference]; ok {
		return fmt.Errorf("failed to create order: duplicate reference %s", order.Reference)
	}
	m.s.orders[order.ID] = cloneOrder(*order)
	m.s.refs[order.Reference] = order.ID
	m.s.bump(orderKey(order.ID))
	m.s.bump(refKey(order.Reference))
	return nil
}

func (m memOrders) GetByReference(_ context.Context, reference string) (*model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	id, ok := m.s.refs[reference]
	if !ok {
		return nil, nil
	}
	o := cloneOrder(m.s.orders[id])
	return &o, nil
}

func (m memOrders) ListBySeller(_ context.Context, sellerID string, limit, offset int) ([]model.Order, error) {
	m.s.mu.Lock()
	out := []model.Order{}
	for _, o := range m.s.orders {
		if hasSeller(o, sellerID) {
			out = append(out, cloneOrder(o))
		}
	}
	m.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, offset), nil
}

func hasSeller(o model.Order, sellerID string) bool {
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

func (m memOrders) SellerSales(_ context.Context, sellerID, currency string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var total int64
	for _, o := range m.s.orders {
		if o.Status == model.OrderPaid && o.Currency == currency {
			total += o.SellerSubtotal(sellerID)
		}
	}
	return total, nil
}

func (m memOrders) GetByID(_ context.Context, id string) (*model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	o, ok := m.s.orders[id]
	if !ok {
		return nil, nil
	}
	o = cloneOrder(o)
	return &o, nil
}

type memTickets struct{ s *MemoryStore }

func (m memTickets) Transact(ctx context.Context, fn TxFunc) error { return m.s.Transact(ctx, fn) }

func (m memTickets) GetByID(_ context.Context, id string) (*model.Ticket, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	t, ok := m.s.tickets[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m memTickets) ListByOrder(_ context.Context, orderID string) ([]model.Ticket, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	out := make([]model.Ticket, 0, len(m.s.byOrder[orderID]))
	for _, id := range m.s.byOrder[orderID] {
		out = append(out, m.s.tickets[id])
	}
	return out, nil
}

func (m memTickets) ListByBuyer(_ context.Context, buyerID string, limit, offset int) ([]model.Ticket, error) {
	return m.filter(func(t model.Ticket) bool {
		return t.BuyerID != nil && *t.BuyerID == buyerID
	}, limit, offset), nil
}

func (m memTickets) ListBySeller(_ context.Context, sellerID string, limit, offset int) ([]model.Ticket, error) {
	return m.filter(func(t model.Ticket) bool { return t.SellerID == sellerID }, limit, offset), nil
}

func (m memTickets) filter(keep func(model.Ticket) bool, limit, offset int) []model.Ticket {
	m.s.mu.Lock()
	out := []model.Ticket{}
	for _, t := range m.s.tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	m.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, offset)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type memCatalog struct{ s *MemoryStore }

func (m memCatalog) eventWithTypes(e model.Event) model.Event {
	e.TicketTypes = []model.TicketType{}
	for _, tt := range m.s.types {
		if tt.EventID == e.ID {
			e.TicketTypes = append(e.TicketTypes, tt)
		}
	}
	sort.Slice(e.TicketTypes, func(i, j int) bool {
		if e.TicketTypes[i].PriceMinor != e.TicketTypes[j].PriceMinor {
			return e.TicketTypes[i].PriceMinor < e.TicketTypes[j].PriceMinor
		}
		return e.TicketTypes[i].ID < e.TicketTypes[j].ID
	})
	e.FillMinPrice()
	return e
}

func (m memCatalog) ListPublished(_ context.Context, limit, offset int) ([]model.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	events := []model.Event{}
	for _, e := range m.s.events {
		if e.Status == model.EventPublished {
			events = append(events, m.eventWithTypes(e))
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartAt.Equal(events[j].StartAt) {
			return events[i].StartAt.Before(events[j].StartAt)
		}
		return events[i].ID < events[j].ID
	})
	return paginate(events, limit, offset), nil
}

func (m memCatalog) GetEvent(_ context.Context, id string) (*model.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	e, ok := m.s.events[id]
	if !ok {
		return nil, nil
	}
	e = m.eventWithTypes(e)
	return &e, nil
}

func (m memCatalog) GetTicketTypes(_ context.Context, ids []string) ([]model.TicketType, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	out := []model.TicketType{}
	for _, id := range ids {
		if tt, ok := m.s.types[id]; ok {
			out = append(out, tt)
		}
	}
	return out, nil
}

func (m memCatalog) ListBySeller(_ context.Context, sellerID string, limit, offset int) ([]model.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	events := []model.Event{}
	for _, e := range m.s.events {
		if e.SellerID == sellerID {
			events = append(events, m.eventWithTypes(e))
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.After(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
	return paginate(events, limit, offset), nil
}

func (m memCatalog) CreateEvent(_ context.Context, event *model.Event) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.events[event.ID]; ok {
		return fmt.Errorf("failed to create event: duplicate id %s", event.ID)
	}
	for _, tt := range event.TicketTypes {
		if _, ok := m.s.types[tt.ID]; ok {
			return fmt.Errorf("failed to create event: duplicate ticket type id %s", tt.ID)
		}
	}
	m.s.putEvent(*event)
	return nil
}

func (m memCatalog) UpdateEvent(_ context.Context, event *model.Event) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.events[event.ID]; !ok {
		return model.ErrEventNotFound
	}
	e := *event
	e.TicketTypes = nil
	e.MinPriceMinor = nil
	m.s.events[e.ID] = e
	return nil
}

// DeleteEvent bumps the ticket type versions so an in-flight sale of one of
// them conflicts and re-reads a catalog without it.
func (m memCatalog) DeleteEvent(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.events[id]; !ok {
		return model.ErrEventNotFound
	}
	for _, tt := range m.s.types {
		if tt.EventID == id && tt.QuantitySold > 0 {
			return model.ErrEventHasSales
		}
	}
	for typeID, tt := range m.s.types {
		if tt.EventID == id {
			delete(m.s.types, typeID)
			m.s.bump(typeKey(typeID))
		}
	}
	delete(m.s.events, id)
	return nil
}

type memAccess struct{ s *MemoryStore }

func (m memAccess) Grant(_ context.Context, access *model.ScannerAccess) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	key := accessKey(access.SellerID, access.MemberID)
	if existing, ok := m.s.access[key]; ok {
		existing.Role = access.Role
		m.s.access[key] = existing
	} else {
		m.s.access[key] = *access
	}
	m.s.bump(key)
	return nil
}

func (m memAccess) Revoke(_ context.Context, sellerID, memberID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	key := accessKey(sellerID, memberID)
	delete(m.s.access, key)
	m.s.bump(key)
	return nil
}

func (m memAccess) List(_ context.Context, sellerID string) ([]model.ScannerAccess, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	out := []model.ScannerAccess{}
	for _, a := range m.s.access {
		if a.SellerID == sellerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].MemberID < out[j].MemberID
	})
	return out, nil
}

type memPayouts struct{ s *MemoryStore }

func (m memPayouts) Create(_ context.Context, payout *model.PayoutRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, p := range m.s.payouts {
		if p.SellerID == payout.SellerID && p.Status == model.PayoutPending {
			return model.ErrPayoutPending
		}
	}
	m.s.payouts[payout.ID] = *payout
	return nil
}

func (m memPayouts) Get(_ context.Context, id string) (*model.PayoutRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.payouts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m memPayouts) ListBySeller(_ context.Context, sellerID string, limit, offset int) ([]model.PayoutRequest, error) {
	m.s.mu.Lock()
	out := []model.PayoutRequest{}
	for _, p := range m.s.payouts {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	m.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, offset), nil
}

func (m memPayouts) Outstanding(_ context.Context, sellerID, currency string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var total int64
	for _, p := range m.s.payouts {
		if p.SellerID == sellerID && p.Currency == currency && p.Status != model.PayoutRejected {
			total += p.AmountMinor
		}
	}
	return total, nil
}

func (m memPayouts) Resolve(_ context.Context, id string, status model.PayoutStatus, at time.Time) error {
	if status != model.PayoutPaid && status != model.PayoutRejected {
		return model.ErrInvalidPayoutState
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.payouts[id]
	if !ok {
		return model.ErrPayoutNotFound
	}
	if p.Status != model.PayoutPending {
		return model.ErrInvalidPayoutState
	}
	resolved := at
	p.Status = status
	p.ResolvedAt = &resolved
	m.s.payouts[id] = p
	return nil
}
