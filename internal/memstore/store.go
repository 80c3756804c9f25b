// Package memstore is an in-memory implementation of every store port.
// All operations are serialized on one mutex; RunInTx holds it for the whole
// callback and restores a snapshot when the callback fails.
package memstore

import (
	"context"
	"fmt"
	"github.com/ariefcatur/takeaway-settlement/internal/ledger"
	"github.com/ariefcatur/takeaway-settlement/internal/notify"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	"github.com/ariefcatur/takeaway-settlement/internal/stats"
	"github.com/shopspring/decimal"
	"sort"
	"strings"
	"sync"
	"time"
)

type state struct {
	orders        map[int64]orders.Order
	byNo          map[string]int64
	storefronts   map[int64]orders.Storefront
	menu          map[int64]orders.MenuItem
	config        map[string]string
	entries       []ledger.Entry
	notifications []notify.Notification
	seq           int64
}

func (s *state) clone() *state {
	c := &state{
		orders:        make(map[int64]orders.Order, len(s.orders)),
		byNo:          make(map[string]int64, len(s.byNo)),
		storefronts:   make(map[int64]orders.Storefront, len(s.storefronts)),
		menu:          make(map[int64]orders.MenuItem, len(s.menu)),
		config:        make(map[string]string, len(s.config)),
		entries:       append([]ledger.Entry(nil), s.entries...),
		notifications: append([]notify.Notification(nil), s.notifications...),
		seq:           s.seq,
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range s.byNo {
		c.byNo[k] = v
	}
	for k, v := range s.storefronts {
		c.storefronts[k] = v
	}
	for k, v := range s.menu {
		c.menu[k] = v
	}
	for k, v := range s.config {
		c.config[k] = v
	}
	return c
}

func copyOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	return o
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: (&state{}).clone()}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// RunInTx serializes fn against every other operation. Nested calls join.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.st = snap
		return err
	}
	return nil
}

// do runs fn under the store lock unless ctx already holds it.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if inTx(ctx) {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (st *state) next() int64 {
	st.seq++
	return st.seq
}

// --- seeding helpers ---

func (s *Store) AddStorefront(sf orders.Storefront) orders.Storefront {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sf.ID == 0 {
		sf.ID = s.st.next()
	}
	if sf.UpdatedAt.IsZero() {
		sf.UpdatedAt = time.Now()
	}
	s.st.storefronts[sf.ID] = sf
	return sf
}

func (s *Store) AddMenuItem(m orders.MenuItem) orders.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.st.next()
	}
	s.st.menu[m.ID] = m
	return m
}

// PutOrder stores o as given, assigning an id and order number when missing.
func (s *Store) PutOrder(o orders.Order) orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.st.next()
	}
	if o.OrderNo == "" {
		o.OrderNo = fmt.Sprintf("ORD%d", o.ID)
	}
	s.st.orders[o.ID] = copyOrder(o)
	s.st.byNo[o.OrderNo] = o.ID
	return o
}

// Entries returns the ledger history of one storefront in insertion order.
func (s *Store) Entries(storefrontID int64) []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Entry
	for _, e := range s.st.entries {
		if e.StorefrontID == storefrontID {
			out = append(out, e)
		}
	}
	return out
}

// --- orders.Store ---

func (s *Store) CreateOrder(ctx context.Context, o *orders.Order) error {
	return s.do(ctx, func(st *state) error {
		if _, dup := st.byNo[o.OrderNo]; dup {
			return fmt.Errorf("order number %s already exists", o.OrderNo)
		}
		o.ID = st.next()
		for i := range o.Items {
			o.Items[i].ID = st.next()
			o.Items[i].OrderID = o.ID
		}
		st.orders[o.ID] = copyOrder(*o)
		st.byNo[o.OrderNo] = o.ID
		return nil
	})
}

func (s *Store) orderBy(ctx context.Context, find func(st *state) (int64, bool)) (*orders.Order, error) {
	var out *orders.Order
	err := s.do(ctx, func(st *state) error {
		id, ok := find(st)
		if !ok {
			return orders.ErrNotFound
		}
		o, ok := st.orders[id]
		if !ok {
			return orders.ErrNotFound
		}
		c := copyOrder(o)
		out = &c
		return nil
	})
	return out, err
}

func (s *Store) OrderByID(ctx context.Context, id int64) (*orders.Order, error) {
	return s.orderBy(ctx, func(*state) (int64, bool) { return id, true })
}

func (s *Store) OrderByNumber(ctx context.Context, orderNo string) (*orders.Order, error) {
	return s.orderBy(ctx, func(st *state) (int64, bool) {
		id, ok := st.byNo[orderNo]
		return id, ok
	})
}

func (s *Store) LockOrderByID(ctx context.Context, id int64) (*orders.Order, error) {
	return s.OrderByID(ctx, id)
}

func (s *Store) LockOrderByNumber(ctx context.Context, orderNo string) (*orders.Order, error) {
	return s.OrderByNumber(ctx, orderNo)
}

func (s *Store) UpdateOrderState(ctx context.Context, o *orders.Order, from orders.Status) error {
	return s.do(ctx, func(st *state) error {
		cur, ok := st.orders[o.ID]
		if !ok {
			return orders.ErrNotFound
		}
		if cur.Status != from {
			return &orders.TransitionError{From: cur.Status, To: o.Status}
		}
		cur.Status = o.Status
		cur.PlatformRate, cur.PlatformFee, cur.MerchantIncome = o.PlatformRate, o.PlatformFee, o.MerchantIncome
		cur.PaidAt, cur.DeliveryTime, cur.CompletedAt = o.PaidAt, o.DeliveryTime, o.CompletedAt
		cur.UpdatedAt = o.UpdatedAt
		st.orders[o.ID] = cur
		return nil
	})
}

func (s *Store) ListUserOrders(ctx context.Context, userID int64, f orders.ListFilter) ([]orders.Order, error) {
	return s.list(ctx, f, func(o orders.Order) bool { return o.UserID == userID })
}

func (s *Store) ListStorefrontOrders(ctx context.Context, storefrontID int64, f orders.ListFilter) ([]orders.Order, error) {
	return s.list(ctx, f, func(o orders.Order) bool {
		return o.StorefrontID == storefrontID && o.Status != orders.StatusPending
	})
}

func (s *Store) list(ctx context.Context, f orders.ListFilter, keep func(orders.Order) bool) ([]orders.Order, error) {
	f = f.Normalize()
	out := []orders.Order{}
	err := s.do(ctx, func(st *state) error {
		for _, o := range st.orders {
			if keep(o) && (f.Status == "" || o.Status == f.Status) {
				out = append(out, copyOrder(o))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset >= len(out) {
		return []orders.Order{}, err
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, err
}

// --- orders.StorefrontStore, orders.Catalog ---

func (s *Store) Storefront(ctx context.Context, id int64) (*orders.Storefront, error) {
	var out *orders.Storefront
	err := s.do(ctx, func(st *state) error {
		sf, ok := st.storefronts[id]
		if !ok {
			return orders.ErrNotFound
		}
		out = &sf
		return nil
	})
	return out, err
}

func (s *Store) StorefrontByOwner(ctx context.Context, ownerID int64) (*orders.Storefront, error) {
	var out *orders.Storefront
	err := s.do(ctx, func(st *state) error {
		for _, sf := range st.storefronts {
			if sf.OwnerID == ownerID {
				sf := sf
				out = &sf
				return nil
			}
		}
		return orders.ErrNotFound
	})
	return out, err
}

func (s *Store) PatchStorefront(ctx context.Context, id int64, p orders.StorefrontPatch) (*orders.Storefront, error) {
	var out *orders.Storefront
	err := s.do(ctx, func(st *state) error {
		sf, ok := st.storefronts[id]
		if !ok {
			return orders.ErrNotFound
		}
		p.Apply(&sf)
		sf.UpdatedAt = time.Now()
		st.storefronts[id] = sf
		out = &sf
		return nil
	})
	return out, err
}

func (s *Store) MenuItems(ctx context.Context, storefrontID int64, ids []int64) (map[int64]orders.MenuItem, error) {
	out := make(map[int64]orders.MenuItem, len(ids))
	err := s.do(ctx, func(st *state) error {
		for _, id := range ids {
			if m, ok := st.menu[id]; ok && m.StorefrontID == storefrontID {
				out[id] = m
			}
		}
		return nil
	})
	return out, err
}

// --- settlement.RateSource ---

func (s *Store) DefaultPlatformRate(ctx context.Context) (decimal.Decimal, bool, error) {
	var (
		rate decimal.Decimal
		ok   bool
	)
	err := s.do(ctx, func(st *state) error {
		v, found := st.config[settlement.KeyDefaultPlatformRate]
		if !found {
			return nil
		}
		r, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		rate, ok = r, true
		return nil
	})
	return rate, ok, err
}

func (s *Store) SetDefaultPlatformRate(ctx context.Context, rate decimal.Decimal) error {
	return s.SetConfig(ctx, settlement.KeyDefaultPlatformRate, rate.String())
}

// SetConfig writes a raw system_config value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	return s.do(ctx, func(st *state) error {
		st.config[key] = value
		return nil
	})
}

// --- ledger.Store ---

func (s *Store) LockBalance(ctx context.Context, storefrontID int64) (decimal.Decimal, error) {
	sf, err := s.Storefront(ctx, storefrontID)
	if err != nil {
		return decimal.Zero, err
	}
	return sf.Balance, nil
}

func (s *Store) AddBalance(ctx context.Context, storefrontID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := s.do(ctx, func(st *state) error {
		sf, ok := st.storefronts[storefrontID]
		if !ok {
			return orders.ErrNotFound
		}
		sf.Balance = sf.Balance.Add(delta)
		sf.UpdatedAt = time.Now()
		st.storefronts[storefrontID] = sf
		b = sf.Balance
		return nil
	})
	return b, err
}

func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) error {
	return s.do(ctx, func(st *state) error {
		if e.OrderID != nil {
			for _, x := range st.entries {
				if x.OrderID != nil && *x.OrderID == *e.OrderID && x.Kind == e.Kind {
					return ledger.ErrDuplicateEntry
				}
			}
		}
		st.entries = append(st.entries, e)
		return nil
	})
}

func (s *Store) ListEntries(ctx context.Context, storefrontID int64, limit int) ([]ledger.Entry, error) {
	out := []ledger.Entry{}
	err := s.do(ctx, func(st *state) error {
		for i := len(st.entries) - 1; i >= 0 && len(out) < limit; i-- {
			if st.entries[i].StorefrontID == storefrontID {
				out = append(out, st.entries[i])
			}
		}
		return nil
	})
	return out, err
}

// --- notify.Store ---

func (s *Store) InsertNotification(ctx context.Context, n *notify.Notification) error {
	return s.do(ctx, func(st *state) error {
		n.ID = st.next()
		st.notifications = append(st.notifications, *n)
		return nil
	})
}

func (s *Store) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]notify.Notification, error) {
	out := []notify.Notification{}
	err := s.do(ctx, func(st *state) error {
		for i := len(st.notifications) - 1; i >= 0; i-- {
			n := st.notifications[i]
			if n.UserID == userID && (!unreadOnly || !n.Read) {
				out = append(out, n)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var c int64
	err := s.do(ctx, func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID == userID && !n.Read {
				c++
			}
		}
		return nil
	})
	return c, err
}

func (s *Store) MarkRead(ctx context.Context, userID, id int64) error {
	return s.do(ctx, func(st *state) error {
		for i := range st.notifications {
			if n := &st.notifications[i]; n.ID == id && n.UserID == userID {
				n.Read = true
				return nil
			}
		}
		return orders.ErrNotFound
	})
}

func (s *Store) MarkAllRead(ctx context.Context, userID int64) error {
	return s.do(ctx, func(st *state) error {
		for i := range st.notifications {
			if st.notifications[i].UserID == userID {
				st.notifications[i].Read = true
			}
		}
		return nil
	})
}

func (s *Store) DeleteNotification(ctx context.Context, userID, id int64) error {
	return s.do(ctx, func(st *state) error {
		for i, n := range st.notifications {
			if n.ID == id && n.UserID == userID {
				st.notifications = append(st.notifications[:i:i], st.notifications[i+1:]...)
				return nil
			}
		}
		return orders.ErrNotFound
	})
}

func (s *Store) DeleteAllNotifications(ctx context.Context, userID int64) error {
	return s.do(ctx, func(st *state) error {
		kept := st.notifications[:0:0]
		for _, n := range st.notifications {
			if n.UserID != userID {
				kept = append(kept, n)
			}
		}
		st.notifications = kept
		return nil
	})
}

// --- stats.Source ---

func (s *Store) scoped(st *state, scope stats.Scope, fn func(o orders.Order)) {
	for _, o := range st.orders {
		if scope.Platform() || o.StorefrontID == scope.StorefrontID {
			fn(o)
		}
	}
}

func (s *Store) CountByStatus(ctx context.Context, scope stats.Scope) (map[orders.Status]int64, error) {
	out := map[orders.Status]int64{}
	err := s.do(ctx, func(st *state) error {
		s.scoped(st, scope, func(o orders.Order) { out[o.Status]++ })
		return nil
	})
	return out, err
}

func (s *Store) CountCreated(ctx context.Context, scope stats.Scope, r stats.Range) (int64, error) {
	var n int64
	err := s.do(ctx, func(st *state) error {
		s.scoped(st, scope, func(o orders.Order) {
			created := o.CreatedAt
			if r.Contains(&created) {
				n++
			}
		})
		return nil
	})
	return n, err
}

func (s *Store) SumCompleted(ctx context.Context, scope stats.Scope, r stats.Range) (stats.Sums, error) {
	out := stats.Sums{PayAmount: decimal.Zero, PlatformFee: decimal.Zero, MerchantIncome: decimal.Zero}
	err := s.do(ctx, func(st *state) error {
		s.scoped(st, scope, func(o orders.Order) {
			if o.Status != orders.StatusCompleted {
				return
			}
			if (r.From != nil || r.To != nil) && !r.Contains(o.CompletedAt) {
				return
			}
			out.PayAmount = out.PayAmount.Add(o.PayAmount)
			out.PlatformFee = out.PlatformFee.Add(o.PlatformFee.Decimal)
			out.MerchantIncome = out.MerchantIncome.Add(o.MerchantIncome.Decimal)
		})
		return nil
	})
	return out, err
}
