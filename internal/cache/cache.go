// Package cache is the kernel's single in-memory index of instruments,
// orders, positions, accounts, order books, and recent bars/ticks. It
// sits between the MessageBus and the DataEngine in the
// market-data flow and between ExecutionEngine/Portfolio and the strategy
// layer in the order flow. Like the message bus, a Cache is mutated only
// from the kernel's single event-loop thread — there is no
// internal locking.
package cache

import (
	"fmt"

	"github.com/nautilus-go/core/pkg/model"
)

const defaultRecentCapacity = 1000

// Cache is the kernel's in-memory state index.
type Cache struct {
	instruments map[model.InstrumentId]model.Instrument
	ordersByCOI map[model.ClientOrderId]*model.Order
	ordersByVOI map[model.VenueOrderId]model.ClientOrderId
	positions   *model.PositionBook
	accounts    map[model.AccountId]*model.Account
	books       map[model.InstrumentId]*Book
	quotes      map[model.InstrumentId]model.QuoteTick
	trades      map[model.InstrumentId][]model.TradeTick
	bars        map[model.BarType][]model.Bar

	recentCapacity int
}

// New constructs an empty Cache. oms governs the PositionBook's NETTING vs
// HEDGING collapse behavior.
func New(oms model.OmsType) *Cache {
	return &Cache{
		instruments:    make(map[model.InstrumentId]model.Instrument),
		ordersByCOI:    make(map[model.ClientOrderId]*model.Order),
		ordersByVOI:    make(map[model.VenueOrderId]model.ClientOrderId),
		positions:      model.NewPositionBook(oms),
		accounts:       make(map[model.AccountId]*model.Account),
		books:          make(map[model.InstrumentId]*Book),
		quotes:         make(map[model.InstrumentId]model.QuoteTick),
		trades:         make(map[model.InstrumentId][]model.TradeTick),
		bars:           make(map[model.BarType][]model.Bar),
		recentCapacity: defaultRecentCapacity,
	}
}

// AddInstrument indexes inst by its InstrumentId, replacing any prior entry.
func (c *Cache) AddInstrument(inst model.Instrument) {
	c.instruments[inst.ID()] = inst
}

// Instrument looks up an instrument by id.
func (c *Cache) Instrument(id model.InstrumentId) (model.Instrument, error) {
	inst, ok := c.instruments[id]
	if !ok {
		return nil, fmt.Errorf("instrument %s: %w", id, model.ErrInstrumentNotFound)
	}
	return inst, nil
}

// Instruments returns every indexed instrument in unspecified order.
func (c *Cache) Instruments() []model.Instrument {
	out := make([]model.Instrument, 0, len(c.instruments))
	for _, inst := range c.instruments {
		out = append(out, inst)
	}
	return out
}

// AddOrder indexes an order by its ClientOrderId, the identifier assigned
// at submission and never reused.
func (c *Cache) AddOrder(o *model.Order) error {
	if _, exists := c.ordersByCOI[o.ClientOrderId]; exists {
		return fmt.Errorf("order %s: %w", o.ClientOrderId, model.ErrDuplicateClientOrderId)
	}
	c.ordersByCOI[o.ClientOrderId] = o
	return nil
}

// Order looks up an order by its client-assigned id.
func (c *Cache) Order(id model.ClientOrderId) (*model.Order, error) {
	o, ok := c.ordersByCOI[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, model.ErrOrderNotFound)
	}
	return o, nil
}

// LinkVenueOrderId records the venue-assigned id for a previously-added
// order, so a later venue report can be resolved back to its client id
// during reconciliation.
func (c *Cache) LinkVenueOrderId(voi model.VenueOrderId, coi model.ClientOrderId) {
	c.ordersByVOI[voi] = coi
}

// OrderByVenueId resolves a venue-assigned order id back to the order, via
// the link recorded by LinkVenueOrderId.
func (c *Cache) OrderByVenueId(voi model.VenueOrderId) (*model.Order, error) {
	coi, ok := c.ordersByVOI[voi]
	if !ok {
		return nil, fmt.Errorf("venue order %s: %w", voi, model.ErrOrderNotFound)
	}
	return c.Order(coi)
}

// Orders returns every indexed order in unspecified order.
func (c *Cache) Orders() []*model.Order {
	out := make([]*model.Order, 0, len(c.ordersByCOI))
	for _, o := range c.ordersByCOI {
		out = append(out, o)
	}
	return out
}

// Positions returns the position book backing this cache.
func (c *Cache) Positions() *model.PositionBook {
	return c.positions
}

// AddAccount indexes acct by its AccountId, replacing any prior entry.
func (c *Cache) AddAccount(acct *model.Account) {
	c.accounts[acct.AccountId] = acct
}

// Account looks up an account by id.
func (c *Cache) Account(id model.AccountId) (*model.Account, error) {
	acct, ok := c.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, model.ErrAccountNotFound)
	}
	return acct, nil
}

// Book returns the order book for an instrument, creating an empty one on
// first access ("a single authoritative book is kept").
func (c *Cache) Book(id model.InstrumentId) *Book {
	b, ok := c.books[id]
	if !ok {
		b = NewBook(id)
		c.books[id] = b
	}
	return b
}

// UpdateQuote records the latest top-of-book quote for an instrument.
func (c *Cache) UpdateQuote(q model.QuoteTick) {
	c.quotes[q.InstrumentId] = q
}

// Quote returns the latest recorded quote for an instrument, if any.
func (c *Cache) Quote(id model.InstrumentId) (model.QuoteTick, bool) {
	q, ok := c.quotes[id]
	return q, ok
}

// AddTrade appends a trade print to the bounded recent-trades window for
// its instrument, evicting the oldest entry once recentCapacity is reached.
func (c *Cache) AddTrade(t model.TradeTick) {
	trades := append(c.trades[t.InstrumentId], t)
	if len(trades) > c.recentCapacity {
		trades = trades[len(trades)-c.recentCapacity:]
	}
	c.trades[t.InstrumentId] = trades
}

// Trades returns the bounded recent-trades window for an instrument, oldest
// first.
func (c *Cache) Trades(id model.InstrumentId) []model.TradeTick {
	return c.trades[id]
}

// AddBar appends a closed bar to the bounded recent-bars window for its
// BarType, evicting the oldest entry once recentCapacity is reached.
func (c *Cache) AddBar(b model.Bar) {
	bars := append(c.bars[b.Type], b)
	if len(bars) > c.recentCapacity {
		bars = bars[len(bars)-c.recentCapacity:]
	}
	c.bars[b.Type] = bars
}

// Bars returns the bounded recent-bars window for a BarType, oldest first.
func (c *Cache) Bars(t model.BarType) []model.Bar {
	return c.bars[t]
}
