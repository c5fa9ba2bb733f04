package strategy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/internal/clock"
	"github.com/nautilus-go/core/pkg/model"
)

// MakerConfig parameterizes the Avellaneda-Stoikov quoting model.
type MakerConfig struct {
	RefreshIntervalNs  int64 // how often OnTimer reruns, via the actor's clock
	Gamma              float64 // risk aversion
	Sigma              float64 // estimated volatility
	K                  float64 // order arrival intensity
	T                  float64 // time horizon
	DefaultSpreadBps   float64
	OrderNotional      decimal.Decimal // target per-side notional in settlement currency
	MaxPosition        decimal.Decimal // saturates Inventory.NetDelta
	FlowWindowNs       int64
	FlowCooldownNs     int64
	FlowToxicityThresh float64
	FlowMaxSpreadMult  float64
}

// MarketMaker runs the Avellaneda-Stoikov strategy for a single instrument:
// post a bid below and an ask above a reservation price that accounts for
// inventory risk, cancel/replace each tick against the working quotes. It
// embeds Actor for lifecycle, subscription, and order-routing plumbing and
// keeps only the quoting-specific state.
type MarketMaker struct {
	*Actor

	cfg       MakerConfig
	inst      model.Instrument
	accountID model.AccountId
	inventory *Inventory
	flow      *FlowTracker

	bidCOI *model.ClientOrderId
	askCOI *model.ClientOrderId
}

// NewMarketMaker constructs a MarketMaker quoting inst on behalf of actor.
func NewMarketMaker(actor *Actor, cfg MakerConfig, inst model.Instrument, accountID model.AccountId) *MarketMaker {
	return &MarketMaker{
		Actor:     actor,
		cfg:       cfg,
		inst:      inst,
		accountID: accountID,
		inventory: NewInventory(actor.Cache(), actor.StrategyId, inst.ID(), cfg.MaxPosition),
		flow:      NewFlowTracker(cfg.FlowWindowNs, cfg.FlowCooldownNs, cfg.FlowToxicityThresh, cfg.FlowMaxSpreadMult),
	}
}

// OnStart arms the refresh timer and subscribes to this instrument's fills.
func (m *MarketMaker) OnStart() error {
	if err := m.Start(); err != nil {
		return err
	}
	if err := m.Subscribe("events.order.filled", m.handleFilled); err != nil {
		return err
	}
	now := m.Clock().TimestampNs()
	return m.SetTimer("quote-refresh", m.cfg.RefreshIntervalNs, now, 0, func(ev clock.Event) {
		m.OnTimer(ev.TsEvent)
	})
}

// OnTimer is the per-tick quoting logic, driven by the actor's refresh timer.
func (m *MarketMaker) OnTimer(nowNs int64) {
	quote, ok := m.Cache().Quote(m.inst.ID())
	if !ok {
		m.Logger().Debug("no quote available")
		return
	}
	mid := quote.BidPrice.Decimal.Add(quote.AskPrice.Decimal).Div(decimal.NewFromInt(2))
	midF, _ := mid.Float64()

	bidPrice, askPrice, bidSize, askSize := m.computeQuotes(midF, nowNs)
	if err := m.reconcile(bidPrice, askPrice, bidSize, askSize, nowNs); err != nil {
		m.Logger().Warn("reconcile orders failed", "err", err)
	}
}

// computeQuotes implements the Avellaneda-Stoikov model:
//
//	q     = inventory skew in [-1, 1]
//	r     = mid - q * gamma * sigma^2 * T
//	delta = gamma * sigma^2 * T + (2/gamma) * ln(1 + gamma/k)
//	bid   = r - delta/2, ask = r + delta/2
//
// Toxic flow (detected by FlowTracker) widens the minimum spread and the
// computed spread by the same multiplier before either side is quoted.
func (m *MarketMaker) computeQuotes(mid float64, nowNs int64) (bid, ask, bidSize, askSize float64) {
	q := m.inventory.NetDelta()
	gamma, sigma, k, T := m.cfg.Gamma, m.cfg.Sigma, m.cfg.K, m.cfg.T
	minSpread := m.cfg.DefaultSpreadBps / 10000.0
	tick, _ := m.inst.TickSize().Float64()

	flowMultiplier := m.flow.GetSpreadMultiplier(nowNs)
	minSpread *= flowMultiplier

	reservation := mid - q*gamma*sigma*sigma*T
	optSpread := gamma*sigma*sigma*T + (2.0/gamma)*math.Log(1+gamma/k)
	optSpread *= flowMultiplier

	bidRaw := reservation - optSpread/2
	askRaw := reservation + optSpread/2
	if (askRaw - bidRaw) < minSpread {
		bidRaw = reservation - minSpread/2
		askRaw = reservation + minSpread/2
	}
	if bidRaw >= askRaw {
		bidRaw = askRaw - tick
	}

	absQ := math.Abs(q)
	sizeFactor := 1.0 - 0.5*absQ
	notional, _ := m.cfg.OrderNotional.Float64()
	baseSize := notional / mid
	bidSize = baseSize * sizeFactor
	askSize = baseSize * sizeFactor

	return bidRaw, askRaw, bidSize, askSize
}

// reconcile cancels each side's working order and places a fresh one at
// the desired quote — rather than a within-tolerance keep-if-close check,
// every tick fully replaces both sides, since the ExecutionEngine's own
// cancel/submit round trip here is cheap relative to a live exchange's
// rate limits.
func (m *MarketMaker) reconcile(bidPx, askPx, bidSize, askSize float64, tsEvent int64) error {
	if err := m.replaceSide(model.SideBuy, &m.bidCOI, bidPx, bidSize, tsEvent); err != nil {
		return fmt.Errorf("replace bid: %w", err)
	}
	if err := m.replaceSide(model.SideSell, &m.askCOI, askPx, askSize, tsEvent); err != nil {
		return fmt.Errorf("replace ask: %w", err)
	}
	return nil
}

func (m *MarketMaker) replaceSide(side model.Side, coi **model.ClientOrderId, price, size float64, tsEvent int64) error {
	if *coi != nil {
		if err := m.CancelOrder(**coi); err != nil {
			m.Logger().Warn("cancel working order failed", "client_order_id", *coi, "err", err)
		}
		*coi = nil
	}
	if size <= 0 || price <= 0 {
		return nil
	}

	px := m.inst.MakePrice(decimal.NewFromFloat(price))
	qty, err := m.inst.MakeQty(decimal.NewFromFloat(size))
	if err != nil {
		return err
	}

	order := &model.Order{
		InstrumentId: m.inst.ID(),
		Side:         side,
		Type:         model.OrderTypeLimit,
		Quantity:     qty,
		Price:        &px,
		Status:       model.OrderStatusInitialized,
	}
	if err := m.SubmitOrder(order, m.accountID, tsEvent); err != nil {
		return err
	}
	*coi = &order.ClientOrderId
	return nil
}

// handleFilled feeds fills into the flow tracker for toxicity detection.
func (m *MarketMaker) handleFilled(_ string, data any) {
	ev, ok := data.(model.OrderFilled)
	if !ok || ev.InstrumentId != m.inst.ID() {
		return
	}
	m.flow.AddFill(ev.Fill, ev.TsEvent)
	if ev.Fill.ClientOrderId == derefOrZero(m.bidCOI) {
		m.bidCOI = nil
	}
	if ev.Fill.ClientOrderId == derefOrZero(m.askCOI) {
		m.askCOI = nil
	}
}

func derefOrZero(coi *model.ClientOrderId) model.ClientOrderId {
	if coi == nil {
		return model.ClientOrderId{}
	}
	return *coi
}
