package risk

import (
	"log/slog"
	"sync"

	"github.com/nautilus-go/core/pkg/model"
)

// KillSwitch blocks new order submissions for an account for a cooldown
// period after it trips, independent of the seven stateless per-order
// checks Engine.Check runs. It is driven by bus events — typically
// "events.account.liquidated" — rather than polled, so a breach takes
// effect on the very next Check call.
type KillSwitch struct {
	mu         sync.Mutex
	cooldownNs int64
	untilNs    map[model.AccountId]int64
	reason     map[model.AccountId]string
	logger     *slog.Logger
}

// NewKillSwitch constructs a KillSwitch with the given cooldown window. A
// zero cooldownNs disables the cooldown: Trip still engages the switch but
// Active clears it again on the very next check.
func NewKillSwitch(cooldownNs int64, logger *slog.Logger) *KillSwitch {
	if logger == nil {
		logger = slog.Default()
	}
	return &KillSwitch{
		cooldownNs: cooldownNs,
		untilNs:    make(map[model.AccountId]int64),
		reason:     make(map[model.AccountId]string),
		logger:     logger.With("component", "risk.killswitch"),
	}
}

// Trip engages the kill switch for accountID until tsEvent+cooldownNs.
func (k *KillSwitch) Trip(accountID model.AccountId, reason string, tsEvent int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.untilNs[accountID] = tsEvent + k.cooldownNs
	k.reason[accountID] = reason
	k.logger.Error("kill switch engaged", "account_id", accountID, "reason", reason, "cooldown_until_ns", k.untilNs[accountID])
}

// Active reports whether accountID's kill switch is still in its cooldown
// window at tsEvent, and the reason it was tripped.
func (k *KillSwitch) Active(accountID model.AccountId, tsEvent int64) (bool, string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	until, ok := k.untilNs[accountID]
	if !ok || tsEvent >= until {
		return false, ""
	}
	return true, k.reason[accountID]
}

// TripOnLiquidation subscribes to the bus and trips the kill switch for
// whatever account an AccountLiquidated event names. Intended to be wired
// once at kernel construction time via bus.Subscribe.
func (k *KillSwitch) TripOnLiquidation(_ string, data any) {
	ev, ok := data.(model.AccountLiquidated)
	if !ok {
		return
	}
	k.Trip(ev.AccountId, "account liquidated", ev.TsEvent)
}
