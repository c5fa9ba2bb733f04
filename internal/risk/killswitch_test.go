package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nautilus-go/core/pkg/model"
)

func TestKillSwitchTripsAndClearsAfterCooldown(t *testing.T) {
	t.Parallel()

	acctID, err := model.NewAccountId("acct-1")
	require.NoError(t, err)

	ks := NewKillSwitch(1000, nil)
	active, _ := ks.Active(acctID, 0)
	assert.False(t, active, "untripped kill switch is not active")

	ks.Trip(acctID, "account liquidated", 500)

	active, reason := ks.Active(acctID, 500)
	assert.True(t, active)
	assert.Equal(t, "account liquidated", reason)

	active, _ = ks.Active(acctID, 1499)
	assert.True(t, active, "still within the cooldown window")

	active, _ = ks.Active(acctID, 1500)
	assert.False(t, active, "cooldown has elapsed")
}

func TestKillSwitchIsolatesAccounts(t *testing.T) {
	t.Parallel()

	acctA, err := model.NewAccountId("acct-a")
	require.NoError(t, err)
	acctB, err := model.NewAccountId("acct-b")
	require.NoError(t, err)

	ks := NewKillSwitch(1000, nil)
	ks.Trip(acctA, "breach", 0)

	activeA, _ := ks.Active(acctA, 0)
	activeB, _ := ks.Active(acctB, 0)
	assert.True(t, activeA)
	assert.False(t, activeB)
}

func TestKillSwitchTripOnLiquidationIgnoresOtherEventTypes(t *testing.T) {
	t.Parallel()

	acctID, err := model.NewAccountId("acct-1")
	require.NoError(t, err)

	ks := NewKillSwitch(1000, nil)
	ks.TripOnLiquidation("events.order.filled", "not a liquidation event")
	active, _ := ks.Active(acctID, 0)
	assert.False(t, active)

	ks.TripOnLiquidation("events.account.liquidated", model.AccountLiquidated{
		AccountId: acctID,
		TsEvent:   100,
	})
	active, reason := ks.Active(acctID, 100)
	assert.True(t, active)
	assert.Equal(t, "account liquidated", reason)
}

func TestEngineCheckDeniesOrdersWhileKillSwitchActive(t *testing.T) {
	t.Parallel()

	e, inst, c := testEngine(t)
	acctID, err := model.NewAccountId("acct-1")
	require.NoError(t, err)
	c.PutAccount(&model.Account{AccountId: acctID, Type: model.AccountTypeCash, Balances: map[string]model.Balance{}})

	e.killSwitch.Trip(acctID, "account liquidated", 0)

	order := testOrder(t, inst, "1", strPtr("100.00"), model.SideBuy)
	denied := e.Check(order, acctID, 50)
	require.NotNil(t, denied)
	assert.Equal(t, model.DeniedKillSwitchActive, denied.Reason)
}

func TestEngineCheckAllowsOrdersAfterKillSwitchCooldown(t *testing.T) {
	t.Parallel()

	e, inst, c := testEngine(t)
	acctID, err := model.NewAccountId("acct-1")
	require.NoError(t, err)
	c.PutAccount(&model.Account{AccountId: acctID, Type: model.AccountTypeCash, Balances: map[string]model.Balance{}})

	e.killSwitch.Trip(acctID, "account liquidated", 0)

	order := testOrder(t, inst, "1", nil, model.SideSell)
	denied := e.Check(order, acctID, e.killSwitch.cooldownNs+1)
	assert.Nil(t, denied)
}
