package types

import "github.com/abitmore/revpop-core/numeric"

// AccountID identifies an account. Authority/permission verification for
// the account is out of scope (external collaborator, spec.md §6); only
// the handful of fields the fee/collateral engines read are modeled here.
type AccountID string

// Sentinel accounts, matching spec.md §6's numeric constants section.
const (
	CommitteeAccount AccountID = "committee-account"
	TempAccount       AccountID = "temp-account"
	WitnessAccount    AccountID = "witness-account"
	NetworkParty      AccountID = "network"
)

// AccountStats is the subset of per-account bookkeeping the matching and
// fee engines read and update; full account state (balances, vesting
// schedules, voting) is out of scope.
type AccountStats struct {
	Account                   AccountID
	TotalCoreInOrders         *numeric.Uint
	Registrar                 AccountID
	Referrer                  AccountID
	ReferrerRewardsPercentage uint16 // bps of the referral reward paid to the referrer rather than the registrar

	// Cashback is core-denominated pending fee cashback (graphene's
	// account_statistics_object.pending_fees/pay_fee), credited whenever a
	// deferred order fee is refunded or returned to its owner rather than
	// to an asset's fee pool. Vesting of this balance into a spendable one
	// is out of scope (see AccountStats's doc comment).
	Cashback *numeric.Uint
}

func NewAccountStats(account AccountID) *AccountStats {
	return &AccountStats{
		Account:           account,
		TotalCoreInOrders: numeric.Zero(),
		Cashback:          numeric.Zero(),
	}
}

// AddCoreInOrders adjusts the core-denominated locked balance, matching
// spec.md §3's invariant that this field tracks open-order/call-order
// CORE locking exactly.
func (s *AccountStats) AddCoreInOrders(delta *numeric.Uint, negative bool) {
	if negative {
		s.TotalCoreInOrders = s.TotalCoreInOrders.Sub(delta)
		return
	}
	s.TotalCoreInOrders = s.TotalCoreInOrders.Add(delta)
}

// PayFee credits a core-denominated fee refund/cashback to the account,
// matching account_statistics_object::pay_fee with vesting collapsed
// away (no generic balance/vesting schedule is modeled here).
func (s *AccountStats) PayFee(amount *numeric.Uint) {
	if amount.IsZero() {
		return
	}
	s.Cashback = s.Cashback.Add(amount)
}

// Account is a minimal account record: enough identity and whitelist
// membership for the fee engine's whitelist_market_fee_sharing check.
type Account struct {
	ID        AccountID
	Whitelist map[AccountID]struct{} // membership sets this account belongs to, for market-fee-sharing checks
}

func NewAccount(id AccountID) *Account {
	return &Account{ID: id, Whitelist: map[AccountID]struct{}{}}
}
