// Package models defines the core domain records for the tontine engine.
//
// # Records
//
//   - Association: a rotating savings group (tontine) with a fixed
//     contribution amount and payout frequency
//   - Payout: the scheduled disbursement ("tour") to one beneficiary per
//     cycle position
//   - Contribution: a member's payment toward a specific payout; the source
//     of truth for money entering the system
//   - Ledger / Transaction: the per-association append-only money-flow log
//     and its derived balance aggregates
//   - RecurringObligation / ObligationPayment: periodic dues (solidarity,
//     membership card) tracked against monthly/quarterly/annual targets
//
// # Design principles
//
// 1. **Derived values are rebuildable**: Payout.AmountReceived and every
// Ledger aggregate can be recomputed from Contributions and Payouts at any
// time; they are projections, never authoritative.
//
// 2. **Transactions are immutable**: corrections go through reconciliation,
// never through edits to past entries.
//
// 3. **ID strings, not pointers**: records reference each other by ID to
// avoid circular references, matching how they are persisted.
package models
