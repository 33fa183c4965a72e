// Package folio is the portfolio ledger engine behind a natural-language command agent.
//
// It defines the portfolio model (assets, stock subtypes, tax lots, RSU grants and tickers),
// the ledger primitives computed from it (market value, cost basis, unrealized gain and
// capital-gains classification), the RSU grant reconciliation heuristic, and the error
// taxonomy shared by the write paths:
//   - ValidationError: malformed input, rejected before any store access.
//   - NotFoundError: nothing matches a ticker, asset or lot.
//   - AmbiguityError: several plausible matches; the candidates are listed, never auto-picked.
//   - InsufficientSharesError: a sale asks for more shares than a lot date holds.
//   - ServiceError: the reasoning service or the store is unreachable.
//
// Sibling packages build on it: analytics and simulate are pure read computations over a
// Snapshot, store persists it, mutation prepares and applies confirmed writes, and agent
// runs the bounded conversation loop that ties everything to a reasoning service.
package folio
