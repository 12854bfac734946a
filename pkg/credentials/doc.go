// Package credentials manages the renewable upstream credentials of
// session-authenticated backends.
//
// A Pool holds an active set of credentials with observed balances and an
// append-only blocked set of spent or rejected codes. Adapters call
// GetValid before an authenticated upstream call and must report the
// outcome afterwards (ReportBalance or ReportAuthFailure); this feedback
// loop is what drives eviction. When no active credential clears the
// minimum-balance threshold the pool synchronously drives the external
// login flow through its Minter, serialized so a burst of concurrent
// callers triggers exactly one mint.
//
// Pool state survives restarts through a Store: a JSON file rewritten
// atomically on every mutation (FileStore) or a single-row SQLite
// snapshot (SQLiteStore). A missing or corrupt store record means an
// empty pool, never a startup failure.
//
// A Refresher can re-query balances on a cron schedule so credentials
// drained outside this process are evicted too.
package credentials
