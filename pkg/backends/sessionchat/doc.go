// Package sessionchat adapts upstream chat services that authenticate
// with renewable, balance-carrying auth codes rather than static API
// keys. It is the reference consumer of the credential pool: GetValid
// before every authenticated call, ReportBalance or ReportAuthFailure
// after, one retry with a fresh credential on rejection. It also
// implements credentials.BalanceChecker for the pool's periodic balance
// refresher.
package sessionchat
