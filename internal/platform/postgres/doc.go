// Package postgres provides the PostgreSQL implementation of
// store.InvestmentStore on database/sql with the pgx driver, and the
// embedded goose migrations that create its schema.
//
// Unlike the in-process stores, it implements store.PendingClaimer: claims
// are a single UPDATE over rows selected FOR UPDATE SKIP LOCKED, so
// concurrent runs against one database never share an investment.
package postgres
