// Package redis provides a store.InvestmentStore on Redis.
//
// Each investment is a JSON document under "<prefix>:inv:<id>". A sorted
// set of all IDs and one sorted set per shallow state, all with score 0,
// keep ID order and make pending lookups cheap. Writes update documents and
// indexes in one MULTI/EXEC; claims use WATCH on the pending index so that
// concurrent processes never claim the same investment.
package redis
