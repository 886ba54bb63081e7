// Package task runs the shallow report pipeline: a fixed pool of workers
// claims pending investments in batches through a Coordinator, asks the
// report generator for one report per item, and hands every finalized batch
// to a single ResultWriter through a ResultQueue.
//
// The Coordinator is the only code that moves items from pending to
// in_progress and the only owner of the run quota. Claimed items always reach
// done or error exactly once and are persisted by the writer, even when the
// run is cancelled while their batch is in flight.
package task
