package task

import (
	"github.com/oljefondvakt/fundwatch/internal/domain"
)

// Batch is a group of claimed investments processed together.
// Ownership passes from the claiming worker to the ResultWriter on enqueue.
type Batch struct {
	// Seq numbers batches in claim order within a run, starting at 1.
	Seq      int64
	WorkerID int
	Items    []*domain.Investment
	// Attempts is the number of generation attempts made.
	Attempts int
	// Err is the last failure when the batch was finalized as error.
	Err error
}

// Failed reports whether the batch was finalized as error.
func (b *Batch) Failed() bool {
	return b.Err != nil
}

// FailedItems counts the items finalized as error.
func (b *Batch) FailedItems() int {
	n := 0
	for _, item := range b.Items {
		if item.ShallowState == domain.ShallowError {
			n++
		}
	}
	return n
}

// IDs returns the investment IDs in batch order.
func (b *Batch) IDs() []string {
	ids := make([]string, len(b.Items))
	for i, item := range b.Items {
		ids[i] = item.ID
	}
	return ids
}
