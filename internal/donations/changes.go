package donations

import "context"

// RecordChangeSet aggregates records added to and ids removed from a file.
type RecordChangeSet struct {
	Upserts   []Record
	Deletions []int
}

// Merge combines a later change set into the receiver. A later change to an
// id supersedes an earlier one: a deletion drops earlier upserts of that id
// and an upsert drops earlier deletions of it.
func (c *RecordChangeSet) Merge(other RecordChangeSet) {
	if other.IsEmpty() {
		return
	}

	touched := make(map[int]struct{}, len(other.Upserts)+len(other.Deletions))
	for _, rec := range other.Upserts {
		touched[rec.ID] = struct{}{}
	}
	for _, id := range other.Deletions {
		touched[id] = struct{}{}
	}

	upserts := make([]Record, 0, len(c.Upserts)+len(other.Upserts))
	for _, rec := range c.Upserts {
		if _, ok := touched[rec.ID]; !ok {
			upserts = append(upserts, rec)
		}
	}
	deletions := make([]int, 0, len(c.Deletions)+len(other.Deletions))
	for _, id := range c.Deletions {
		if _, ok := touched[id]; !ok {
			deletions = append(deletions, id)
		}
	}

	c.Upserts = append(upserts, other.Upserts...)
	c.Deletions = append(deletions, other.Deletions...)
}

// IsEmpty reports whether there are no recorded changes.
func (c RecordChangeSet) IsEmpty() bool {
	return len(c.Upserts) == 0 && len(c.Deletions) == 0
}

// RecordSyncTarget consumes record change notifications.
type RecordSyncTarget interface {
	ApplyRecordChanges(ctx context.Context, changes RecordChangeSet) error
}
