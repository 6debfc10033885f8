// Package optimistic applies pending writes to cached collections before the
// server confirms them, and reconciles or rolls back once it answers.
package optimistic

// Entity is anything with a stable id. Unsaved entities carry a sentinel id
// (portal.SentinelID).
type Entity interface {
	EntityID() int64
}

// ApplyCreateOrUpdate replaces the entry sharing item's id in place, or
// appends item when there is none. The input slice is left untouched.
func ApplyCreateOrUpdate[T Entity](collection []T, item T) []T {
	out := make([]T, 0, len(collection)+1)
	replaced := false
	for _, existing := range collection {
		if existing.EntityID() != item.EntityID() {
			out = append(out, existing)
			continue
		}
		if !replaced {
			out = append(out, item)
			replaced = true
		}
	}
	if !replaced {
		out = append(out, item)
	}
	return out
}

// ApplyDelete removes the entry with id. An absent id leaves the contents
// unchanged.
func ApplyDelete[T Entity](collection []T, id int64) []T {
	out := make([]T, 0, len(collection))
	for _, existing := range collection {
		if existing.EntityID() != id {
			out = append(out, existing)
		}
	}
	return out
}

// Apply patches collection with m.
func Apply[T Entity](collection []T, m Mutation[T]) []T {
	if m.Kind == KindDelete {
		return ApplyDelete(collection, m.ID)
	}
	return ApplyCreateOrUpdate(collection, m.Entity)
}

// Outcome is the server's answer to a mutation.
type Outcome[T Entity] struct {
	// Entity is the confirmed record for creates and updates.
	Entity T
	Err    error
}

// Reconcile settles a patched collection against the server's answer.
//
// On failure it returns a copy of snapshot, the pre-patch state. On success
// the confirmed entity takes the placeholder's position, matched by the id the
// mutation was submitted with, so a create swaps the sentinel for the real id.
func Reconcile[T Entity](snapshot, patched []T, m Mutation[T], out Outcome[T]) []T {
	if out.Err != nil {
		return clone(snapshot)
	}
	if m.Kind == KindDelete {
		return ApplyDelete(patched, m.ID)
	}

	confirmed := out.Entity
	placeholder := m.TargetID()
	result := make([]T, 0, len(patched)+1)
	placed := false
	for _, existing := range patched {
		id := existing.EntityID()
		switch {
		case id == placeholder && !placed:
			result = append(result, confirmed)
			placed = true
		case id == placeholder, id == confirmed.EntityID():
			// a refetch may already hold the confirmed id; keep a single entry
			if !placed && id == confirmed.EntityID() {
				result = append(result, confirmed)
				placed = true
			}
		default:
			result = append(result, existing)
		}
	}
	if !placed {
		result = append(result, confirmed)
	}
	return result
}

func clone[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
