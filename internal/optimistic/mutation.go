package optimistic

import (
	"errors"
	"fmt"
	"time"

	"github.com/jw6ventures/volunteerportal/internal/ids"
)

// Kind is the type of a pending write.
type Kind int

const (
	KindCreate Kind = iota + 1
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutation is a pending create, update or delete against a collection.
type Mutation[T Entity] struct {
	Kind Kind
	// Entity is the provisional record for creates and updates.
	Entity T
	// ID is the target of a delete.
	ID int64
}

// Upsert builds a create for unsaved entities and an update otherwise.
func Upsert[T Entity](entity T) Mutation[T] {
	kind := KindUpdate
	if entity.EntityID() <= 0 {
		kind = KindCreate
	}
	return Mutation[T]{Kind: kind, Entity: entity}
}

// Delete builds a delete of the entity with id.
func Delete[T Entity](id int64) Mutation[T] {
	return Mutation[T]{Kind: KindDelete, ID: id}
}

// TargetID is the id the mutation was submitted with.
func (m Mutation[T]) TargetID() int64 {
	if m.Kind == KindDelete {
		return m.ID
	}
	return m.Entity.EntityID()
}

// State is a pending mutation's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateOptimistic
	StateConfirmed
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimistic:
		return "optimistic"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateRolledBack
}

// ErrInvalidTransition is returned for transitions outside
// Idle -> Optimistic -> {Confirmed, RolledBack}.
var ErrInvalidTransition = errors.New("optimistic: invalid state transition")

// Pending tracks one submitted mutation. A new mutation on the same entity
// gets a fresh Pending.
type Pending[T Entity] struct {
	ID        string
	Mutation  Mutation[T]
	State     State
	StartedAt time.Time

	// patched is set when the optimistic patch reached the cache.
	patched bool
}

// NewPending starts a mutation in the Idle state.
func NewPending[T Entity](m Mutation[T]) *Pending[T] {
	return &Pending[T]{
		ID:        ids.NewMutationID(),
		Mutation:  m,
		State:     StateIdle,
		StartedAt: time.Now(),
	}
}

// Transition moves the mutation to next.
func (p *Pending[T]) Transition(next State) error {
	ok := false
	switch p.State {
	case StateIdle:
		ok = next == StateOptimistic
	case StateOptimistic:
		ok = next == StateConfirmed || next == StateRolledBack
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.State, next)
	}
	p.State = next
	return nil
}
