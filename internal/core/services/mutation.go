package services

import "github.com/custodia-labs/mirae/internal/core/domain"

// Mutation tracks one optimistic write from its local apply until the
// remote call resolves.
type Mutation struct {
	op    domain.MutationOp
	kind  domain.EntityKind
	id    string
	state domain.MutationState
	err   error

	callbacks []func(*Mutation)
}

func newMutation(op domain.MutationOp, kind domain.EntityKind, id string) *Mutation {
	return &Mutation{op: op, kind: kind, id: id, state: domain.MutationOptimistic}
}

// Op returns the mutation operation.
func (m *Mutation) Op() domain.MutationOp { return m.op }

// Kind returns the kind of entity being mutated.
func (m *Mutation) Kind() domain.EntityKind { return m.kind }

// ID returns the entity id. For creates it becomes the durable id on commit.
func (m *Mutation) ID() string { return m.id }

// State returns the current state.
func (m *Mutation) State() domain.MutationState { return m.state }

// Err returns the remote error for reverted or warned mutations.
func (m *Mutation) Err() error { return m.err }

// Done returns true once the remote call has resolved.
func (m *Mutation) Done() bool { return m.state.IsSettled() }

// OnSettled registers fn to run when the mutation settles.
// If it already has, fn runs immediately.
func (m *Mutation) OnSettled(fn func(*Mutation)) {
	if m.Done() {
		fn(m)
		return
	}
	m.callbacks = append(m.callbacks, fn)
}

func (m *Mutation) settle(state domain.MutationState, err error) {
	if m.Done() {
		return
	}
	m.state = state
	m.err = err
	callbacks := m.callbacks
	m.callbacks = nil
	for _, fn := range callbacks {
		fn(m)
	}
}

func settledMutation(op domain.MutationOp, kind domain.EntityKind, id string) *Mutation {
	m := newMutation(op, kind, id)
	m.state = domain.MutationCommitted
	return m
}
