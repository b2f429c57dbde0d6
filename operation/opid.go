// Package operation tracks the commands a rover is executing and keeps motions exclusive.
package operation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type opidKeyType string

const opidKey = opidKeyType("opid")

// Operation is one dispatched rover command, such as a forward drive or a scan.
type Operation struct {
	ID      uuid.UUID
	Command string
	Started time.Time

	cancel context.CancelFunc
}

// Cancel cancels the context associated with the operation.
func (o *Operation) Cancel() {
	o.cancel()
}

func (o *Operation) cleanup() {
	theGlobal.remove(o.ID)
}

var theGlobal = &global{ops: map[uuid.UUID]*Operation{}}

type global struct {
	ops  map[uuid.UUID]*Operation
	lock sync.Mutex
}

func (g *global) remove(id uuid.UUID) {
	g.lock.Lock()
	defer g.lock.Unlock()
	delete(g.ops, id)
}

func (g *global) add(op *Operation) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.ops[op.ID] = op
}

func (g *global) all() []*Operation {
	g.lock.Lock()
	defer g.lock.Unlock()
	a := make([]*Operation, 0, len(g.ops))
	for _, o := range g.ops {
		a = append(a, o)
	}
	return a
}

func (g *global) find(id uuid.UUID) *Operation {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.ops[id]
}

// CurrentOps returns all of the currently running operations.
func CurrentOps() []*Operation {
	return theGlobal.all()
}

// FindOp finds an op by id, could return nil.
func FindOp(id uuid.UUID) *Operation {
	return theGlobal.find(id)
}

// Create puts a new operation for command on this context. The returned func removes it from
// the registry.
func Create(ctx context.Context, command string) (context.Context, func()) {
	if ctx.Value(opidKey) != nil {
		panic("operations cannot be nested")
	}

	op := &Operation{
		ID:      uuid.New(),
		Command: command,
		Started: time.Now(),
	}
	ctx = context.WithValue(ctx, opidKey, op)
	ctx, op.cancel = context.WithCancel(ctx)

	theGlobal.add(op)

	return ctx, func() {
		op.cleanup()
		op.cancel()
	}
}

// Get returns the current Operation. This can be nil.
func Get(ctx context.Context) *Operation {
	o := ctx.Value(opidKey)
	if o == nil {
		return nil
	}
	return o.(*Operation)
}
