// Package scripting embeds a JavaScript engine for user-supplied detection
// rules. Scripts run with a context deadline enforced via interpreter
// interrupts.
package scripting

import (
	"context"

	"github.com/dop251/goja"
)

// Engine executes scripts against values the host has bound into the global
// scope.
type Engine interface {
	Execute(ctx context.Context, script string) (interface{}, error)
	Set(name string, value interface{}) error
}

type gojaEngine struct {
	vm *goja.Runtime
}

// NewEngine returns a fresh JavaScript engine. Engines are not safe for
// concurrent use; create one per rule evaluation.
func NewEngine() Engine {
	return &gojaEngine{vm: goja.New()}
}

func (e *gojaEngine) Set(name string, value interface{}) error {
	return e.vm.Set(name, value)
}

func (e *gojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interrupted, ok := err.(*goja.InterruptedError); ok {
			if cause := interrupted.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val.Export(), nil
}
