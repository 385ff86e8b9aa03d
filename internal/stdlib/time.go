package stdlib

import (
	"fmt"
	"time"

	"github.com/kristofer/corevm/internal/vm"
)

// RegisterTime binds the date/time primitives: nowUnix, formatUnix —
// rehomed from smog's date/time section of pkg/vm/primitives.go.
func RegisterTime(t *vm.Thread) error {
	regs := []struct {
		name string
		args uint32
		fn   func(*vm.Thread, vm.CallContextArgs)
	}{
		{"nowUnix", 0, nowUnix},
		{"formatUnix", 2, formatUnix},
	}
	for _, r := range regs {
		fn := r.fn
		if err := t.RegisterExternFunction(r.name, r.args, vm.Bridge(t, fn)); err != nil {
			return fmt.Errorf("registering %s: %w", r.name, err)
		}
	}
	return nil
}

func nowUnix(t *vm.Thread, a vm.CallContextArgs) {
	a.OkValue(vm.PushInt(time.Now().Unix()))
}

// formatUnix formats a Unix timestamp (first argument) using a Go
// reference-time layout string (second argument).
func formatUnix(t *vm.Thread, a vm.CallContextArgs) {
	if a.NumArgs() != 2 {
		a.Fail(fmt.Errorf("expected 2 arguments, got %d", a.NumArgs()))
		return
	}
	ts, err := vm.GetInt(a.Arg(0))
	if err != nil {
		a.Fail(err)
		return
	}
	layout, err := vm.GetStr(a.Arg(1))
	if err != nil {
		a.Fail(err)
		return
	}
	a.OkString(time.Unix(ts, 0).UTC().Format(layout))
}
