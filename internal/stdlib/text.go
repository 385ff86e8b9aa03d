package stdlib

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"

	"github.com/kristofer/corevm/internal/vm"
)

// RegisterText binds the JSON/regex/bignum primitives: jsonValid,
// jsonCompact, regexMatch, bigIntAdd — rehomed from smog's JSON/regex/bignum sections
// of pkg/vm/primitives.go. JSON objects are not unpacked into VM Data
// records here (the VM's Data is strictly positional, spec 3 — it has no
// field-name metadata); jsonValid/jsonCompact operate over the JSON text
// itself, leaving structural decoding to source-language code built atop
// these primitives.
func RegisterText(t *vm.Thread) error {
	regs := []struct {
		name string
		args uint32
		fn   func(*vm.Thread, vm.CallContextArgs)
	}{
		{"jsonValid", 1, jsonValid},
		{"jsonCompact", 1, jsonCompact},
		{"regexMatch", 2, regexMatch},
		{"bigIntAdd", 2, bigIntAdd},
	}
	for _, r := range regs {
		fn := r.fn
		if err := t.RegisterExternFunction(r.name, r.args, vm.Bridge(t, fn)); err != nil {
			return fmt.Errorf("registering %s: %w", r.name, err)
		}
	}
	return nil
}

func jsonValid(t *vm.Thread, a vm.CallContextArgs) {
	s, err := a.OneString()
	if err != nil {
		a.Fail(err)
		return
	}
	a.OkBool(json.Valid([]byte(s)))
}

func jsonCompact(t *vm.Thread, a vm.CallContextArgs) {
	s, err := a.OneString()
	if err != nil {
		a.Fail(err)
		return
	}
	var buf interface{}
	if err := json.Unmarshal([]byte(s), &buf); err != nil {
		a.Fail(fmt.Errorf("invalid JSON: %w", err))
		return
	}
	out, err := json.Marshal(buf)
	if err != nil {
		a.Fail(fmt.Errorf("re-encoding JSON failed: %w", err))
		return
	}
	a.OkString(string(out))
}

func regexMatch(t *vm.Thread, a vm.CallContextArgs) {
	pattern, s, err := a.TwoStrings()
	if err != nil {
		a.Fail(err)
		return
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		a.Fail(fmt.Errorf("invalid regex: %w", err))
		return
	}
	a.OkBool(re.MatchString(s))
}

// bigIntAdd adds two decimal-string-encoded arbitrary-precision integers
// and returns the decimal-string result, the same text-in/text-out
// convention smog's bignum primitives use for values outside int64 range.
func bigIntAdd(t *vm.Thread, a vm.CallContextArgs) {
	xs, ys, err := a.TwoStrings()
	if err != nil {
		a.Fail(err)
		return
	}
	x, ok := new(big.Int).SetString(xs, 10)
	if !ok {
		a.Fail(fmt.Errorf("invalid big integer literal: %q", xs))
		return
	}
	y, ok := new(big.Int).SetString(ys, 10)
	if !ok {
		a.Fail(fmt.Errorf("invalid big integer literal: %q", ys))
		return
	}
	a.OkString(new(big.Int).Add(x, y).String())
}
