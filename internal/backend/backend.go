// Package backend provides the adapter for each supported inference
// framework. Backend selection is a closed dispatch table keyed by
// framework name; every adapter implements the same setup/invoke contract
// so the runner measures them identically.
package backend

import (
	"sort"

	"github.com/23skdu/longbow-gauge/internal/bench"
)

// Framework names accepted on the command line.
const (
	NameNative               = "native-engine"
	NameEager                = "eager-mode"
	NameTraced               = "traced-graph"
	NameInterchangeCPU       = "interchange-cpu"
	NameInterchangeOptimized = "interchange-optimized-cpu"
)

// DefaultFramework is used when no framework is requested.
const DefaultFramework = NameNative

// Registry returns the adapter dispatch table.
func Registry() map[string]bench.Adapter {
	return map[string]bench.Adapter{
		NameNative:               &NativeAdapter{},
		NameEager:                &EagerAdapter{},
		NameTraced:               &TracedAdapter{},
		NameInterchangeCPU:       NewInterchangeAdapter("cpu"),
		NameInterchangeOptimized: NewInterchangeAdapter("optimized-cpu"),
	}
}

// Names returns the known framework names, sorted.
func Names() []string {
	reg := Registry()
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// invokeFunc adapts a closure to the bench.Handle interface.
type invokeFunc func() error

func (f invokeFunc) Invoke() error {
	return f()
}
