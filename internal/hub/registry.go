package hub

import "sync"

// registry holds the process-wide Hub singleton, which must survive
// developer-time hot reloads without duplication. Per §9's design note, this
// is an explicit, idempotently initialized registry rather than a
// package-level var each reload would re-declare. The composition executor
// and tool executor are not held here.
var registry struct {
	once sync.Once
	hub  *Hub
}

// Singleton returns the process-wide Hub, constructing it on first call
// with build and leaving it untouched on every subsequent call — including
// across a hot reload that re-executes package init but shares this
// process's memory.
func Singleton(build func() *Hub) *Hub {
	registry.once.Do(func() {
		registry.hub = build()
	})
	return registry.hub
}
