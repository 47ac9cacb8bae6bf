package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus/collectors"
)

var runtimeOnce sync.Once //nolint:gochecknoglobals // guards collector registration

// RegisterRuntimeCollectors adds the Go runtime and process collectors to
// the custom registry. Only the long-running service calls it; batch jobs
// keep the registry free of runtime series. Safe to call more than once.
func RegisterRuntimeCollectors() {
	runtimeOnce.Do(func() {
		customRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: "huecast"}),
		)
	})
}
