package metrics

import "github.com/prometheus/client_golang/prometheus"

// MustRegister registers each collector with the default registry. A collector
// that collides with an earlier registration replaces it; any other error panics.
func MustRegister(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := prometheus.Register(c); err != nil {
			if !prometheus.Unregister(c) {
				panic(err)
			}
			prometheus.MustRegister(c)
		}
	}
}
