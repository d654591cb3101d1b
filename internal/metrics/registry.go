package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "spdm"

// Registry is the Prometheus registry every metric in this package is
// registered against. A caller embedding spdm-go in a larger process can
// swap this for its own registry before any metric is first touched.
var Registry = prometheus.NewRegistry()
