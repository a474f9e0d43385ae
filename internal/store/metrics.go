package store

import "github.com/prometheus/client_golang/prometheus"

var commitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "topoctl_store_commits_total",
		Help: "Total number of store commits by partition, operation and result.",
	},
	[]string{"partition", "op", "result"},
)

var conflictsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "topoctl_store_conflicts_total",
		Help: "Total number of commit attempts that lost an optimistic concurrency check.",
	},
	[]string{"partition"},
)

func init() {
	prometheus.MustRegister(commitsTotal, conflictsTotal)
}
