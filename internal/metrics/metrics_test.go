package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.BlocksIndexed.Inc()
	m.GasConsumed.Add(21000)
	m.ReorgsTotal.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected at least one registered metric family")
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "indexer_block_indexed_total" {
			found = true
			if got := f.GetMetric()[0].GetCounter().GetValue(); got != 1 {
				t.Fatalf("expected indexer_block_indexed_total=1, got %v", got)
			}
		}
	}
	if !found {
		t.Fatalf("expected indexer_block_indexed_total to be registered")
	}
}
