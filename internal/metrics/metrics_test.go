package metrics

import (
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"goflare.io/gridiron/internal/models"
)

func gather(t *testing.T, c *Collector) map[string][]*dto.Metric {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	out := make(map[string][]*dto.Metric, len(families))
	for _, f := range families {
		out[f.GetName()] = f.GetMetric()
	}
	return out
}

func label(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestCacheLookups(t *testing.T) {
	c := NewCollector()
	c.CacheHit("teamstats")
	c.CacheHit("teamstats")
	c.CacheMiss("teamstats")

	got := map[string]float64{}
	for _, m := range gather(t, c)["gridiron_cache_lookups_total"] {
		got[label(m, "outcome")] = m.GetCounter().GetValue()
	}
	if got["hit"] != 2 || got["miss"] != 1 {
		t.Errorf("lookups = %v, want hit=2 miss=1", got)
	}
}

func TestObserveUpstream(t *testing.T) {
	c := NewCollector()
	c.ObserveUpstream("schedule", 200, 30*time.Millisecond, nil)
	c.ObserveUpstream("schedule", 0, time.Second, errors.New("dial tcp: refused"))

	statuses := map[string]float64{}
	for _, m := range gather(t, c)["gridiron_upstream_requests_total"] {
		statuses[label(m, "status")] = m.GetCounter().GetValue()
	}
	if statuses["200"] != 1 || statuses["error"] != 1 {
		t.Errorf("statuses = %v", statuses)
	}

	hist := gather(t, c)["gridiron_upstream_request_duration_seconds"]
	if len(hist) != 1 || hist[0].GetHistogram().GetSampleCount() != 2 {
		t.Errorf("latency histogram = %v", hist)
	}
}

func TestObservePrediction(t *testing.T) {
	c := NewCollector()
	c.ObservePrediction(false)
	c.ObservePrediction(true)
	c.ObservePrediction(true)

	kinds := map[string]float64{}
	for _, m := range gather(t, c)["gridiron_predictions_total"] {
		kinds[label(m, "kind")] = m.GetCounter().GetValue()
	}
	if kinds["computed"] != 1 || kinds["neutral"] != 2 {
		t.Errorf("predictions = %v", kinds)
	}
}

func TestRegisterCache(t *testing.T) {
	c := NewCollector()
	snap := models.Snapshot{Size: 7, Expirations: 3}
	if err := c.RegisterCache(func() models.Snapshot { return snap }); err != nil {
		t.Fatalf("RegisterCache() error = %v", err)
	}

	families := gather(t, c)
	if got := families["gridiron_cache_entries"][0].GetGauge().GetValue(); got != 7 {
		t.Errorf("cache_entries = %v, want 7", got)
	}
	if got := families["gridiron_cache_expirations_total"][0].GetCounter().GetValue(); got != 3 {
		t.Errorf("cache_expirations_total = %v, want 3", got)
	}

	if err := c.RegisterCache(func() models.Snapshot { return snap }); err == nil {
		t.Error("registering twice should fail")
	}
}
