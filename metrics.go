package flowmesh

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Metrics exports a Topology's work-stats as Prometheus collectors,
// alongside the JSON stats query Topology.Stats already serves (spec
// section 6's work-stats query, enriched per SPEC_FULL.md's domain stack).
import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a prometheus.Collector reporting per-block activity and
// liveness for a Topology. Register it with a prometheus.Registerer to
// expose it alongside an application's own metrics.
type Metrics struct {
	topo *Topology

	activity *prometheus.Desc
	active   *prometheus.Desc
	failed   *prometheus.Desc
}

// NewMetrics returns a Metrics collector for topo.
func NewMetrics(topo *Topology) *Metrics {
	labels := []string{"block_id", "block_path"}
	return &Metrics{
		topo:     topo,
		activity: prometheus.NewDesc("flowmesh_block_activity_total", "Monotonic activation count for a block.", labels, nil),
		active:   prometheus.NewDesc("flowmesh_block_active", "1 if the block is currently active, 0 otherwise.", labels, nil),
		failed:   prometheus.NewDesc("flowmesh_block_last_error", "1 if the block's last work() call returned an error.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.activity
	ch <- m.active
	ch <- m.failed
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for id, s := range m.topo.Stats() {
		labelVals := []string{fmtBlockID(id), s.Path}
		ch <- prometheus.MustNewConstMetric(m.activity, prometheus.CounterValue, float64(s.Activity), labelVals...)
		ch <- prometheus.MustNewConstMetric(m.active, prometheus.GaugeValue, boolToFloat(s.Active), labelVals...)
		ch <- prometheus.MustNewConstMetric(m.failed, prometheus.GaugeValue, boolToFloat(s.LastErr != ""), labelVals...)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func fmtBlockID(id BlockID) string {
	return strconv.FormatUint(uint64(id), 10)
}
