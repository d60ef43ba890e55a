package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/r3dlight/couic/common"
)

// handleStats serves GET /v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
		return
	}
	stats, err := s.fw.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleTagStats serves GET /v1/stats/tags/{policy}.
func (s *Server) handleTagStats(w http.ResponseWriter, r *http.Request, policy common.Policy) {
	if r.Method != http.MethodGet {
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
		return
	}
	stats, err := s.fw.TagStats(policy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleMetrics serves GET /v1/metrics as JSON Stats, and
// GET /v1/metrics?format=prometheus as Prometheus text: the
// couic_{drop,ignore}_cidr_count gauges and one couic_xdp_packets_total
// counter per XDP action. Per-tag and byte counters are not rendered, and
// no "# EOF" terminator is written.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
		return
	}
	stats, err := s.fw.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") != "prometheus" {
		writeJSON(w, http.StatusOK, stats)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# TYPE couic_drop_cidr_count gauge\ncouic_drop_cidr_count %d\n", stats.DropCidrCount)
	fmt.Fprintf(w, "# TYPE couic_ignore_cidr_count gauge\ncouic_ignore_cidr_count %d\n", stats.IgnoreCidrCount)
	fmt.Fprintln(w, "# TYPE couic_xdp_packets_total counter")
	names := make([]string, 0, len(stats.Xdp))
	for name := range stats.Xdp {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "couic_xdp_packets_total{action=%q} %d\n", name, stats.Xdp[name].RxPackets)
	}
}
