package firewall

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/r3dlight/couic/common"
)

func testReport(t *testing.T, cidr string) common.Report {
	t.Helper()
	c, err := common.ParseNormalizedCidr(cidr)
	if err != nil {
		t.Fatalf("parsing %q: %v", cidr, err)
	}
	return common.Report{Action: common.ActionAdd, Policy: common.PolicyDrop, Entry: common.NewEntry(c, "", common.NeverExpiration)}
}

func TestReportServiceSendWebhookPostsBatch(t *testing.T) {
	var calls int32
	var gotBatch []common.Report
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewDecoder(r.Body).Decode(&gotBatch)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewReportService(srv.URL, nil, "", nil)
	batch := []common.Report{testReport(t, "10.0.0.0/8"), testReport(t, "10.0.0.0/16")}
	r.sendWebhook(batch)

	if calls != 1 {
		t.Fatalf("got %d calls, want 1", calls)
	}
	if len(gotBatch) != 2 {
		t.Fatalf("got %d reports in posted batch, want 2", len(gotBatch))
	}
}

func TestReportServiceFlushSkipsEmptyBuffer(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	r := NewReportService(srv.URL, nil, "", nil)
	r.flush()
	if calls != 0 {
		t.Fatalf("got %d calls, want 0 for an empty buffer", calls)
	}
}

func TestReportServiceEnqueueThenFlushDelivers(t *testing.T) {
	done := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		select {
		case done <- struct{}{}:
		default:
		}
	}))
	defer srv.Close()

	r := NewReportService(srv.URL, nil, "", nil)
	r.Enqueue(testReport(t, "10.0.0.0/8"))
	r.mtx.Lock()
	r.buffer = append(r.buffer, <-r.jobs)
	r.mtx.Unlock()
	r.flush()

	select {
	case <-done:
	default:
		t.Fatal("expected the webhook to have been called")
	}
}
