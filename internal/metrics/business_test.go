// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordUpload(t *testing.T) {
	before := testutil.ToFloat64(uploadsTotal.WithLabelValues("data", "stored"))
	bytesBefore := testutil.ToFloat64(uploadedBytes)

	RecordUpload("data", "stored", 2048)
	RecordUpload("data", "rejected", 0)

	if got := testutil.ToFloat64(uploadsTotal.WithLabelValues("data", "stored")) - before; got != 1 {
		t.Fatalf("stored uploads delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(uploadedBytes) - bytesBefore; got != 2048 {
		t.Fatalf("bytes delta = %v, want 2048", got)
	}
}

func TestRecordAnalysisAndCache(t *testing.T) {
	before := testutil.ToFloat64(analysesTotal.WithLabelValues("ttest", "success"))
	RecordAnalysis("ttest", "success", 15*time.Millisecond)
	if got := testutil.ToFloat64(analysesTotal.WithLabelValues("ttest", "success")) - before; got != 1 {
		t.Fatalf("analyses delta = %v, want 1", got)
	}

	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	RecordCacheLookup(true)
	RecordCacheLookup(false)
	if got := testutil.ToFloat64(cacheLookups.WithLabelValues("hit")) - hits; got != 1 {
		t.Fatalf("cache hits delta = %v, want 1", got)
	}
}

func TestPromhttpExposure(t *testing.T) {
	RecordReport("charter", "html")
	RecordCuration(true, 120)
	RecordInboxEvent("ingested")
	RecordPhaseTransition("measure")

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{
		"dmaic_reports_total",
		"dmaic_curations_total",
		"dmaic_curated_rows",
		"dmaic_inbox_events_total",
		"dmaic_project_phase_transitions_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metric %s not exposed", name)
		}
	}
}
