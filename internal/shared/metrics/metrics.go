package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

type counter struct {
	name  string
	help  string
	value atomic.Uint64
}

var (
	documentsUploaded = &counter{name: "documents_uploaded_total", help: "Total documents uploaded"}
	extractionFailed  = &counter{name: "extraction_failed_total", help: "Uploads whose extraction did not succeed"}
	ocrFallback       = &counter{name: "ocr_fallback_total", help: "PDF extractions that fell back to OCR"}
	ocrSucceeded      = &counter{name: "ocr_succeeded_total", help: "OCR fallbacks that produced usable text"}
	llmRequests       = &counter{name: "llm_requests_total", help: "Total LLM completions requested"}
	llmFailed         = &counter{name: "llm_failed_total", help: "LLM completions that returned an error"}
	reextractReceived = &counter{name: "reextract_jobs_received_total", help: "Re-extraction jobs received"}
	reextractDone     = &counter{name: "reextract_jobs_completed_total", help: "Re-extraction jobs completed"}
	reextractFailed   = &counter{name: "reextract_jobs_failed_total", help: "Re-extraction jobs failed"}
	reextractDropped  = &counter{name: "reextract_jobs_deleted_unrecoverable_total", help: "Re-extraction jobs deleted as unrecoverable"}
	rateLimited       = &counter{name: "http_rate_limited_total", help: "Requests rejected by the rate limiter"}
	panicsRecovered   = &counter{name: "http_panics_recovered_total", help: "Handler panics converted to 500 responses"}

	counters = []*counter{
		documentsUploaded, extractionFailed, ocrFallback, ocrSucceeded,
		llmRequests, llmFailed,
		reextractReceived, reextractDone, reextractFailed, reextractDropped,
		rateLimited, panicsRecovered,
	}

	llmDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

func IncDocumentsUploaded()      { documentsUploaded.value.Add(1) }
func IncExtractionFailed()       { extractionFailed.value.Add(1) }
func IncOCRFallback()            { ocrFallback.value.Add(1) }
func IncOCRSucceeded()           { ocrSucceeded.value.Add(1) }
func IncLLMRequests()            { llmRequests.value.Add(1) }
func IncLLMFailed()              { llmFailed.value.Add(1) }
func IncReextractReceived()      { reextractReceived.value.Add(1) }
func IncReextractCompleted()     { reextractDone.value.Add(1) }
func IncReextractFailed()        { reextractFailed.value.Add(1) }
func IncReextractUnrecoverable() { reextractDropped.value.Add(1) }
func IncRateLimited()            { rateLimited.value.Add(1) }
func IncPanicsRecovered()        { panicsRecovered.value.Add(1) }

// ObserveLLMDurationMs records an LLM round-trip in milliseconds.
func ObserveLLMDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	llmDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	for _, c := range counters {
		writeCounter(&buf, c.name, c.help, c.value.Load())
	}
	writeHistogram(&buf, "llm_duration_ms", "LLM completion duration in milliseconds", llmDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

// Buckets are stored non-cumulatively and summed on render.
func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
