package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/TheBoringRats/ratcrowler/internal/analyzer"
	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/logs"
	"github.com/TheBoringRats/ratcrowler/internal/metrics"
)

// handleHealth reports overall service health. The service is degraded when
// no rotation target can accept writes and down when every target is down.
func (s *Server) handleHealth(c *gin.Context) {
	usage := s.usage.Snapshot()

	writable := 0
	alive := 0

	for _, u := range usage {
		if u.Status != domain.DatabaseStatusDown {
			alive++

			if u.LoadRatio() < domain.UsageExcludeRatio {
				writable++
			}
		}
	}

	status := "ok"
	code := http.StatusOK

	switch {
	case alive == 0:
		status = "down"
		code = http.StatusServiceUnavailable
	case writable == 0:
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	body := gin.H{
		"status":             status,
		"uptime_s":           s.metrics.Snapshot().UptimeSeconds,
		"databases":          len(usage),
		"writable_databases": writable,
	}

	if id := s.progress.Current().ActiveSessionID; id != "" {
		body["active_session_id"] = id
	}

	c.JSON(code, body)
}

// handleProgress returns the durable crawl progress as last committed.
func (s *Server) handleProgress(c *gin.Context) {
	c.JSON(http.StatusOK, s.progress.Current())
}

// statsResponse merges process-lifetime counters with stored totals.
type statsResponse struct {
	metrics.Snapshot
	StoredPages int64 `json:"stored_pages"`
	StoredLinks int64 `json:"stored_links"`
}

// handleStats returns process-lifetime crawl counters, derived rates, and
// what the store holds overall. A totals failure degrades to counters only.
func (s *Server) handleStats(c *gin.Context) {
	resp := statsResponse{Snapshot: s.metrics.Snapshot()}

	if totals, err := s.store.CountTotals(c.Request.Context()); err != nil {
		s.log.Warn("stored totals unavailable", "error", err)
	} else {
		resp.StoredPages = totals.Pages
		resp.StoredLinks = totals.Links
	}

	c.JSON(http.StatusOK, resp)
}

// handleDatabases returns per-target usage and health for every rotation
// target in configuration order.
func (s *Server) handleDatabases(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"databases": s.usage.Snapshot()})
}

// handleLogs returns the most recent buffered log entries, newest last.
// The limit query parameter defaults to 100 and is capped at 1000.
func (s *Server) handleLogs(c *gin.Context) {
	limit := logs.DefaultReadLimit

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})

			return
		}

		limit = n
	}

	if limit > logs.MaxReadLimit {
		limit = logs.MaxReadLimit
	}

	entries := s.logBuf.ReadLast(limit)

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
		"total":   s.logBuf.LineCount(),
	})
}

// handleReport builds a backlink report for the target URL given in the
// target query parameter.
func (s *Server) handleReport(c *gin.Context) {
	target := c.Query("target")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target query parameter required"})

		return
	}

	report, err := analyzer.BacklinkReportFor(c.Request.Context(), s.store, target)
	if err != nil {
		s.log.Error("backlink report failed", "target", target, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})

		return
	}

	c.JSON(http.StatusOK, report)
}
