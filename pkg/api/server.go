// Package api serves verification results over HTTP.
package api

import (
	"context"
	"encoding/csv"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/report"
)

// DashboardConfig contains configuration for the dashboard
type DashboardConfig struct {
	Addr           string
	EnableCORS     bool
	ResultsHistory int
	AllowExports   bool
}

// RunInfo is one entry of the run history
type RunInfo struct {
	RunID       string         `json:"run_id"`
	GeneratedAt string         `json:"generated_at"`
	Input       string         `json:"input"`
	DryRun      bool           `json:"dry_run"`
	Counts      map[string]int `json:"counts"`
}

// Stats counts the findings of the current run
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
}

// Dashboard serves the latest verification run
type Dashboard struct {
	router  *gin.Engine
	logger  *logrus.Logger
	config  DashboardConfig
	metrics *metrics

	mu      sync.RWMutex
	current *report.RunSummary
	history []RunInfo
}

// NewDashboard creates a new dashboard server
func NewDashboard(config DashboardConfig, logger *logrus.Logger) *Dashboard {
	if logger == nil {
		logger = logrus.New()
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.ResultsHistory <= 0 {
		config.ResultsHistory = 10
	}

	router := gin.New()
	router.Use(gin.Recovery())

	d := &Dashboard{
		router:  router,
		logger:  logger,
		config:  config,
		metrics: newMetrics(),
	}
	d.setupRoutes()
	return d
}

// Handler exposes the router
func (d *Dashboard) Handler() http.Handler {
	return d.router
}

func (d *Dashboard) setupRoutes() {
	if d.config.EnableCORS {
		d.router.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
		})
	}

	d.router.GET("/metrics", gin.WrapH(d.metrics.handler()))

	api := d.router.Group("/api")
	{
		api.GET("/findings", d.handleGetFindings)
		api.GET("/findings/:ip", d.handleGetFinding)
		api.GET("/stats", d.handleGetStats)
		api.GET("/run", d.handleGetRun)
		api.GET("/history", d.handleGetHistory)

		if d.config.AllowExports {
			api.GET("/export/json", d.handleExportJSON)
			api.GET("/export/csv", d.handleExportCSV)
		}
	}
}

// Start listens on the configured address
func (d *Dashboard) Start() error {
	d.logger.Infof("Dashboard listening on %s", d.config.Addr)
	return d.router.Run(d.config.Addr)
}

// Load makes s the current run and refreshes the gauges. Loading the run that
// is already current replaces its history entry.
func (d *Dashboard) Load(s report.RunSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info := RunInfo{
		RunID:       s.RunID,
		GeneratedAt: s.GeneratedAt.Format("2006-01-02 15:04:05"),
		Input:       s.Input,
		DryRun:      s.DryRun,
		Counts:      s.Counts,
	}
	d.current = &s
	if n := len(d.history); n > 0 && d.history[n-1].RunID == s.RunID {
		d.history[n-1] = info
	} else {
		d.history = append(d.history, info)
	}
	if len(d.history) > d.config.ResultsHistory {
		d.history = d.history[len(d.history)-d.config.ResultsHistory:]
	}
	d.metrics.update(s.Rows)
	d.logger.WithField("run_id", s.RunID).Infof("Loaded %d findings", len(s.Rows))
}

// LoadFile reads a results file and loads it
func (d *Dashboard) LoadFile(path string) error {
	s, err := report.ReadResults(path)
	if err != nil {
		return err
	}
	d.Load(s)
	return nil
}

// Watch reloads path each time its modification time changes, checking every
// interval until ctx is done. Changes made before Watch is called are not reloaded.
func (d *Dashboard) Watch(ctx context.Context, path string, interval time.Duration) {
	if interval <= 0 {
		return
	}

	var last time.Time
	if info, err := os.Stat(path); err == nil {
		last = info.ModTime()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil || info.ModTime().Equal(last) {
			continue
		}
		last = info.ModTime()
		if err := d.LoadFile(path); err != nil {
			d.logger.Warnf("Reload of %s failed: %v", path, err)
		}
	}
}

func (d *Dashboard) rows() ([]models.Row, bool) {
	if d.current == nil {
		return nil, false
	}
	return d.current.Rows, true
}

func matches(value, filter string) bool {
	return filter == "" || strings.EqualFold(value, filter)
}

func (d *Dashboard) handleGetFindings(c *gin.Context) {
	status := c.Query("status")
	category := c.Query("category")

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, _ := d.rows()
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if matches(string(r.Result.Status), status) && matches(string(r.Finding.Category), category) {
			out = append(out, r)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (d *Dashboard) handleGetFinding(c *gin.Context) {
	ip := c.Param("ip")

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, ok := d.rows()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No verification results available"})
		return
	}
	var out []models.Row
	for _, r := range rows {
		if r.Finding.IP == ip {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No findings for host " + ip})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (d *Dashboard) handleGetStats(c *gin.Context) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, _ := d.rows()
	stats := Stats{
		Total:      len(rows),
		ByStatus:   report.CountByStatus(rows),
		ByCategory: make(map[string]int),
	}
	for _, r := range rows {
		stats.ByCategory[string(r.Finding.Category)]++
	}
	c.JSON(http.StatusOK, stats)
}

func (d *Dashboard) handleGetRun(c *gin.Context) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.current == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No verification results available"})
		return
	}
	c.JSON(http.StatusOK, d.history[len(d.history)-1])
}

func (d *Dashboard) handleGetHistory(c *gin.Context) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// newest first
	history := make([]RunInfo, 0, len(d.history))
	for i := len(d.history) - 1; i >= 0; i-- {
		history = append(history, d.history[i])
	}
	c.JSON(http.StatusOK, history)
}

func (d *Dashboard) handleExportJSON(c *gin.Context) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.current == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No verification results available"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=results.json")
	c.JSON(http.StatusOK, d.current)
}

func (d *Dashboard) handleExportCSV(c *gin.Context) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, ok := d.rows()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No verification results available"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=results.csv")
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(report.Headers)
	for _, r := range rows {
		f := r.Finding
		_ = w.Write([]string{
			f.IP, f.Port, f.Service, f.Name, f.PluginID,
			string(f.Category), string(r.Result.Status), r.Result.EvidencePath,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		d.logger.Warnf("CSV export failed: %v", err)
	}
}
