package model

import "time"

// GemRun is a single usage event recorded after every gem execution.
// Consumed write-only by the command engine; the read path feeds the
// admin usage surface.
type GemRun struct {
	WorkspaceID string
	GemName     string
	UserID      *string
	Public      bool
	OK          bool
	OccurredAt  time.Time
}

// GemUsageRow is one (day, gem) rollup row.
type GemUsageRow struct {
	Date        string `json:"date"` // YYYY-MM-DD
	GemName     string `json:"gem_name"`
	Count       int    `json:"count"`
	PublicCount int    `json:"public_count"`
	OKCount     int    `json:"ok_count"`
	ErrorCount  int    `json:"error_count"`
}

// DayTotals is the per-day aggregate across all gems.
type DayTotals struct {
	Date        string `json:"date"`
	TotalCount  int    `json:"total_count"`
	PublicCount int    `json:"public_count"`
	OKCount     int    `json:"ok_count"`
	ErrorCount  int    `json:"error_count"`
}

// TopGem is one entry in the most-used-gems ranking.
type TopGem struct {
	GemName string `json:"gem_name"`
	Count   int    `json:"count"`
}

// GemUsageSummary aggregates usage over a trailing window of days.
type GemUsageSummary struct {
	WorkspaceID string      `json:"workspace_id"`
	Days        int         `json:"days"`
	FromDate    string      `json:"from_date"`
	ToDate      string      `json:"to_date"`
	TotalCount  int         `json:"total_count"`
	PublicCount int         `json:"public_count"`
	OKCount     int         `json:"ok_count"`
	ErrorCount  int         `json:"error_count"`
	ByDay       []DayTotals `json:"by_day"`
	TopGems     []TopGem    `json:"top_gems"`
}
