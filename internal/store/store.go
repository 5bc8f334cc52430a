// Package store holds the production data snapshot: the typed model for
// per-day, per-machine production records and the JSON persistence layer
// that loads, validates and saves it. A loaded Snapshot is read-only for
// the lifetime of any query or conversation.
package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// PlannedHoursPerDay is the planned production time per machine-day:
// two 8-hour shifts. Every record must satisfy uptime+downtime == 16.
const PlannedHoursPerDay = 16.0

type DowntimeReason string

const (
	ReasonMechanical  DowntimeReason = "mechanical"
	ReasonElectrical  DowntimeReason = "electrical"
	ReasonMaterial    DowntimeReason = "material"
	ReasonChangeover  DowntimeReason = "changeover"
	ReasonMaintenance DowntimeReason = "maintenance"
)

type IssueType string

const (
	IssueDimensional IssueType = "dimensional"
	IssueSurface     IssueType = "surface"
	IssueAssembly    IssueType = "assembly"
	IssueMaterial    IssueType = "material"
)

type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

type Machine struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	IdealCycleTime int    `json:"ideal_cycle_time"`
}

type Shift struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
}

type DowntimeEvent struct {
	Reason        DowntimeReason `json:"reason"`
	Description   string         `json:"description"`
	DurationHours float64        `json:"duration_hours"`
}

type QualityIssue struct {
	Type          IssueType `json:"type"`
	Description   string    `json:"description"`
	PartsAffected int       `json:"parts_affected"`
	Severity      Severity  `json:"severity"`
}

type ShiftMetrics struct {
	PartsProduced int     `json:"parts_produced"`
	ScrapParts    int     `json:"scrap_parts"`
	GoodParts     int     `json:"good_parts"`
	UptimeHours   float64 `json:"uptime_hours"`
	DowntimeHours float64 `json:"downtime_hours"`
}

// ProductionRecord is one machine's production for one calendar day.
type ProductionRecord struct {
	PartsProduced  int                     `json:"parts_produced"`
	GoodParts      int                     `json:"good_parts"`
	ScrapParts     int                     `json:"scrap_parts"`
	ScrapRate      float64                 `json:"scrap_rate"`
	UptimeHours    float64                 `json:"uptime_hours"`
	DowntimeHours  float64                 `json:"downtime_hours"`
	DowntimeEvents []DowntimeEvent         `json:"downtime_events"`
	QualityIssues  []QualityIssue          `json:"quality_issues"`
	Shifts         map[string]ShiftMetrics `json:"shifts"`
}

// Snapshot is the persisted store document: production records addressed
// by date (YYYY-MM-DD) then machine name.
type Snapshot struct {
	GeneratedAt string                                 `json:"generated_at"`
	StartDate   string                                 `json:"start_date"`
	EndDate     string                                 `json:"end_date"`
	Machines    []Machine                              `json:"machines"`
	Shifts      []Shift                                `json:"shifts"`
	Production  map[string]map[string]ProductionRecord `json:"production"`
}

// StartDay returns the snapshot start date trimmed to YYYY-MM-DD. The
// generator writes full ISO-8601 timestamps into start_date/end_date.
func (s *Snapshot) StartDay() string { return dayOf(s.StartDate) }

func (s *Snapshot) EndDay() string { return dayOf(s.EndDate) }

func (s *Snapshot) MachineNames() []string {
	names := make([]string, 0, len(s.Machines))
	for _, m := range s.Machines {
		names = append(names, m.Name)
	}
	return names
}

func dayOf(iso string) string {
	if i := strings.IndexByte(iso, 'T'); i >= 0 {
		return iso[:i]
	}
	return iso
}

// Load reads and validates a snapshot. A missing file surfaces as an
// fs.ErrNotExist-wrapped error so callers can tell "run setup first"
// apart from a corrupt store.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading store %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing store %s: %w", path, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store %s: %w", path, err)
	}
	return &snap, nil
}

// Save writes the snapshot as indented JSON, creating the directory if
// needed.
func Save(snap *Snapshot, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating store dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing store %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a store file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

const hoursEpsilon = 1e-6

var validReasons = map[DowntimeReason]bool{
	ReasonMechanical: true, ReasonElectrical: true, ReasonMaterial: true,
	ReasonChangeover: true, ReasonMaintenance: true,
}

var validIssueTypes = map[IssueType]bool{
	IssueDimensional: true, IssueSurface: true, IssueAssembly: true, IssueMaterial: true,
}

var validSeverities = map[Severity]bool{
	SeverityLow: true, SeverityMedium: true, SeverityHigh: true,
}

// Validate checks the record invariants at the loading boundary so the
// metrics engine can assume well-formed input: part counts reconcile,
// uptime+downtime equals the planned 16 hours, all numerics are
// non-negative and enum values are known.
func (s *Snapshot) Validate() error {
	for date, day := range s.Production {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return fmt.Errorf("production key %q is not a YYYY-MM-DD date", date)
		}
		for machine, rec := range day {
			if err := rec.validate(); err != nil {
				return fmt.Errorf("%s/%s: %w", date, machine, err)
			}
		}
	}
	return nil
}

func (r ProductionRecord) validate() error {
	if r.PartsProduced < 0 || r.GoodParts < 0 || r.ScrapParts < 0 {
		return fmt.Errorf("negative part counts (produced=%d good=%d scrap=%d)",
			r.PartsProduced, r.GoodParts, r.ScrapParts)
	}
	if r.GoodParts+r.ScrapParts != r.PartsProduced {
		return fmt.Errorf("good_parts+scrap_parts != parts_produced (%d+%d != %d)",
			r.GoodParts, r.ScrapParts, r.PartsProduced)
	}
	if r.ScrapRate < 0 || r.ScrapRate > 100 {
		return fmt.Errorf("scrap_rate %.2f out of range", r.ScrapRate)
	}
	if r.UptimeHours < 0 || r.DowntimeHours < 0 {
		return fmt.Errorf("negative hours (uptime=%.2f downtime=%.2f)", r.UptimeHours, r.DowntimeHours)
	}
	if math.Abs(r.UptimeHours+r.DowntimeHours-PlannedHoursPerDay) > hoursEpsilon {
		return fmt.Errorf("uptime+downtime != %.1f (got %.4f)",
			PlannedHoursPerDay, r.UptimeHours+r.DowntimeHours)
	}
	for i, ev := range r.DowntimeEvents {
		if !validReasons[ev.Reason] {
			return fmt.Errorf("downtime event %d: unknown reason %q", i, ev.Reason)
		}
		if ev.DurationHours <= 0 {
			return fmt.Errorf("downtime event %d: duration %.2f must be > 0", i, ev.DurationHours)
		}
	}
	for i, issue := range r.QualityIssues {
		if !validIssueTypes[issue.Type] {
			return fmt.Errorf("quality issue %d: unknown type %q", i, issue.Type)
		}
		if !validSeverities[issue.Severity] {
			return fmt.Errorf("quality issue %d: unknown severity %q", i, issue.Severity)
		}
		if issue.PartsAffected <= 0 {
			return fmt.Errorf("quality issue %d: parts_affected %d must be > 0", i, issue.PartsAffected)
		}
	}
	return nil
}
