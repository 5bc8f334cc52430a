// Package metrics is the analysis engine over a production snapshot. All
// queries are pure reads: they filter by date range and machine and
// aggregate OEE, scrap, quality and downtime statistics. Query failures
// are returned as typed errors so they can travel back to the model as
// ordinary tool output instead of aborting the conversation.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"factoryops/internal/store"
)

// Performance is the fixed OEE performance factor. The intended formula
// would derive it from ideal cycle times; the store carries those but the
// observed behavior is this constant, kept as a documented simplification.
const Performance = 0.95

// MajorEventThresholdHours marks a downtime event as major when its
// duration exceeds this strictly.
const MajorEventThresholdHours = 2.0

type ErrorCode string

const (
	CodeDataUnavailable ErrorCode = "data_unavailable"
	CodeEmptyDateRange  ErrorCode = "empty_date_range"
	CodeBadArgument     ErrorCode = "bad_argument"
)

// Error is a recoverable query failure. It is serialized into the tool
// result channel, never raised past the registry.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return e.Message }

func errDataUnavailable() *Error {
	return &Error{Code: CodeDataUnavailable, Message: "No data available"}
}

func errEmptyRange(msg string) *Error {
	return &Error{Code: CodeEmptyDateRange, Message: msg}
}

func errBadDate(value string, err error) *Error {
	return &Error{Code: CodeBadArgument, Message: fmt.Sprintf("invalid date %q: expected YYYY-MM-DD (%v)", value, err)}
}

// Engine answers metric queries against one immutable snapshot.
type Engine struct {
	snap *store.Snapshot
}

func NewEngine(snap *store.Snapshot) *Engine {
	return &Engine{snap: snap}
}

// DateRange lists the calendar dates from start to end inclusive, both
// given as YYYY-MM-DD (a trailing ISO-8601 time part is tolerated and
// ignored). end before start yields an empty list, not an error.
func DateRange(startDate, endDate string) ([]string, error) {
	start, err := parseDay(startDate)
	if err != nil {
		return nil, errBadDate(startDate, err)
	}
	end, err := parseDay(endDate)
	if err != nil {
		return nil, errBadDate(endDate, err)
	}
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(store.DateLayout))
	}
	return dates, nil
}

func parseDay(s string) (time.Time, error) {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	return time.Parse(store.DateLayout, s)
}

type OEEReport struct {
	OEE          float64 `json:"oee"`
	Availability float64 `json:"availability"`
	Performance  float64 `json:"performance"`
	Quality      float64 `json:"quality"`
	TotalParts   int     `json:"total_parts"`
	GoodParts    int     `json:"good_parts"`
	ScrapParts   int     `json:"scrap_parts"`
}

// CalculateOEE aggregates availability, performance and quality over the
// range. machine may be empty to cover every machine present per day.
func (e *Engine) CalculateOEE(startDate, endDate, machine string) (*OEEReport, error) {
	if e.empty() {
		return nil, errDataUnavailable()
	}
	validDates, err := e.validDates(startDate, endDate)
	if err != nil {
		return nil, err
	}
	if len(validDates) == 0 {
		return nil, errEmptyRange("No data for specified date range")
	}

	var totalParts, totalGood int
	var totalUptime, totalPlanned float64
	for _, date := range validDates {
		day := e.snap.Production[date]
		for _, name := range machinesFor(day, machine) {
			rec := day[name]
			totalParts += rec.PartsProduced
			totalGood += rec.GoodParts
			totalUptime += rec.UptimeHours
			totalPlanned += store.PlannedHoursPerDay
		}
	}
	if totalPlanned == 0 {
		return nil, errEmptyRange("No valid data found")
	}

	availability := totalUptime / totalPlanned
	quality := 0.0
	if totalParts > 0 {
		quality = float64(totalGood) / float64(totalParts)
	}
	oee := availability * Performance * quality

	return &OEEReport{
		OEE:          round3(oee),
		Availability: round3(availability),
		Performance:  round3(Performance),
		Quality:      round3(quality),
		TotalParts:   totalParts,
		GoodParts:    totalGood,
		ScrapParts:   totalParts - totalGood,
	}, nil
}

type ScrapReport struct {
	TotalScrap     int            `json:"total_scrap"`
	TotalParts     int            `json:"total_parts"`
	ScrapRate      float64        `json:"scrap_rate"`
	ScrapByMachine map[string]int `json:"scrap_by_machine,omitempty"`
}

// ScrapMetrics sums scrap and total parts over the range. Without a
// machine filter the report carries a per-machine breakdown whose values
// sum to the aggregate. An empty range is a zero-valued report.
func (e *Engine) ScrapMetrics(startDate, endDate, machine string) (*ScrapReport, error) {
	if e.empty() {
		return nil, errDataUnavailable()
	}
	validDates, err := e.validDates(startDate, endDate)
	if err != nil {
		return nil, err
	}

	var totalScrap, totalParts int
	scrapByMachine := make(map[string]int)
	for _, date := range validDates {
		day := e.snap.Production[date]
		for _, name := range machinesFor(day, machine) {
			rec := day[name]
			totalScrap += rec.ScrapParts
			totalParts += rec.PartsProduced
			if machine == "" {
				scrapByMachine[name] += rec.ScrapParts
			}
		}
	}

	scrapRate := 0.0
	if totalParts > 0 {
		scrapRate = float64(totalScrap) / float64(totalParts) * 100
	}
	report := &ScrapReport{
		TotalScrap: totalScrap,
		TotalParts: totalParts,
		ScrapRate:  round2(scrapRate),
	}
	if len(scrapByMachine) > 0 {
		report.ScrapByMachine = scrapByMachine
	}
	return report, nil
}

// TaggedIssue is a quality issue annotated with its source date and
// machine for presentation outside the record it came from.
type TaggedIssue struct {
	Type          store.IssueType `json:"type"`
	Description   string          `json:"description"`
	PartsAffected int             `json:"parts_affected"`
	Severity      store.Severity  `json:"severity"`
	Date          string          `json:"date"`
	Machine       string          `json:"machine"`
}

type QualityReport struct {
	Issues             []TaggedIssue          `json:"issues"`
	TotalIssues        int                    `json:"total_issues"`
	TotalPartsAffected int                    `json:"total_parts_affected"`
	SeverityBreakdown  map[store.Severity]int `json:"severity_breakdown"`
}

// QualityIssues collects every issue in range matching the optional
// severity and machine filters. An unknown severity value simply matches
// nothing.
func (e *Engine) QualityIssues(startDate, endDate string, severity store.Severity, machine string) (*QualityReport, error) {
	if e.empty() {
		return nil, errDataUnavailable()
	}
	validDates, err := e.validDates(startDate, endDate)
	if err != nil {
		return nil, err
	}

	issues := []TaggedIssue{}
	breakdown := make(map[store.Severity]int)
	totalAffected := 0
	for _, date := range validDates {
		day := e.snap.Production[date]
		for _, name := range machinesFor(day, machine) {
			for _, issue := range day[name].QualityIssues {
				if severity != "" && issue.Severity != severity {
					continue
				}
				issues = append(issues, TaggedIssue{
					Type:          issue.Type,
					Description:   issue.Description,
					PartsAffected: issue.PartsAffected,
					Severity:      issue.Severity,
					Date:          date,
					Machine:       name,
				})
				totalAffected += issue.PartsAffected
				breakdown[issue.Severity]++
			}
		}
	}

	return &QualityReport{
		Issues:             issues,
		TotalIssues:        len(issues),
		TotalPartsAffected: totalAffected,
		SeverityBreakdown:  breakdown,
	}, nil
}

type MajorEvent struct {
	Date          string               `json:"date"`
	Machine       string               `json:"machine"`
	Reason        store.DowntimeReason `json:"reason"`
	Description   string               `json:"description"`
	DurationHours float64              `json:"duration_hours"`
}

type DowntimeReport struct {
	TotalDowntimeHours float64                          `json:"total_downtime_hours"`
	DowntimeByReason   map[store.DowntimeReason]float64 `json:"downtime_by_reason"`
	MajorEvents        []MajorEvent                     `json:"major_events"`
}

// DowntimeAnalysis sums downtime over the range, aggregates event hours
// by reason, and lists events strictly longer than 2 hours as major.
func (e *Engine) DowntimeAnalysis(startDate, endDate, machine string) (*DowntimeReport, error) {
	if e.empty() {
		return nil, errDataUnavailable()
	}
	validDates, err := e.validDates(startDate, endDate)
	if err != nil {
		return nil, err
	}

	var totalDowntime float64
	byReason := make(map[store.DowntimeReason]float64)
	majorEvents := []MajorEvent{}
	for _, date := range validDates {
		day := e.snap.Production[date]
		for _, name := range machinesFor(day, machine) {
			rec := day[name]
			totalDowntime += rec.DowntimeHours
			for _, ev := range rec.DowntimeEvents {
				byReason[ev.Reason] += ev.DurationHours
				if ev.DurationHours > MajorEventThresholdHours {
					majorEvents = append(majorEvents, MajorEvent{
						Date:          date,
						Machine:       name,
						Reason:        ev.Reason,
						Description:   ev.Description,
						DurationHours: ev.DurationHours,
					})
				}
			}
		}
	}

	for reason, hours := range byReason {
		byReason[reason] = round2(hours)
	}
	return &DowntimeReport{
		TotalDowntimeHours: round2(totalDowntime),
		DowntimeByReason:   byReason,
		MajorEvents:        majorEvents,
	}, nil
}

func (e *Engine) empty() bool {
	return e.snap == nil || len(e.snap.Production) == 0
}

// validDates restricts the requested range to dates present in the store.
func (e *Engine) validDates(startDate, endDate string) ([]string, error) {
	dates, err := DateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	valid := dates[:0]
	for _, d := range dates {
		if _, ok := e.snap.Production[d]; ok {
			valid = append(valid, d)
		}
	}
	return valid, nil
}

// machinesFor resolves the machine filter for one day's records: a named
// machine that is absent for the day is silently skipped, an empty filter
// means every machine present, in name order for stable output.
func machinesFor(day map[string]store.ProductionRecord, machine string) []string {
	if machine != "" {
		if _, ok := day[machine]; !ok {
			return nil
		}
		return []string{machine}
	}
	names := make([]string, 0, len(day))
	for name := range day {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
