package store

import (
	"math"
	"math/rand"
	"time"
)

// DefaultMachines is the demo factory floor: four stations with their
// ideal cycle times in seconds. Cycle times are carried in the store for
// future performance modelling but are not consumed by the metrics engine.
var DefaultMachines = []Machine{
	{ID: 1, Name: "CNC-001", Type: "CNC Machining Center", IdealCycleTime: 45},
	{ID: 2, Name: "Assembly-001", Type: "Assembly Station", IdealCycleTime: 120},
	{ID: 3, Name: "Packaging-001", Type: "Automated Packaging Line", IdealCycleTime: 30},
	{ID: 4, Name: "Testing-001", Type: "Quality Testing Station", IdealCycleTime: 90},
}

var DefaultShifts = []Shift{
	{ID: 1, Name: "Day", StartHour: 6, EndHour: 14},
	{ID: 2, Name: "Night", StartHour: 14, EndHour: 22},
}

type defectProfile struct {
	severity    Severity
	description string
}

var defectCatalog = map[IssueType]defectProfile{
	IssueDimensional: {SeverityHigh, "Out of tolerance"},
	IssueSurface:     {SeverityMedium, "Surface defect"},
	IssueAssembly:    {SeverityHigh, "Assembly issue"},
	IssueMaterial:    {SeverityLow, "Material quality"},
}

var downtimeCatalog = map[DowntimeReason]string{
	ReasonMechanical:  "Mechanical failure",
	ReasonElectrical:  "Electrical issue",
	ReasonMaterial:    "Material shortage",
	ReasonChangeover:  "Product changeover",
	ReasonMaintenance: "Scheduled maintenance",
}

var defectTypes = []IssueType{IssueDimensional, IssueSurface, IssueAssembly, IssueMaterial}

var downtimeReasons = []DowntimeReason{
	ReasonMechanical, ReasonElectrical, ReasonMaterial, ReasonChangeover, ReasonMaintenance,
}

// Generate builds a synthetic snapshot ending at now with a handful of
// planted scenarios for the assistant to find:
//   - a quality spike on day 15 for Assembly-001
//   - a major breakdown on day 22 for Packaging-001
//   - throughput improving gradually across the range
//   - the night shift running a few percent behind the day shift
func Generate(days int, now time.Time, rng *rand.Rand) *Snapshot {
	endDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startDate := endDate.AddDate(0, 0, -(days - 1))

	production := make(map[string]map[string]ProductionRecord, days)

	current := startDate
	for dayNum := 0; dayNum < days; dayNum++ {
		dateStr := current.Format(DateLayout)
		dayRecords := make(map[string]ProductionRecord, len(DefaultMachines))

		for _, machine := range DefaultMachines {
			baseParts := 800 + rng.Intn(101) - 50

			// Gradual improvement across the range, roughly 65% -> 80% OEE.
			improvement := 1.0 + 0.23*float64(dayNum)/float64(days)
			partsProduced := int(float64(baseParts) * improvement)

			var scrapRate float64
			var qualityIssues []QualityIssue
			if dayNum == 14 && machine.Name == "Assembly-001" {
				// Quality spike: repeated high-severity assembly incidents.
				scrapRate = 0.12
				for i := 0; i < 4; i++ {
					qualityIssues = append(qualityIssues, QualityIssue{
						Type:          IssueAssembly,
						Description:   "Loose fastener issue - tooling calibration required",
						PartsAffected: 5 + rng.Intn(11),
						Severity:      SeverityHigh,
					})
				}
			} else {
				scrapRate = 0.03
				if rng.Float64() < 0.15 {
					dt := defectTypes[rng.Intn(len(defectTypes))]
					profile := defectCatalog[dt]
					qualityIssues = append(qualityIssues, QualityIssue{
						Type:          dt,
						Description:   profile.description,
						PartsAffected: 1 + rng.Intn(5),
						Severity:      profile.severity,
					})
				}
			}

			var downtimeHours float64
			var downtimeEvents []DowntimeEvent
			if dayNum == 21 && machine.Name == "Packaging-001" {
				downtimeHours = 4.0
				downtimeEvents = []DowntimeEvent{{
					Reason:        ReasonMechanical,
					Description:   "Critical bearing failure requiring emergency replacement",
					DurationHours: 4.0,
				}}
				partsProduced /= 2
			} else {
				downtimeHours = 0.2 + rng.Float64()*0.6
				if rng.Float64() < 0.3 {
					reason := downtimeReasons[rng.Intn(len(downtimeReasons))]
					downtimeEvents = []DowntimeEvent{{
						Reason:        reason,
						Description:   downtimeCatalog[reason],
						DurationHours: math.Round((0.1+rng.Float64()*0.4)*100) / 100,
					}}
				}
			}

			scrapParts := int(float64(partsProduced) * scrapRate)
			goodParts := partsProduced - scrapParts

			shifts := make(map[string]ShiftMetrics, len(DefaultShifts))
			for _, shift := range DefaultShifts {
				factor := 1.0
				if shift.Name == "Night" {
					factor = 0.93
				}
				shiftParts := int(float64(partsProduced) * 0.5 * factor)
				shiftScrap := int(float64(scrapParts) * 0.5 * factor)
				shifts[shift.Name] = ShiftMetrics{
					PartsProduced: shiftParts,
					ScrapParts:    shiftScrap,
					GoodParts:     shiftParts - shiftScrap,
					UptimeHours:   8.0 - downtimeHours*0.5,
					DowntimeHours: downtimeHours * 0.5,
				}
			}

			dayRecords[machine.Name] = ProductionRecord{
				PartsProduced:  partsProduced,
				GoodParts:      goodParts,
				ScrapParts:     scrapParts,
				ScrapRate:      math.Round(scrapRate*100*100) / 100,
				UptimeHours:    PlannedHoursPerDay - downtimeHours,
				DowntimeHours:  downtimeHours,
				DowntimeEvents: downtimeEvents,
				QualityIssues:  qualityIssues,
				Shifts:         shifts,
			}
		}

		production[dateStr] = dayRecords
		current = current.AddDate(0, 0, 1)
	}

	return &Snapshot{
		GeneratedAt: now.Format(time.RFC3339),
		StartDate:   startDate.Format(time.RFC3339),
		EndDate:     endDate.Format(time.RFC3339),
		Machines:    DefaultMachines,
		Shifts:      DefaultShifts,
		Production:  production,
	}
}
