package review

import (
	"math"
	"sort"
	"strings"
	"time"

	"reminder_service/internal/domain/productivity"
)

// Product constants of the weekly report.
const (
	MaxReportLength   = 1300
	reportEllipsis    = "..."
	maxGoalRows       = 3
	maxNextWeekRows   = 4
	maxPlannedRows    = 4
	goalTitleLen      = 34
	taskTitleLen      = 40
	goalRefLen        = 18
	plannedTitleLen   = 32
	withoutGoalMarker = "ohne Ziel"
)

// Fixed fallback lines.
const (
	FallbackGoalLine     = "- Noch keine Ziele mit verknüpften Aufgaben."
	FallbackNextWeekLine = "- Keine fälligen Aufgaben mit Ziel."
	FallbackPlannedLine  = "- Kein Wochenplan hinterlegt."
	CoachingLine         = "Plane 1-3 Prioritäten für Montag und blocke Zeit dafür im Kalender."
)

var weekdayNames = [7]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"}

// Input is everything the weekly review depends on.
type Input struct {
	Tasks              []productivity.Task
	Goals              []productivity.Goal
	Now                time.Time
	WeekStartsOnMonday bool
}

// GoalRow is one line of the goal-status block.
type GoalRow struct {
	GoalID      string
	Title       string
	Progress    float64
	Completed   int
	Open        int
	DueNextWeek int
	Score       float64
}

// DueItem is one line of the next-week block.
type DueItem struct {
	TaskID    string
	Title     string
	GoalTitle string // empty when no linked goal resolves
	Due       *time.Time
}

// PlannedItem is one line of the planned-focus block.
type PlannedItem struct {
	Weekday   int
	Title     string
	GoalTitle string
}

// WeeklySnapshot holds the aggregates of one evaluation. Never persisted.
type WeeklySnapshot struct {
	WeekStart     time.Time
	WeekEnd       time.Time // exclusive
	NextWeekStart time.Time
	NextWeekEnd   time.Time // exclusive

	CompletedThisWeek int
	CreatedThisWeek   int
	Open              int
	Overdue           int

	Goals    []GoalRow
	NextWeek []DueItem
	Planned  []PlannedItem
}

// WeekStart returns midnight of the first day of the week containing t, in t's location.
func WeekStart(t time.Time, weekStartsOnMonday bool) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := int(day.Weekday())
	if weekStartsOnMonday {
		offset = (offset + 6) % 7
	}
	return day.AddDate(0, 0, -offset)
}

// WeekKey is the idempotency key of the week containing t: its start date.
func WeekKey(t time.Time, weekStartsOnMonday bool) string {
	return WeekStart(t, weekStartsOnMonday).Format("2006-01-02")
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// BuildSnapshot computes the weekly aggregates. Pure and deterministic.
func BuildSnapshot(in Input) WeeklySnapshot {
	snap := WeeklySnapshot{}
	snap.WeekStart = WeekStart(in.Now, in.WeekStartsOnMonday)
	snap.WeekEnd = snap.WeekStart.AddDate(0, 0, 7)
	snap.NextWeekStart = snap.WeekEnd
	snap.NextWeekEnd = snap.NextWeekStart.AddDate(0, 0, 7)

	dueNextWeek := func(t productivity.Task) bool {
		return t.Due != nil && within(*t.Due, snap.NextWeekStart, snap.NextWeekEnd)
	}

	for _, t := range in.Tasks {
		if t.Status == productivity.TaskStatusCompleted && t.CompletedAt != nil &&
			within(*t.CompletedAt, snap.WeekStart, snap.WeekEnd) {
			snap.CompletedThisWeek++
		}
		if !t.CreatedAt.IsZero() && within(t.CreatedAt, snap.WeekStart, snap.WeekEnd) {
			snap.CreatedThisWeek++
		}
		if t.IsOpen() {
			snap.Open++
			if t.Due != nil && t.Due.Before(in.Now) {
				snap.Overdue++
			}
		}
	}

	goalsByID := make(map[string]productivity.Goal, len(in.Goals))
	for _, g := range in.Goals {
		if g.ID != "" {
			if _, dup := goalsByID[g.ID]; !dup {
				goalsByID[g.ID] = g
			}
		}
	}

	// goal stats
	rows := make([]GoalRow, 0, len(in.Goals))
	for _, g := range in.Goals {
		row := GoalRow{GoalID: g.ID, Title: g.Title, Progress: clampProgress(g.Progress)}
		linked := 0
		for _, t := range in.Tasks {
			if !linksGoal(t, g.ID) {
				continue
			}
			linked++
			if t.Status == productivity.TaskStatusCompleted {
				row.Completed++
			}
			if t.IsOpen() {
				row.Open++
				if dueNextWeek(t) {
					row.DueNextWeek++
				}
			}
		}
		if linked == 0 && row.Progress == 0 {
			continue
		}
		row.Score = 3*float64(row.DueNextWeek) + 2*float64(row.Open) + row.Progress
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	if len(rows) > maxGoalRows {
		rows = rows[:maxGoalRows]
	}
	snap.Goals = rows

	// next-week due items
	due := make([]DueItem, 0)
	for _, t := range in.Tasks {
		ids := t.LinkedGoalIDs()
		if !t.IsOpen() || len(ids) == 0 || !dueNextWeek(t) {
			continue
		}
		// Rendered dates follow the user's zone, not the stored one.
		local := t.Due.In(in.Now.Location())
		item := DueItem{TaskID: t.ID, Title: t.Title, Due: &local}
		for _, id := range ids {
			if g, ok := goalsByID[id]; ok {
				item.GoalTitle = g.Title
				break
			}
		}
		due = append(due, item)
	}
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].Due, due[j].Due
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	if len(due) > maxNextWeekRows {
		due = due[:maxNextWeekRows]
	}
	snap.NextWeek = due

	// planned focus
	planned := make([]PlannedItem, 0)
	for _, g := range in.Goals {
		for _, p := range g.WeeklyPlan {
			title := strings.TrimSpace(p.Title)
			if title == "" || p.Weekday < 0 || p.Weekday > 6 {
				continue
			}
			planned = append(planned, PlannedItem{Weekday: p.Weekday, Title: title, GoalTitle: g.Title})
		}
	}
	sort.SliceStable(planned, func(i, j int) bool { return planned[i].Weekday < planned[j].Weekday })
	if len(planned) > maxPlannedRows {
		planned = planned[:maxPlannedRows]
	}
	snap.Planned = planned

	return snap
}

func linksGoal(t productivity.Task, goalID string) bool {
	if goalID == "" {
		return false
	}
	for _, id := range t.LinkedGoalIDs() {
		if id == goalID {
			return true
		}
	}
	return false
}

func clampProgress(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
