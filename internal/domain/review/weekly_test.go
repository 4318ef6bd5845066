package review

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminder_service/internal/domain/productivity"
)

// Sunday 2024-10-13 22:10 UTC; Monday-first week is 07.10.-13.10.
var sundayEvening = time.Date(2024, 10, 13, 22, 10, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func blockAfter(t *testing.T, report, label string) []string {
	t.Helper()
	lines := strings.Split(report, "\n")
	for i, l := range lines {
		if l != label {
			continue
		}
		var out []string
		for _, b := range lines[i+1:] {
			if b == "" {
				break
			}
			out = append(out, b)
		}
		return out
	}
	t.Fatalf("label %q not found in report:\n%s", label, report)
	return nil
}

func TestWeekStart(t *testing.T) {
	assert.Equal(t, time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC), WeekStart(sundayEvening, true))
	assert.Equal(t, time.Date(2024, 10, 13, 0, 0, 0, 0, time.UTC), WeekStart(sundayEvening, false))

	monday := time.Date(2024, 10, 7, 0, 0, 1, 0, time.UTC)
	assert.Equal(t, "2024-10-07", WeekKey(monday, true))
	assert.Equal(t, "2024-10-06", WeekKey(monday, false))
}

func TestComposeWeeklyReview_ScenarioA_Empty(t *testing.T) {
	report := ComposeWeeklyReview(Input{Now: sundayEvening, WeekStartsOnMonday: true})

	assert.Equal(t, []string{FallbackGoalLine}, blockAfter(t, report, "Ziele:"))
	assert.Equal(t, []string{FallbackNextWeekLine}, blockAfter(t, report, "Nächste Woche fällig:"))
	assert.Equal(t, []string{FallbackPlannedLine}, blockAfter(t, report, "Geplanter Fokus:"))

	lines := strings.Split(report, "\n")
	assert.Equal(t, "Wochenrückblick 07.10.–13.10.", lines[0])
	assert.Equal(t, "Erledigt 0 · Neu 0 · Offen 0 · Überfällig 0", lines[1])
	assert.Equal(t, CoachingLine, lines[len(lines)-1])
}

func TestComposeWeeklyReview_ScenarioB_GoalWithTasks(t *testing.T) {
	in := Input{
		Now:                sundayEvening,
		WeekStartsOnMonday: true,
		Goals:              []productivity.Goal{{ID: "g1", Title: "G1", Progress: 40}},
		Tasks: []productivity.Task{
			{
				ID: "t1", Title: "Done task", Status: productivity.TaskStatusCompleted,
				CreatedAt: time.Date(2024, 10, 8, 9, 0, 0, 0, time.UTC), CompletedAt: ptr(time.Date(2024, 10, 9, 9, 0, 0, 0, time.UTC)),
				GoalID: "g1",
			},
			{
				ID: "t2", Title: "Open task", Status: productivity.TaskStatusOpen,
				CreatedAt: time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC), Due: ptr(time.Date(2024, 10, 16, 12, 0, 0, 0, time.UTC)),
				GoalIDs: []string{"g1"},
			},
		},
	}
	report := ComposeWeeklyReview(in)

	assert.Equal(t, []string{"- G1: 40% | erledigt 1 | offen 1"}, blockAfter(t, report, "Ziele:"))
	assert.Equal(t, []string{"- Open task [G1] bis 16.10"}, blockAfter(t, report, "Nächste Woche fällig:"))
	assert.Contains(t, report, "Erledigt 1 · Neu 1 · Offen 1 · Überfällig 0")
}

func TestComposeWeeklyReview_Deterministic(t *testing.T) {
	in := Input{
		Now:                sundayEvening,
		WeekStartsOnMonday: false,
		Goals: []productivity.Goal{
			{ID: "a", Title: "Alpha", Progress: 10, WeeklyPlan: []productivity.PlanEntry{{Title: "Lesen", Weekday: 3}}},
			{ID: "b", Title: "Beta", Progress: 10, WeeklyPlan: []productivity.PlanEntry{{Title: "Laufen", Weekday: 1}}},
		},
		Tasks: []productivity.Task{
			{ID: "1", Title: "x", Status: productivity.TaskStatusOpen, GoalIDs: []string{"b", "a"}, Due: ptr(sundayEvening.AddDate(0, 0, 2))},
			{ID: "2", Title: "y", Status: productivity.TaskStatusOpen, GoalID: "a", Due: ptr(sundayEvening.AddDate(0, 0, 1))},
		},
	}
	first := ComposeWeeklyReview(in)
	second := ComposeWeeklyReview(in)
	assert.Equal(t, first, second)
}

func TestBuildSnapshot_GoalRanking(t *testing.T) {
	nextWeek := ptr(time.Date(2024, 10, 15, 10, 0, 0, 0, time.UTC))
	in := Input{
		Now:                sundayEvening,
		WeekStartsOnMonday: true,
		Goals: []productivity.Goal{
			{ID: "low", Title: "Low", Progress: 5},
			{ID: "due", Title: "Due", Progress: 0},
			{ID: "high", Title: "High", Progress: 90},
			{ID: "none", Title: "None", Progress: 0},
			{ID: "tie", Title: "Tie", Progress: 5},
		},
		Tasks: []productivity.Task{
			{ID: "1", Status: productivity.TaskStatusOpen, GoalID: "due", Due: nextWeek},
			{ID: "2", Status: productivity.TaskStatusOpen, GoalID: "due", Due: nextWeek},
		},
	}
	snap := BuildSnapshot(in)

	require.Len(t, snap.Goals, 3)
	assert.Equal(t, "high", snap.Goals[0].GoalID) // 90
	assert.Equal(t, "due", snap.Goals[1].GoalID)  // 3*2 + 2*2 = 10
	assert.Equal(t, "low", snap.Goals[2].GoalID)  // 5, ties keep input order
	assert.Equal(t, 2, snap.Goals[1].DueNextWeek)
}

func TestBuildSnapshot_CountsAndOverdue(t *testing.T) {
	in := Input{
		Now:                sundayEvening,
		WeekStartsOnMonday: true,
		Tasks: []productivity.Task{
			{ID: "1", Status: productivity.TaskStatusOpen, Due: ptr(sundayEvening.Add(-time.Hour))},
			{ID: "2", Status: productivity.TaskStatusInProgress},
			{ID: "3", Status: productivity.TaskStatusArchived, Due: ptr(sundayEvening.Add(-time.Hour))},
			{ID: "4", Status: productivity.TaskStatusCompleted, CompletedAt: ptr(sundayEvening.AddDate(0, 0, -10))},
			{ID: "5", Status: productivity.TaskStatusCompleted, CompletedAt: ptr(sundayEvening.Add(-time.Minute))},
		},
	}
	snap := BuildSnapshot(in)
	assert.Equal(t, 2, snap.Open)
	assert.Equal(t, 1, snap.Overdue)
	assert.Equal(t, 1, snap.CompletedThisWeek)
	assert.Equal(t, 0, snap.CreatedThisWeek)
}

func TestBuildSnapshot_NextWeekOrderingAndLimits(t *testing.T) {
	base := time.Date(2024, 10, 14, 9, 0, 0, 0, time.UTC)
	var tasks []productivity.Task
	for i := 5; i >= 0; i-- {
		tasks = append(tasks, productivity.Task{
			ID: string(rune('a' + i)), Title: strings.Repeat("T", 50), Status: productivity.TaskStatusOpen,
			GoalID: "missing", Due: ptr(base.AddDate(0, 0, i)),
		})
	}
	tasks = append(tasks, productivity.Task{ID: "nogoal", Status: productivity.TaskStatusOpen, Due: ptr(base)})

	snap := BuildSnapshot(Input{Now: sundayEvening, WeekStartsOnMonday: true, Tasks: tasks})
	require.Len(t, snap.NextWeek, 4)
	for i := 1; i < len(snap.NextWeek); i++ {
		assert.True(t, snap.NextWeek[i-1].Due.Before(*snap.NextWeek[i].Due))
	}

	lines := NextWeekLines(snap.NextWeek)
	assert.Equal(t, "- "+strings.Repeat("T", 39)+"… [ohne Ziel] bis 14.10", lines[0])
}

func TestNextWeekLines_DueDateInUserZone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	now := time.Date(2026, 10, 18, 21, 10, 0, 0, berlin)
	// 00:30 on Tuesday in Berlin, still Monday in UTC.
	due := time.Date(2026, 10, 19, 22, 30, 0, 0, time.UTC)

	snap := BuildSnapshot(Input{Now: now, WeekStartsOnMonday: true, Tasks: []productivity.Task{
		{ID: "t1", Title: "Steuer", Status: productivity.TaskStatusOpen, GoalID: "missing", Due: ptr(due)},
	}})
	require.Len(t, snap.NextWeek, 1)
	assert.Equal(t, []string{"- Steuer [ohne Ziel] bis 20.10"}, NextWeekLines(snap.NextWeek))
}

func TestBuildSnapshot_PlannedFocus(t *testing.T) {
	in := Input{
		Now: sundayEvening,
		Goals: []productivity.Goal{
			{ID: "g", Title: "Ein sehr langer Zieltitel", WeeklyPlan: []productivity.PlanEntry{
				{Title: "Freitag", Weekday: 5},
				{Title: "  ", Weekday: 1},
				{Title: "Kaputt", Weekday: 9},
				{Title: "Montag", Weekday: 1},
				{Title: "Sonntag", Weekday: 0},
			}},
		},
	}
	snap := BuildSnapshot(in)
	require.Len(t, snap.Planned, 3)
	assert.Equal(t, []string{
		"- So: Sonntag [Ein sehr langer Z…]",
		"- Mo: Montag [Ein sehr langer Z…]",
		"- Fr: Freitag [Ein sehr langer Z…]",
	}, PlannedLines(snap.Planned))
}

func TestComposeWeeklyReview_LengthBound(t *testing.T) {
	long := strings.Repeat("Ü", 200)
	var goals []productivity.Goal
	var tasks []productivity.Task
	for i := 0; i < 20; i++ {
		id := string(rune('A' + i))
		goals = append(goals, productivity.Goal{ID: id, Title: long, Progress: 50,
			WeeklyPlan: []productivity.PlanEntry{{Title: long, Weekday: i % 7}}})
		tasks = append(tasks, productivity.Task{ID: id, Title: long, Status: productivity.TaskStatusOpen,
			GoalID: id, Due: ptr(time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC))})
	}
	report := ComposeWeeklyReview(Input{Now: sundayEvening, WeekStartsOnMonday: true, Goals: goals, Tasks: tasks})
	assert.LessOrEqual(t, utf8.RuneCountInString(report), MaxReportLength)
}

func TestCapLength(t *testing.T) {
	short := strings.Repeat("a", MaxReportLength)
	assert.Equal(t, short, CapLength(short))

	over := strings.Repeat("ß", MaxReportLength+50)
	capped := CapLength(over)
	assert.Equal(t, MaxReportLength, utf8.RuneCountInString(capped))
	assert.True(t, strings.HasSuffix(capped, "..."))
}
