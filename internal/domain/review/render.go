package review

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// ComposeWeeklyReview builds the weekly review text. The result never exceeds
// MaxReportLength characters.
func ComposeWeeklyReview(in Input) string {
	return Render(BuildSnapshot(in))
}

// Render turns a snapshot into the fixed-order report.
func Render(snap WeeklySnapshot) string {
	lastDay := snap.WeekEnd.AddDate(0, 0, -1)

	lines := []string{
		fmt.Sprintf("Wochenrückblick %s–%s", snap.WeekStart.Format("02.01."), lastDay.Format("02.01.")),
		fmt.Sprintf("Erledigt %d · Neu %d · Offen %d · Überfällig %d",
			snap.CompletedThisWeek, snap.CreatedThisWeek, snap.Open, snap.Overdue),
		"",
		"Ziele:",
	}
	lines = append(lines, GoalLines(snap.Goals)...)
	lines = append(lines, "", "Nächste Woche fällig:")
	lines = append(lines, NextWeekLines(snap.NextWeek)...)
	lines = append(lines, "", "Geplanter Fokus:")
	lines = append(lines, PlannedLines(snap.Planned)...)
	lines = append(lines, "", CoachingLine)

	return CapLength(strings.Join(lines, "\n"))
}

// GoalLines renders the goal-status block, or the fallback line.
func GoalLines(rows []GoalRow) []string {
	if len(rows) == 0 {
		return []string{FallbackGoalLine}
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, fmt.Sprintf("- %s: %d%% | erledigt %d | offen %d",
			Ellipsize(r.Title, goalTitleLen), int(math.Round(r.Progress)), r.Completed, r.Open))
	}
	return out
}

// NextWeekLines renders the next-week block, or the fallback line.
func NextWeekLines(items []DueItem) []string {
	if len(items) == 0 {
		return []string{FallbackNextWeekLine}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		goal := withoutGoalMarker
		if it.GoalTitle != "" {
			goal = Ellipsize(it.GoalTitle, goalRefLen)
		}
		line := fmt.Sprintf("- %s [%s]", Ellipsize(it.Title, taskTitleLen), goal)
		if it.Due != nil {
			line += " bis " + it.Due.Format("02.01")
		}
		out = append(out, line)
	}
	return out
}

// PlannedLines renders the planned-focus block, or the fallback line.
func PlannedLines(items []PlannedItem) []string {
	if len(items) == 0 {
		return []string{FallbackPlannedLine}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		line := fmt.Sprintf("- %s: %s", weekdayNames[it.Weekday], Ellipsize(it.Title, plannedTitleLen))
		if it.GoalTitle != "" {
			line += fmt.Sprintf(" [%s]", Ellipsize(it.GoalTitle, goalRefLen))
		}
		out = append(out, line)
	}
	return out
}

// CapLength cuts s to MaxReportLength characters, ending in "..." when cut.
// The cap is not word aware.
func CapLength(s string) string {
	if utf8.RuneCountInString(s) <= MaxReportLength {
		return s
	}
	r := []rune(s)
	return string(r[:MaxReportLength-len(reportEllipsis)]) + reportEllipsis
}
