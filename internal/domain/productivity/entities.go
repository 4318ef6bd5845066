// internal/domain/productivity/entities.go
package productivity

import (
	"context"
	"time"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusArchived   TaskStatus = "archived"
)

// Task is a read-only view of a task owned by the task store.
type Task struct {
	ID          string
	Title       string
	Status      TaskStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Due         *time.Time
	Start       *time.Time
	GoalID      string   // single link, may be empty
	GoalIDs     []string // multi-value link, may overlap GoalID
	Project     string
	Priority    string
}

// IsOpen reports whether the task is neither completed nor archived.
func (t Task) IsOpen() bool {
	return t.Status != TaskStatusCompleted && t.Status != TaskStatusArchived
}

// LinkedGoalIDs returns the deduplicated goal links, GoalID first.
func (t Task) LinkedGoalIDs() []string {
	seen := make(map[string]struct{}, len(t.GoalIDs)+1)
	ids := make([]string, 0, len(t.GoalIDs)+1)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	add(t.GoalID)
	for _, id := range t.GoalIDs {
		add(id)
	}
	return ids
}

// PlanEntry is one weekly-plan item of a goal. Weekday is 0 (Sunday) to 6 (Saturday).
type PlanEntry struct {
	Title   string
	Weekday int
}

// Goal is a read-only view of a goal.
type Goal struct {
	ID         string
	Title      string
	Progress   float64 // percent, 0-100
	WeeklyPlan []PlanEntry
}

// Snapshot is the task and goal collections of one user at one instant.
type Snapshot struct {
	Tasks []Task
	Goals []Goal
}

// SnapshotRepository reads a user's tasks and goals.
type SnapshotRepository interface {
	LoadSnapshot(ctx context.Context, userID string) (Snapshot, error)
}
