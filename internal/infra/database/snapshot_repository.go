package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reminder_service/internal/domain/productivity"
)

// SQLSnapshotRepository reads a user's tasks and goals. It never writes.
type SQLSnapshotRepository struct {
	db *DB
}

func NewSQLSnapshotRepository(db *DB) *SQLSnapshotRepository {
	return &SQLSnapshotRepository{db: db}
}

func (r *SQLSnapshotRepository) LoadSnapshot(ctx context.Context, userID string) (productivity.Snapshot, error) {
	goals, err := r.loadGoals(ctx, userID)
	if err != nil {
		return productivity.Snapshot{}, err
	}
	tasks, err := r.loadTasks(ctx, userID)
	if err != nil {
		return productivity.Snapshot{}, err
	}
	return productivity.Snapshot{Tasks: tasks, Goals: goals}, nil
}

func (r *SQLSnapshotRepository) loadGoals(ctx context.Context, userID string) ([]productivity.Goal, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT id, title, progress
		FROM goals
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("error listing goals: %w", err)
	}
	defer rows.Close()

	var goals []productivity.Goal
	index := make(map[string]int)
	for rows.Next() {
		var g productivity.Goal
		if err := rows.Scan(&g.ID, &g.Title, &g.Progress); err != nil {
			return nil, fmt.Errorf("error scanning goal: %w", err)
		}
		index[g.ID] = len(goals)
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}

	planRows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT p.goal_id, p.title, p.weekday
		FROM goal_plan_entries p
		JOIN goals g ON g.id = p.goal_id
		WHERE g.user_id = ?
		ORDER BY p.goal_id ASC, p.sort_order ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("error listing weekly plan entries: %w", err)
	}
	defer planRows.Close()

	for planRows.Next() {
		var (
			goalID string
			entry  productivity.PlanEntry
		)
		if err := planRows.Scan(&goalID, &entry.Title, &entry.Weekday); err != nil {
			return nil, fmt.Errorf("error scanning weekly plan entry: %w", err)
		}
		if i, ok := index[goalID]; ok {
			goals[i].WeeklyPlan = append(goals[i].WeeklyPlan, entry)
		}
	}
	if err := planRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weekly plan entries: %w", err)
	}
	return goals, nil
}

func (r *SQLSnapshotRepository) loadTasks(ctx context.Context, userID string) ([]productivity.Task, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT id, title, status, created_at, completed_at, due_at, start_at,
		       goal_id, project, priority
		FROM tasks
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []productivity.Task
	index := make(map[string]int)
	for rows.Next() {
		var (
			t           productivity.Task
			status      string
			createdAt   int64
			completedAt sql.NullInt64
			dueAt       sql.NullInt64
			startAt     sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Title, &status, &createdAt, &completedAt, &dueAt, &startAt,
			&t.GoalID, &t.Project, &t.Priority); err != nil {
			return nil, fmt.Errorf("error scanning task: %w", err)
		}
		t.Status = productivity.TaskStatus(status)
		if createdAt > 0 {
			t.CreatedAt = time.Unix(createdAt, 0).UTC()
		}
		t.CompletedAt = fromNullInt64(completedAt)
		t.Due = fromNullInt64(dueAt)
		t.Start = fromNullInt64(startAt)
		index[t.ID] = len(tasks)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	linkRows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT l.task_id, l.goal_id
		FROM task_goals l
		JOIN tasks t ON t.id = l.task_id
		WHERE t.user_id = ?
		ORDER BY l.task_id ASC, l.sort_order ASC, l.goal_id ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("error listing task goal links: %w", err)
	}
	defer linkRows.Close()

	for linkRows.Next() {
		var taskID, goalID string
		if err := linkRows.Scan(&taskID, &goalID); err != nil {
			return nil, fmt.Errorf("error scanning task goal link: %w", err)
		}
		if i, ok := index[taskID]; ok {
			tasks[i].GoalIDs = append(tasks[i].GoalIDs, goalID)
		}
	}
	if err := linkRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task goal links: %w", err)
	}
	return tasks, nil
}
