package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type Task struct {
	ID            string
	Name          string
	Type          string
	Status        string
	Progress      float64
	Message       string
	Error         string
	Result        string
	RequestParams string `db:"request_params"`
	CreatedAt     int64  `db:"created_at"`
	Cancelled     bool
}

type UpdatableTaskFields struct {
	Status    *string
	Progress  *float64
	Message   *string
	Error     *string
	Result    *string
	Cancelled *bool
	CreatedAt *int64
}

func (db *DB) ListTasks(conn Queryable, offset, limit int) ([]Task, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("id", "name", "type", "status", "progress", "message", "error", "result",
		"request_params", "created_at", "cancelled").
		From("tasks").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	tasks := []Task{}
	err := conn.Select(&tasks, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return tasks, nil
}

func (db *DB) InsertTask(conn Queryable, task *Task) error {
	_, err := qb.Insert("tasks").Columns("id", "name", "type", "status", "progress", "message", "error",
		"result", "request_params", "created_at", "cancelled").Values(
		task.ID, task.Name, task.Type, task.Status, task.Progress, task.Message, task.Error,
		task.Result, task.RequestParams, task.CreatedAt, task.Cancelled,
	).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetTask(conn Queryable, id string) (Task, error) {
	query, args := qb.Select("id", "name", "type", "status", "progress", "message", "error", "result",
		"request_params", "created_at", "cancelled").
		From("tasks").
		Where(qb.Eq{"id": id}).MustSql()

	task := Task{}
	err := conn.Get(&task, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrEntityNotFound
		}

		return Task{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return task, nil
}

func (db *DB) UpdateTask(conn Queryable, id string, fields UpdatableTaskFields) error {
	query := qb.Update("tasks")

	if fields.Status != nil {
		query = query.Set("status", fields.Status)
	}

	if fields.Progress != nil {
		query = query.Set("progress", fields.Progress)
	}

	if fields.Message != nil {
		query = query.Set("message", fields.Message)
	}

	if fields.Error != nil {
		query = query.Set("error", fields.Error)
	}

	if fields.Result != nil {
		query = query.Set("result", fields.Result)
	}

	if fields.Cancelled != nil {
		query = query.Set("cancelled", fields.Cancelled)
	}

	if fields.CreatedAt != nil {
		query = query.Set("created_at", fields.CreatedAt)
	}

	result, err := query.Where(qb.Eq{"id": id}).RunWith(conn).Exec()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	if rows == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (db *DB) DeleteTask(conn Queryable, id string) error {
	result, err := qb.Delete("tasks").Where(qb.Eq{"id": id}).RunWith(conn).Exec()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	if rows == 0 {
		return ErrEntityNotFound
	}

	return nil
}

func (db *DB) DeleteAllTasks(conn Queryable) (int64, error) {
	result, err := qb.Delete("tasks").RunWith(conn).Exec()
	if err != nil {
		return 0, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return rows, nil
}

func (db *DB) GetTaskCount(conn Queryable) (int64, error) {
	query, args := qb.Select("COUNT(*)").From("tasks").MustSql()

	var count int64
	err := conn.Get(&count, query, args...)
	if err != nil {
		return 0, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return count, nil
}
