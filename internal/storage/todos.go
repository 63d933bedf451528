package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Todo struct {
	UserID     string
	LastSubmit time.Time
	Name       string
	DueDate    string
	MustDo     string
	CanDo      string
	DontDo     string
}

func (s *Store) UpsertTodo(ctx context.Context, todo Todo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO todos (user_id, last_submit, name, due_date, must_do, can_do, dont_do)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_submit = excluded.last_submit,
			name = excluded.name,
			due_date = excluded.due_date,
			must_do = excluded.must_do,
			can_do = excluded.can_do,
			dont_do = excluded.dont_do
	`,
		todo.UserID,
		todo.LastSubmit.Unix(),
		todo.Name,
		todo.DueDate,
		todo.MustDo,
		todo.CanDo,
		todo.DontDo,
	)
	return err
}

func (s *Store) GetTodo(ctx context.Context, userID string) (Todo, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, last_submit, name, due_date, must_do, can_do, dont_do
		FROM todos WHERE user_id = ?`, userID)

	var todo Todo
	var lastSubmit int64
	err := row.Scan(&todo.UserID, &lastSubmit, &todo.Name, &todo.DueDate, &todo.MustDo, &todo.CanDo, &todo.DontDo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Todo{}, false, nil
		}
		return Todo{}, false, err
	}
	todo.LastSubmit = time.Unix(lastSubmit, 0)
	return todo, true, nil
}

// ClearTodo wipes the submitted content but keeps the submission timestamp,
// so the reminder clock is unaffected.
func (s *Store) ClearTodo(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE todos SET name = '', due_date = '', must_do = '', can_do = '', dont_do = ''
		WHERE user_id = ?`, userID)
	return err
}

func (s *Store) ListTodos(ctx context.Context) ([]Todo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, last_submit, name, due_date, must_do, can_do, dont_do
		FROM todos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var todos []Todo
	for rows.Next() {
		var todo Todo
		var lastSubmit int64
		if err := rows.Scan(&todo.UserID, &lastSubmit, &todo.Name, &todo.DueDate, &todo.MustDo, &todo.CanDo, &todo.DontDo); err != nil {
			return nil, err
		}
		todo.LastSubmit = time.Unix(lastSubmit, 0)
		todos = append(todos, todo)
	}
	return todos, rows.Err()
}
