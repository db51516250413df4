package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"taskboard/domain"
	"taskboard/domain/entity"
	"taskboard/domain/repository"
	"taskboard/ordering"
)

const taskColumns = `id, owner_id, title, description, status, priority, category, due_date,
	position, tags, is_recurring, recurrence_frequency, recurrence_end,
	reminder_enabled, reminder_time, reminder_sent, created_at, updated_at`

// taskRow is the flat column layout of the tasks table
type taskRow struct {
	ID                  string       `db:"id"`
	OwnerID             string       `db:"owner_id"`
	Title               string       `db:"title"`
	Description         string       `db:"description"`
	Status              string       `db:"status"`
	Priority            string       `db:"priority"`
	Category            string       `db:"category"`
	DueDate             sql.NullTime `db:"due_date"`
	Position            int          `db:"position"`
	Tags                jsonStrings  `db:"tags"`
	IsRecurring         bool         `db:"is_recurring"`
	RecurrenceFrequency string       `db:"recurrence_frequency"`
	RecurrenceEnd       sql.NullTime `db:"recurrence_end"`
	ReminderEnabled     bool         `db:"reminder_enabled"`
	ReminderTime        sql.NullTime `db:"reminder_time"`
	ReminderSent        bool         `db:"reminder_sent"`
	CreatedAt           time.Time    `db:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at"`
}

func (r *taskRow) toEntity() *entity.Task {
	t := &entity.Task{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		Status:      entity.TaskStatus(r.Status),
		Priority:    entity.Priority(r.Priority),
		Category:    r.Category,
		DueDate:     fromNull(r.DueDate),
		Position:    r.Position,
		Tags:        []string(r.Tags),
		Recurrence: entity.Recurrence{
			IsRecurring: r.IsRecurring,
			Frequency:   entity.Frequency(r.RecurrenceFrequency),
			EndDate:     fromNull(r.RecurrenceEnd),
		},
		Reminder: entity.Reminder{
			Enabled: r.ReminderEnabled,
			Time:    fromNull(r.ReminderTime),
			Sent:    r.ReminderSent,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	t.Normalize()
	return t
}

func fromNull(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func toNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// wrap maps backend errors onto the domain sentinels
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}

// Store implements repository.TaskRepository on MySQL or SQLite
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

// NewTaskRepository creates a task repository for a MySQL or SQLite connection
func NewTaskRepository(db *sqlx.DB) (*Store, error) {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

var _ repository.TaskRepository = (*Store)(nil)

func (s *Store) WithinOwner(ctx context.Context, ownerID string, fn func(tx repository.OwnerTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrap("begin", err)
	}
	defer tx.Rollback()

	if err := s.dialect.lockOwner(ctx, tx, ownerID); err != nil {
		return wrap("lock owner", err)
	}

	if err := fn(&ownerTx{tx: tx, ownerID: ownerID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrap("commit", err)
	}
	return nil
}

func (s *Store) FindArmedReminders(ctx context.Context, after time.Time, limit int) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE reminder_enabled = 1 AND reminder_sent = 0
		  AND reminder_time IS NOT NULL AND reminder_time > ?
		ORDER BY reminder_time ASC
		LIMIT ?`

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, after.UTC(), limit); err != nil {
		return nil, wrap("find armed reminders", err)
	}
	return toEntities(rows), nil
}

func (s *Store) MarkReminderSent(ctx context.Context, taskID string, scheduledFor time.Time) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, wrap("begin", err)
	}
	defer tx.Rollback()

	var current struct {
		Enabled bool         `db:"reminder_enabled"`
		Time    sql.NullTime `db:"reminder_time"`
		Sent    bool         `db:"reminder_sent"`
	}
	err = tx.GetContext(ctx, &current,
		`SELECT reminder_enabled, reminder_time, reminder_sent FROM tasks WHERE id = ?`+s.dialect.forUpdate, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("mark reminder sent", err)
	}

	// the reminder was disabled, fired or rescheduled while delivery was in flight
	if !current.Enabled || current.Sent || !current.Time.Valid || !current.Time.Time.Equal(scheduledFor) {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET reminder_sent = 1 WHERE id = ?`, taskID); err != nil {
		return false, wrap("mark reminder sent", err)
	}
	if err := tx.Commit(); err != nil {
		return false, wrap("commit", err)
	}
	return true, nil
}

// ownerRow is an owners row with its JSON preferences column
type ownerRow struct {
	ID          string     `db:"id"`
	Email       string     `db:"email"`
	DisplayName string     `db:"display_name"`
	Preferences jsonObject `db:"preferences"`
}

func (s *Store) FindOwner(ctx context.Context, id string) (*entity.Owner, error) {
	var row ownerRow
	err := s.db.GetContext(ctx, &row, `SELECT id, email, display_name, preferences FROM owners WHERE id = ?`, id)
	if err != nil {
		return nil, wrap("find owner", err)
	}
	return &entity.Owner{
		ID:          row.ID,
		Email:       row.Email,
		DisplayName: row.DisplayName,
		Preferences: entity.Preferences(row.Preferences),
	}, nil
}

func (s *Store) SaveOwner(ctx context.Context, owner *entity.Owner) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsertOwner,
		owner.ID, owner.Email, owner.DisplayName, jsonObject(owner.Preferences))
	return wrap("save owner", err)
}

func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

func toEntities(rows []taskRow) []*entity.Task {
	tasks := make([]*entity.Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, rows[i].toEntity())
	}
	return tasks
}

// ownerTx implements repository.OwnerTx on an open transaction
type ownerTx struct {
	tx      *sqlx.Tx
	ownerID string
}

func (o *ownerTx) Count(ctx context.Context) (int, error) {
	var n int
	err := o.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM tasks WHERE owner_id = ?`, o.ownerID)
	return n, wrap("count", err)
}

func (o *ownerTx) Append(ctx context.Context, task *entity.Task) error {
	n, err := o.Count(ctx)
	if err != nil {
		return err
	}

	task.OwnerID = o.ownerID
	task.Position = n
	task.Normalize()

	query := `INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = o.tx.ExecContext(ctx, query,
		task.ID, task.OwnerID, task.Title, task.Description, string(task.Status), string(task.Priority),
		task.Category, toNull(task.DueDate), task.Position, jsonStrings(task.Tags),
		task.Recurrence.IsRecurring, string(task.Recurrence.Frequency), toNull(task.Recurrence.EndDate),
		task.Reminder.Enabled, toNull(task.Reminder.Time), task.Reminder.Sent,
		task.CreatedAt, task.UpdatedAt,
	)
	return wrap("append", err)
}

func (o *ownerTx) Get(ctx context.Context, id string) (*entity.Task, error) {
	var row taskRow
	err := o.tx.GetContext(ctx, &row,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner_id = ?`, id, o.ownerID)
	if err != nil {
		return nil, wrap("get", err)
	}
	return row.toEntity(), nil
}

func (o *ownerTx) Update(ctx context.Context, task *entity.Task) error {
	task.Normalize()

	query := `UPDATE tasks SET
			title = ?, description = ?, status = ?, priority = ?, category = ?, due_date = ?,
			tags = ?, is_recurring = ?, recurrence_frequency = ?, recurrence_end = ?,
			reminder_enabled = ?, reminder_time = ?, reminder_sent = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`

	res, err := o.tx.ExecContext(ctx, query,
		task.Title, task.Description, string(task.Status), string(task.Priority), task.Category,
		toNull(task.DueDate), jsonStrings(task.Tags),
		task.Recurrence.IsRecurring, string(task.Recurrence.Frequency), toNull(task.Recurrence.EndDate),
		task.Reminder.Enabled, toNull(task.Reminder.Time), task.Reminder.Sent, task.UpdatedAt,
		task.ID, o.ownerID,
	)
	return affectedOne("update", res, err)
}

func (o *ownerTx) Remove(ctx context.Context, id string) (int, error) {
	var position int
	err := o.tx.GetContext(ctx, &position,
		`SELECT position FROM tasks WHERE id = ? AND owner_id = ?`, id, o.ownerID)
	if err != nil {
		return 0, wrap("remove", err)
	}

	res, err := o.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, o.ownerID)
	if err := affectedOne("remove", res, err); err != nil {
		return 0, err
	}
	return position, nil
}

func (o *ownerTx) ShiftRange(ctx context.Context, r ordering.Range) (int64, error) {
	res, err := o.tx.ExecContext(ctx,
		`UPDATE tasks SET position = position + ? WHERE owner_id = ? AND position >= ? AND position <= ?`,
		r.Delta, o.ownerID, r.Min, r.Max)
	if err != nil {
		return 0, wrap("shift range", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("shift range", err)
}

func (o *ownerTx) SetPosition(ctx context.Context, id string, position int) error {
	res, err := o.tx.ExecContext(ctx,
		`UPDATE tasks SET position = ? WHERE id = ? AND owner_id = ?`, position, id, o.ownerID)
	return affectedOne("set position", res, err)
}

func (o *ownerTx) ListOrdered(ctx context.Context) ([]*entity.Task, error) {
	return o.List(ctx, repository.TaskFilter{})
}

func (o *ownerTx) List(ctx context.Context, filter repository.TaskFilter) ([]*entity.Task, error) {
	where := []string{"owner_id = ?"}
	args := []interface{}{o.ownerID}

	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Priority != nil {
		where = append(where, "priority = ?")
		args = append(args, string(*filter.Priority))
	}
	if filter.Category != nil {
		where = append(where, "category = ?")
		args = append(args, *filter.Category)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") + ` ORDER BY position ASC`

	var rows []taskRow
	if err := o.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrap("list", err)
	}

	tasks := make([]*entity.Task, 0, len(rows))
	for i := range rows {
		t := rows[i].toEntity()
		// tags live in a JSON column; filter them here
		if filter.Matches(t) {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func affectedOne(op string, res sql.Result, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
