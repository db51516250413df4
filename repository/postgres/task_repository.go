package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskboard/domain"
	"taskboard/domain/entity"
	"taskboard/domain/repository"
	"taskboard/ordering"
)

const taskColumns = `id, owner_id, title, description, status, priority, category, due_date,
	position, tags, is_recurring, recurrence_frequency, recurrence_end,
	reminder_enabled, reminder_time, reminder_sent, created_at, updated_at`

type taskRow struct {
	ID                  string     `db:"id"`
	OwnerID             string     `db:"owner_id"`
	Title               string     `db:"title"`
	Description         string     `db:"description"`
	Status              string     `db:"status"`
	Priority            string     `db:"priority"`
	Category            string     `db:"category"`
	DueDate             *time.Time `db:"due_date"`
	Position            int        `db:"position"`
	Tags                []string   `db:"tags"`
	IsRecurring         bool       `db:"is_recurring"`
	RecurrenceFrequency string     `db:"recurrence_frequency"`
	RecurrenceEnd       *time.Time `db:"recurrence_end"`
	ReminderEnabled     bool       `db:"reminder_enabled"`
	ReminderTime        *time.Time `db:"reminder_time"`
	ReminderSent        bool       `db:"reminder_sent"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

func (r taskRow) toEntity() *entity.Task {
	t := &entity.Task{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		Status:      entity.TaskStatus(r.Status),
		Priority:    entity.Priority(r.Priority),
		Category:    r.Category,
		DueDate:     r.DueDate,
		Position:    r.Position,
		Tags:        r.Tags,
		Recurrence: entity.Recurrence{
			IsRecurring: r.IsRecurring,
			Frequency:   entity.Frequency(r.RecurrenceFrequency),
			EndDate:     r.RecurrenceEnd,
		},
		Reminder: entity.Reminder{
			Enabled: r.ReminderEnabled,
			Time:    r.ReminderTime,
			Sent:    r.ReminderSent,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	t.Normalize()
	return t
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}

func collectTasks(rows pgx.Rows) ([]*entity.Task, error) {
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[taskRow])
	if err != nil {
		return nil, err
	}
	tasks := make([]*entity.Task, 0, len(collected))
	for _, r := range collected {
		tasks = append(tasks, r.toEntity())
	}
	return tasks, nil
}

// querier is satisfied by both the pool and an open transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements repository.TaskRepository on PostgreSQL
type Store struct {
	db *pgxpool.Pool
}

// NewTaskRepository creates a new PostgreSQL task repository
func NewTaskRepository(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

var _ repository.TaskRepository = (*Store)(nil)

// WithinOwner takes a transaction-scoped advisory lock on the owner before running fn.
// Position uniqueness is deferred to commit, so intermediate shifts may collide.
func (s *Store) WithinOwner(ctx context.Context, ownerID string, fn func(tx repository.OwnerTx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrap("begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, ownerID); err != nil {
		return wrap("lock owner", err)
	}

	if err := fn(&ownerTx{q: tx, ownerID: ownerID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap("commit", err)
	}
	return nil
}

func (s *Store) FindArmedReminders(ctx context.Context, after time.Time, limit int) ([]*entity.Task, error) {
	rows, err := s.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE reminder_enabled AND NOT reminder_sent
		  AND reminder_time IS NOT NULL AND reminder_time > $1
		ORDER BY reminder_time ASC
		LIMIT $2`, after, limit)
	if err != nil {
		return nil, wrap("find armed reminders", err)
	}
	tasks, err := collectTasks(rows)
	return tasks, wrap("find armed reminders", err)
}

func (s *Store) MarkReminderSent(ctx context.Context, taskID string, scheduledFor time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE tasks SET reminder_sent = TRUE
		WHERE id = $1 AND reminder_enabled AND NOT reminder_sent AND reminder_time = $2`,
		taskID, scheduledFor)
	if err != nil {
		return false, wrap("mark reminder sent", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) FindOwner(ctx context.Context, id string) (*entity.Owner, error) {
	var owner entity.Owner
	var prefs map[string]any
	err := s.db.QueryRow(ctx, `SELECT id, email, display_name, preferences FROM owners WHERE id = $1`, id).
		Scan(&owner.ID, &owner.Email, &owner.DisplayName, &prefs)
	if err != nil {
		return nil, wrap("find owner", err)
	}
	owner.Preferences = entity.Preferences(prefs)
	return &owner, nil
}

func (s *Store) SaveOwner(ctx context.Context, owner *entity.Owner) error {
	prefs := map[string]any(owner.Preferences)
	if prefs == nil {
		prefs = map[string]any{}
	}
	_, err := s.db.Exec(ctx, `INSERT INTO owners (id, email, display_name, preferences) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, display_name = EXCLUDED.display_name,
		preferences = EXCLUDED.preferences`,
		owner.ID, owner.Email, owner.DisplayName, prefs)
	return wrap("save owner", err)
}

func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", s.db.Ping(ctx))
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

type ownerTx struct {
	q       querier
	ownerID string
}

func (o *ownerTx) Count(ctx context.Context) (int, error) {
	var n int
	err := o.q.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE owner_id = $1`, o.ownerID).Scan(&n)
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

	_, err = o.q.Exec(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		task.ID, task.OwnerID, task.Title, task.Description, string(task.Status), string(task.Priority),
		task.Category, task.DueDate, task.Position, task.Tags,
		task.Recurrence.IsRecurring, string(task.Recurrence.Frequency), task.Recurrence.EndDate,
		task.Reminder.Enabled, task.Reminder.Time, task.Reminder.Sent,
		task.CreatedAt, task.UpdatedAt,
	)
	return wrap("append", err)
}

func (o *ownerTx) Get(ctx context.Context, id string) (*entity.Task, error) {
	rows, err := o.q.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND owner_id = $2`, id, o.ownerID)
	if err != nil {
		return nil, wrap("get", err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[taskRow])
	if err != nil {
		return nil, wrap("get", err)
	}
	return row.toEntity(), nil
}

func (o *ownerTx) Update(ctx context.Context, task *entity.Task) error {
	task.Normalize()

	tag, err := o.q.Exec(ctx, `UPDATE tasks SET
			title = $1, description = $2, status = $3, priority = $4, category = $5, due_date = $6,
			tags = $7, is_recurring = $8, recurrence_frequency = $9, recurrence_end = $10,
			reminder_enabled = $11, reminder_time = $12, reminder_sent = $13, updated_at = $14
		WHERE id = $15 AND owner_id = $16`,
		task.Title, task.Description, string(task.Status), string(task.Priority), task.Category,
		task.DueDate, task.Tags,
		task.Recurrence.IsRecurring, string(task.Recurrence.Frequency), task.Recurrence.EndDate,
		task.Reminder.Enabled, task.Reminder.Time, task.Reminder.Sent, task.UpdatedAt,
		task.ID, o.ownerID,
	)
	return affectedOne("update", tag, err)
}

func (o *ownerTx) Remove(ctx context.Context, id string) (int, error) {
	var position int
	err := o.q.QueryRow(ctx, `DELETE FROM tasks WHERE id = $1 AND owner_id = $2 RETURNING position`, id, o.ownerID).
		Scan(&position)
	if err != nil {
		return 0, wrap("remove", err)
	}
	return position, nil
}

func (o *ownerTx) ShiftRange(ctx context.Context, r ordering.Range) (int64, error) {
	tag, err := o.q.Exec(ctx,
		`UPDATE tasks SET position = position + $1 WHERE owner_id = $2 AND position BETWEEN $3 AND $4`,
		r.Delta, o.ownerID, r.Min, r.Max)
	if err != nil {
		return 0, wrap("shift range", err)
	}
	return tag.RowsAffected(), nil
}

func (o *ownerTx) SetPosition(ctx context.Context, id string, position int) error {
	tag, err := o.q.Exec(ctx, `UPDATE tasks SET position = $1 WHERE id = $2 AND owner_id = $3`, position, id, o.ownerID)
	return affectedOne("set position", tag, err)
}

func (o *ownerTx) ListOrdered(ctx context.Context) ([]*entity.Task, error) {
	return o.List(ctx, repository.TaskFilter{})
}

func (o *ownerTx) List(ctx context.Context, filter repository.TaskFilter) ([]*entity.Task, error) {
	where := []string{"owner_id = $1"}
	args := []any{o.ownerID}

	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if filter.Status != nil {
		add("status = ?", string(*filter.Status))
	}
	if filter.Priority != nil {
		add("priority = ?", string(*filter.Priority))
	}
	if filter.Category != nil {
		add("category = ?", *filter.Category)
	}
	if filter.Tag != nil {
		add("? = ANY(tags)", *filter.Tag)
	}

	rows, err := o.q.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE `+strings.Join(where, " AND ")+` ORDER BY position ASC`, args...)
	if err != nil {
		return nil, wrap("list", err)
	}
	tasks, err := collectTasks(rows)
	return tasks, wrap("list", err)
}

func affectedOne(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
