// Package store keeps survey templates and captured instances in SQLite.
// It knows nothing about sync policy or form semantics: version checks and
// answer merging happen in the callers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mbolis/field-survey/database"
	"github.com/mbolis/field-survey/model"
)

var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the database at path and wraps it. Close releases it.
func Open(path string) (*Store, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

// GetTemplate returns ErrNotFound when no template has the id.
func (s *Store) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, version, description, metadata, sections
		FROM survey_template
		WHERE id = ?`,
		id,
	)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("store.get_template %q: %w", id, err)
	}
	return t, nil
}

// PutTemplate inserts t or replaces the stored template with the same id
// wholesale. It does not look at versions.
func (s *Store) PutTemplate(ctx context.Context, t *model.Template) error {
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("store.put_template.metadata: %w", err)
	}
	sections, err := json.Marshal(t.Sections)
	if err != nil {
		return fmt.Errorf("store.put_template.sections: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO survey_template (id, title, version, description, metadata, sections)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			version = excluded.version,
			description = excluded.description,
			metadata = excluded.metadata,
			sections = excluded.sections`,
		t.ID, t.Title, t.Version, t.Description, string(metadata), string(sections),
	)
	if err != nil {
		return fmt.Errorf("store.put_template %q: %w", t.ID, err)
	}
	return nil
}

// DeleteTemplate removes the template and every instance referencing it.
// Instances are removed even when the template itself is already gone, in
// which case ErrNotFound is still reported.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	var found bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM survey_template WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		found = n > 0

		_, err = tx.ExecContext(ctx, `DELETE FROM survey_instance WHERE survey_id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("store.delete_template %q: %w", id, err)
	}
	if !found {
		return fmt.Errorf("store.delete_template %q: %w", id, ErrNotFound)
	}
	return nil
}

// ListTemplates returns a snapshot in no particular order.
func (s *Store) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, version, description, metadata, sections
		FROM survey_template`)
	if err != nil {
		return nil, fmt.Errorf("store.list_templates: %w", err)
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("store.list_templates.scan: %w", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.list_templates: %w", err)
	}
	return templates, nil
}

func scanTemplate(row scanner) (*model.Template, error) {
	var (
		t        model.Template
		metadata string
		sections string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Version, &t.Description, &metadata, &sections)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(sections), &t.Sections); err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}
	return &t, nil
}

// GetInstance returns ErrNotFound when no instance has the id.
func (s *Store) GetInstance(ctx context.Context, id int64) (*model.Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT instance_id, survey_id, created_at, answers
		FROM survey_instance
		WHERE instance_id = ?`,
		id,
	)
	inst, err := scanInstance(row)
	if err != nil {
		return nil, fmt.Errorf("store.get_instance %d: %w", id, err)
	}
	return inst, nil
}

// AddInstance stores a new instance and returns the id assigned to it.
// InstanceID on the argument is ignored; a zero CreatedAt means now.
func (s *Store) AddInstance(ctx context.Context, inst model.Instance) (int64, error) {
	createdAt := inst.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	answers := inst.Answers
	if answers == nil {
		answers = model.Answers{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return 0, fmt.Errorf("store.add_instance.answers: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO survey_instance (survey_id, created_at, answers)
		VALUES (?, ?, ?)
		RETURNING instance_id`,
		inst.SurveyID, createdAt.UTC(), string(data),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store.add_instance: %w", err)
	}
	return id, nil
}

// UpdateInstanceAnswers replaces the whole answers mapping of an instance.
func (s *Store) UpdateInstanceAnswers(ctx context.Context, id int64, answers model.Answers) error {
	if answers == nil {
		answers = model.Answers{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("store.update_answers.encode: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE survey_instance
		SET answers = ?
		WHERE instance_id = ?`,
		string(data), id,
	)
	if err != nil {
		return fmt.Errorf("store.update_answers %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store.update_answers.verify %d: %w", id, err)
	}
	if n < 1 {
		return fmt.Errorf("store.update_answers %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteInstance(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM survey_instance WHERE instance_id = ?`, id)
	if err != nil {
		return fmt.Errorf("store.delete_instance %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store.delete_instance.verify %d: %w", id, err)
	}
	if n < 1 {
		return fmt.Errorf("store.delete_instance %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListInstancesBySurvey returns every instance whose survey id matches.
// Callers must not rely on the order.
func (s *Store) ListInstancesBySurvey(ctx context.Context, surveyID string) ([]model.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, survey_id, created_at, answers
		FROM survey_instance
		WHERE survey_id = ?`,
		surveyID,
	)
	if err != nil {
		return nil, fmt.Errorf("store.list_instances %q: %w", surveyID, err)
	}
	defer rows.Close()

	instances := []model.Instance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("store.list_instances.scan: %w", err)
		}
		instances = append(instances, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.list_instances %q: %w", surveyID, err)
	}
	return instances, nil
}

func scanInstance(row scanner) (*model.Instance, error) {
	var (
		inst    model.Instance
		answers string
	)
	err := row.Scan(&inst.InstanceID, &inst.SurveyID, &inst.CreatedAt, &answers)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &inst.Answers); err != nil {
		return nil, fmt.Errorf("answers: %w", err)
	}
	return &inst, nil
}
