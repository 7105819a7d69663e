package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/manwarsd/dreamboard/internal/story"
)

type Repository interface {
	CreateStory(ctx context.Context, st *story.Story) error
	GetStory(ctx context.Context, id string) (*story.Story, error)
	ListStories(ctx context.Context) ([]*StoryInfo, error)
	CountStories(ctx context.Context) (int, error)
	UpdateStory(ctx context.Context, id string, fn func(*story.Story) error) (*story.Story, error)
	DeleteStory(ctx context.Context, id string) error

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListStoryJobs(ctx context.Context, storyID string, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	ActiveJob(ctx context.Context, storyID string) (*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	CompleteJob(ctx context.Context, id, summary string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateStory(ctx context.Context, st *story.Story) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal story: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO stories (id, title, description, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, st.ID, st.Title, st.Description, string(doc), formatTime(st.CreatedAt), formatTime(st.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetStory(ctx context.Context, id string) (*story.Story, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, "SELECT document FROM stories WHERE id = ?", id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeStory(doc)
}

func (r *SQLiteRepository) ListStories(ctx context.Context) ([]*StoryInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, document, created_at, updated_at
		FROM stories ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []*StoryInfo
	for rows.Next() {
		var info StoryInfo
		var doc, createdAt, updatedAt string
		if err := rows.Scan(&info.ID, &info.Title, &info.Description, &doc, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		st, err := decodeStory(doc)
		if err != nil {
			return nil, fmt.Errorf("story %s: %w", info.ID, err)
		}
		info.SceneCount = len(st.Scenes)
		info.HasFinalVideo = len(st.FinalVideos) > 0
		info.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		info.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		infos = append(infos, &info)
	}
	return infos, rows.Err()
}

func (r *SQLiteRepository) CountStories(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stories").Scan(&count)
	return count, err
}

// UpdateStory loads a story, applies fn and stores the result in one
// transaction. If fn returns an error nothing is written.
func (r *SQLiteRepository) UpdateStory(ctx context.Context, id string, fn func(*story.Story) error) (*story.Story, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var doc string
	err = tx.QueryRowContext(ctx, "SELECT document FROM stories WHERE id = ?", id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, err
	}

	st, err := decodeStory(doc)
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	st.ID = id
	st.UpdatedAt = time.Now().UTC()

	out, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal story: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE stories SET title = ?, description = ?, document = ?, updated_at = ? WHERE id = ?
	`, st.Title, st.Description, string(out), formatTime(st.UpdatedAt), id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *SQLiteRepository) DeleteStory(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM stories WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, story_id, summary, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, j.StoryID, nullString(j.Summary), nullString(j.Error),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

const jobColumns = `id, type, status, story_id, summary, error, created_at, updated_at`

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *SQLiteRepository) ListStoryJobs(ctx context.Context, storyID string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE story_id = ? ORDER BY created_at DESC LIMIT ?
	`, storyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ActiveJob returns the pending or running job of a story, or nil.
func (r *SQLiteRepository) ActiveJob(ctx context.Context, storyID string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE story_id = ? AND status IN ('pending', 'running')
		ORDER BY created_at ASC LIMIT 1
	`, storyID)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) CompleteJob(ctx context.Context, id, summary string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, summary = ?, error = NULL, updated_at = ? WHERE id = ?
	`, JobStatusCompleted, nullString(summary), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var summary, errMsg sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&j.ID, &j.Type, &j.Status, &j.StoryID, &summary, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.Summary = summary.String
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func decodeStory(doc string) (*story.Story, error) {
	var st story.Story
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return nil, fmt.Errorf("decode story: %w", err)
	}
	if st.Scenes == nil {
		st.Scenes = []*story.Scene{}
	}
	if st.FinalVideos == nil {
		st.FinalVideos = []story.Video{}
	}
	return &st, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
