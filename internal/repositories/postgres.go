package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stayreal/companion/internal/db"
	"github.com/stayreal/companion/internal/models"
)

// PostgresLoggerSettingsRepository provides PostgreSQL-backed persistence for logger settings.
type PostgresLoggerSettingsRepository struct {
	pool db.Pool
}

// NewPostgresLoggerSettingsRepository constructs a settings repository backed by PostgreSQL.
func NewPostgresLoggerSettingsRepository(pool db.Pool) *PostgresLoggerSettingsRepository {
	return &PostgresLoggerSettingsRepository{pool: pool}
}

// Get returns the stored settings, or empty defaults when none were saved yet.
func (r *PostgresLoggerSettingsRepository) Get(ctx context.Context) (models.LoggerSettings, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.LoggerSettings{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT save_directory, selected_friends, auto_save_enabled
        FROM logger_settings
        WHERE id = 1
    `)

	settings := models.LoggerSettings{SelectedFriends: []string{}}
	if err := row.Scan(&settings.SaveDirectory, &settings.SelectedFriends, &settings.AutoSaveEnabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LoggerSettings{SelectedFriends: []string{}}, nil
		}
		return models.LoggerSettings{}, fmt.Errorf("select logger settings: %w", err)
	}
	if settings.SelectedFriends == nil {
		settings.SelectedFriends = []string{}
	}

	return settings, nil
}

// Save replaces the stored settings.
func (r *PostgresLoggerSettingsRepository) Save(ctx context.Context, settings models.LoggerSettings) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	friends := settings.SelectedFriends
	if friends == nil {
		friends = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO logger_settings (id, save_directory, selected_friends, auto_save_enabled, updated_at)
        VALUES (1, $1, $2, $3, NOW())
        ON CONFLICT (id)
        DO UPDATE SET save_directory = EXCLUDED.save_directory,
            selected_friends = EXCLUDED.selected_friends,
            auto_save_enabled = EXCLUDED.auto_save_enabled,
            updated_at = EXCLUDED.updated_at
    `, settings.SaveDirectory, friends, settings.AutoSaveEnabled)
	if err != nil {
		return fmt.Errorf("upsert logger settings: %w", err)
	}

	return nil
}

// PostgresSavedPostRepository provides PostgreSQL-backed persistence for saved posts.
type PostgresSavedPostRepository struct {
	pool db.Pool
}

// NewPostgresSavedPostRepository constructs a saved post repository backed by PostgreSQL.
func NewPostgresSavedPostRepository(pool db.Pool) *PostgresSavedPostRepository {
	return &PostgresSavedPostRepository{pool: pool}
}

const savedPostColumns = `id, user_id, username, moment_id, primary_image_path, secondary_image_path,
            caption, taken_at, saved_at, latitude, longitude`

// Create stores a new saved post. A second post for the same user and moment is a conflict.
func (r *PostgresSavedPostRepository) Create(ctx context.Context, post models.SavedPost) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	savedAt, err := time.Parse(time.RFC3339, post.SavedAt)
	if err != nil {
		return fmt.Errorf("parse saved_at: %w", err)
	}

	var caption sql.NullString
	if post.Caption != nil {
		caption = sql.NullString{String: *post.Caption, Valid: true}
	}
	var latitude, longitude sql.NullFloat64
	if post.Location != nil {
		latitude = sql.NullFloat64{Float64: post.Location.Latitude, Valid: true}
		longitude = sql.NullFloat64{Float64: post.Location.Longitude, Valid: true}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO saved_posts (`+savedPostColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, post.ID, post.UserID, post.Username, post.MomentID, post.PrimaryImagePath, post.SecondaryImagePath,
		caption, post.TakenAt, savedAt.UTC(), latitude, longitude)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert saved post: %w", err)
	}

	return nil
}

// Get fetches a saved post by id.
func (r *PostgresSavedPostRepository) Get(ctx context.Context, id string) (models.SavedPost, error) {
	return r.findOne(ctx, "select saved post", `
        SELECT `+savedPostColumns+`
        FROM saved_posts
        WHERE id = $1
    `, id)
}

// FindByMoment fetches the post saved for the user's moment.
func (r *PostgresSavedPostRepository) FindByMoment(ctx context.Context, userID, momentID string) (models.SavedPost, error) {
	return r.findOne(ctx, "select saved post by moment", `
        SELECT `+savedPostColumns+`
        FROM saved_posts
        WHERE user_id = $1 AND moment_id = $2
    `, userID, momentID)
}

// List returns every saved post, newest first.
func (r *PostgresSavedPostRepository) List(ctx context.Context) ([]models.SavedPost, error) {
	return r.findMany(ctx, "saved posts", `
        SELECT `+savedPostColumns+`
        FROM saved_posts
        ORDER BY saved_at DESC, id
    `)
}

// ListByUser returns the saved posts of one user, newest first.
func (r *PostgresSavedPostRepository) ListByUser(ctx context.Context, userID string) ([]models.SavedPost, error) {
	return r.findMany(ctx, "user saved posts", `
        SELECT `+savedPostColumns+`
        FROM saved_posts
        WHERE user_id = $1
        ORDER BY saved_at DESC, id
    `, userID)
}

// Delete removes a saved post record.
func (r *PostgresSavedPostRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM saved_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete saved post: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// CountByUsername returns the number of saved posts per username.
func (r *PostgresSavedPostRepository) CountByUsername(ctx context.Context) (map[string]int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT username, COUNT(*)
        FROM saved_posts
        GROUP BY username
    `)
	if err != nil {
		return nil, fmt.Errorf("query saved post stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var (
			username string
			count    int64
		)
		if err := rows.Scan(&username, &count); err != nil {
			return nil, fmt.Errorf("scan saved post stats: %w", err)
		}
		stats[username] = int(count)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved post stats: %w", err)
	}

	return stats, nil
}

func (r *PostgresSavedPostRepository) findOne(ctx context.Context, op, query string, args ...any) (models.SavedPost, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.SavedPost{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	post, err := scanSavedPost(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SavedPost{}, ErrNotFound
		}
		return models.SavedPost{}, fmt.Errorf("%s: %w", op, err)
	}

	return post, nil
}

func (r *PostgresSavedPostRepository) findMany(ctx context.Context, what, query string, args ...any) ([]models.SavedPost, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()

	posts := []models.SavedPost{}
	for rows.Next() {
		post, err := scanSavedPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}

	return posts, nil
}

func scanSavedPost(row pgx.Row) (models.SavedPost, error) {
	var (
		post      models.SavedPost
		caption   sql.NullString
		savedAt   time.Time
		latitude  sql.NullFloat64
		longitude sql.NullFloat64
	)

	if err := row.Scan(&post.ID, &post.UserID, &post.Username, &post.MomentID, &post.PrimaryImagePath,
		&post.SecondaryImagePath, &caption, &post.TakenAt, &savedAt, &latitude, &longitude); err != nil {
		return models.SavedPost{}, err
	}

	if caption.Valid {
		c := caption.String
		post.Caption = &c
	}
	if latitude.Valid && longitude.Valid {
		post.Location = &models.Location{Latitude: latitude.Float64, Longitude: longitude.Float64}
	}
	post.SavedAt = savedAt.UTC().Format(time.RFC3339)

	return post, nil
}

var _ LoggerSettingsRepository = (*PostgresLoggerSettingsRepository)(nil)
var _ SavedPostRepository = (*PostgresSavedPostRepository)(nil)
