package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/models"
)

const businessColumns = `id, business_name, email, password_hash, phone,
	street, city, state, zip_code,
	points_per_visit, code_refresh_interval, welcome_bonus,
	is_active, created_at, updated_at`

func scanBusiness(row rowScanner) (models.Business, error) {
	var b models.Business
	var createdAt, updatedAt string
	err := row.Scan(
		&b.ID,
		&b.BusinessName,
		&b.Email,
		&b.PasswordHash,
		&b.Phone,
		&b.Address.Street,
		&b.Address.City,
		&b.Address.State,
		&b.Address.ZipCode,
		&b.Settings.PointsPerVisit,
		&b.Settings.CodeRefreshInterval,
		&b.Settings.WelcomeBonus,
		&b.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return b, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return b, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return b, err
	}
	return b, nil
}

// InsertBusiness stores a business account. A duplicate email yields
// apperr.ErrConflict.
func (db *DB) InsertBusiness(ctx context.Context, b models.Business) error {
	_, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO businesses (`+businessColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.BusinessName,
		b.Email,
		b.PasswordHash,
		b.Phone,
		b.Address.Street,
		b.Address.City,
		b.Address.State,
		b.Address.ZipCode,
		b.Settings.PointsPerVisit,
		b.Settings.CodeRefreshInterval,
		b.Settings.WelcomeBonus,
		b.IsActive,
		formatTime(b.CreatedAt),
		formatTime(b.UpdatedAt),
	)
	if err != nil {
		return storeErr("insert business", err)
	}
	return nil
}

// GetBusiness returns a business by id.
func (db *DB) GetBusiness(ctx context.Context, id string) (models.Business, error) {
	return db.getBusiness(ctx, `WHERE id = ?`, id)
}

// GetBusinessByEmail looks a business up by login email.
func (db *DB) GetBusinessByEmail(ctx context.Context, email string) (models.Business, error) {
	return db.getBusiness(ctx, `WHERE email = ?`, email)
}

// FirstBusiness returns the oldest business record, which holds the
// settings of the single venue.
func (db *DB) FirstBusiness(ctx context.Context) (models.Business, error) {
	return db.getBusiness(ctx, `ORDER BY created_at ASC LIMIT 1`)
}

func (db *DB) getBusiness(ctx context.Context, clause string, args ...any) (models.Business, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses `+clause, args...)
	b, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		key := "first"
		if len(args) > 0 {
			key, _ = args[0].(string)
		}
		return models.Business{}, apperr.NotFound("business", key)
	}
	if err != nil {
		return models.Business{}, apperr.Store("get business", err)
	}
	return b, nil
}

// CountBusinesses counts business accounts.
func (db *DB) CountBusinesses(ctx context.Context) (int, error) {
	var n int
	if err := db.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM businesses`).Scan(&n); err != nil {
		return 0, apperr.Store("count businesses", err)
	}
	return n, nil
}

// UpdateSettings replaces a business's loyalty settings.
func (db *DB) UpdateSettings(ctx context.Context, id string, s models.BusinessSettings, now time.Time) error {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE businesses
		SET points_per_visit = ?, code_refresh_interval = ?, welcome_bonus = ?, updated_at = ?
		WHERE id = ?`,
		s.PointsPerVisit, s.CodeRefreshInterval, s.WelcomeBonus, formatTime(now), id)
	if err != nil {
		return apperr.Store("update settings", err)
	}
	return requireRow(res, "business", id)
}
