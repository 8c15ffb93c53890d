package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/models"
)

// InsertCode stores a newly generated check-in code. A clash on either
// token yields apperr.ErrConflict so the caller can regenerate.
func (db *DB) InsertCode(ctx context.Context, code models.CheckInCode) error {
	_, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO checkin_codes (id, qr_code, digit_code, expires_at, is_active, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.ID,
		code.QRCode,
		code.DigitCode,
		formatTime(code.ExpiresAt),
		code.IsActive,
		code.UsageCount,
		formatTime(code.CreatedAt),
	)
	if err != nil {
		return storeErr("insert checkin code", err)
	}
	return nil
}

// FindCurrentCode returns the newest active code that has not expired at
// now. It reports false when there is none.
func (db *DB) FindCurrentCode(ctx context.Context, now time.Time) (models.CheckInCode, bool, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT id, qr_code, digit_code, expires_at, is_active, usage_count, created_at
		FROM checkin_codes
		WHERE is_active = 1 AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1`, formatTime(now))

	var c models.CheckInCode
	var expiresAt, createdAt string
	err := row.Scan(&c.ID, &c.QRCode, &c.DigitCode, &expiresAt, &c.IsActive, &c.UsageCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CheckInCode{}, false, nil
	}
	if err != nil {
		return models.CheckInCode{}, false, apperr.Store("find current code", err)
	}
	if c.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return models.CheckInCode{}, false, apperr.Store("find current code", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.CheckInCode{}, false, apperr.Store("find current code", err)
	}
	return c, true, nil
}

// UseCode increments the usage counter of the code whose long or short
// form equals code, provided it is active and unexpired at now. It
// reports whether such a code existed.
func (db *DB) UseCode(ctx context.Context, code string, now time.Time) (bool, error) {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE checkin_codes SET usage_count = usage_count + 1
		WHERE (qr_code = ? OR digit_code = ?) AND is_active = 1 AND expires_at > ?`,
		code, code, formatTime(now))
	if err != nil {
		return false, apperr.Store("use checkin code", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Store("use checkin code", err)
	}
	return n > 0, nil
}

// DeleteExpiredCodes removes codes whose expiry is at or before now.
func (db *DB) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.q(ctx).ExecContext(ctx,
		`DELETE FROM checkin_codes WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, apperr.Store("delete expired codes", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Store("delete expired codes", err)
	}
	return n, nil
}
