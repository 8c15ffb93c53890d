package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/models"
)

const rewardColumns = `id, title, description, points_required, category, value,
	is_active, valid_from, valid_until, max_redemptions, current_redemptions,
	terms, created_at, updated_at`

// prefixed qualifies every column in cols with a table alias.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// scanReward scans a reward row. Any extra destinations are scanned first,
// for queries that select joined columns ahead of the reward.
func scanReward(row rowScanner, extra ...any) (models.Reward, error) {
	var r models.Reward
	var validFrom, validUntil sql.NullString
	var maxRedemptions sql.NullInt64
	var createdAt, updatedAt string

	dest := append(extra,
		&r.ID,
		&r.Title,
		&r.Description,
		&r.PointsRequired,
		&r.Category,
		&r.Value,
		&r.IsActive,
		&validFrom,
		&validUntil,
		&maxRedemptions,
		&r.CurrentRedemptions,
		&r.Terms,
		&createdAt,
		&updatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return r, err
	}

	var err error
	if r.ValidFrom, err = parseNullTime(validFrom); err != nil {
		return r, err
	}
	if r.ValidUntil, err = parseNullTime(validUntil); err != nil {
		return r, err
	}
	if maxRedemptions.Valid {
		n := int(maxRedemptions.Int64)
		r.MaxRedemptions = &n
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return r, err
	}
	return r, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// InsertReward stores a new reward.
func (db *DB) InsertReward(ctx context.Context, r models.Reward) error {
	_, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO rewards (`+rewardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Title,
		r.Description,
		r.PointsRequired,
		r.Category,
		r.Value,
		r.IsActive,
		formatNullTime(r.ValidFrom),
		formatNullTime(r.ValidUntil),
		nullInt(r.MaxRedemptions),
		r.CurrentRedemptions,
		r.Terms,
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		return storeErr("insert reward", err)
	}
	return nil
}

// GetReward returns a reward by id.
func (db *DB) GetReward(ctx context.Context, id string) (models.Reward, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT `+rewardColumns+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reward{}, apperr.NotFound("reward", id)
	}
	if err != nil {
		return models.Reward{}, apperr.Store("get reward", err)
	}
	return r, nil
}

// UpdateReward replaces the editable fields of a reward. The redemption
// counter is left untouched.
func (db *DB) UpdateReward(ctx context.Context, r models.Reward) error {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE rewards SET
			title = ?, description = ?, points_required = ?, category = ?, value = ?,
			is_active = ?, valid_from = ?, valid_until = ?, max_redemptions = ?,
			terms = ?, updated_at = ?
		WHERE id = ?`,
		r.Title,
		r.Description,
		r.PointsRequired,
		r.Category,
		r.Value,
		r.IsActive,
		formatNullTime(r.ValidFrom),
		formatNullTime(r.ValidUntil),
		nullInt(r.MaxRedemptions),
		r.Terms,
		formatTime(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return storeErr("update reward", err)
	}
	return requireRow(res, "reward", r.ID)
}

// DeleteReward removes a reward. Redemption history keeps its reward id
// and title.
func (db *DB) DeleteReward(ctx context.Context, id string) error {
	res, err := db.q(ctx).ExecContext(ctx, `DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return apperr.Store("delete reward", err)
	}
	return requireRow(res, "reward", id)
}

// ListRewards returns every reward ordered by points required.
func (db *DB) ListRewards(ctx context.Context) ([]models.Reward, error) {
	return db.queryRewards(ctx,
		`SELECT `+rewardColumns+` FROM rewards ORDER BY points_required ASC, created_at ASC`)
}

// ListActiveRewardsUpTo returns active rewards costing at most maxPoints,
// cheapest first. Window and cap checks are left to the caller.
func (db *DB) ListActiveRewardsUpTo(ctx context.Context, maxPoints int) ([]models.Reward, error) {
	return db.queryRewards(ctx,
		`SELECT `+rewardColumns+` FROM rewards
		WHERE is_active = 1 AND points_required <= ?
		ORDER BY points_required ASC, created_at ASC`, maxPoints)
}

// CountActiveRewards counts rewards flagged active.
func (db *DB) CountActiveRewards(ctx context.Context) (int, error) {
	var n int
	if err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rewards WHERE is_active = 1`).Scan(&n); err != nil {
		return 0, apperr.Store("count rewards", err)
	}
	return n, nil
}

// ConsumeRedemption increments the redemption counter if, at now, the
// reward is active, inside its window and below its cap. It reports
// whether a row was updated; false means the reward is missing or
// unavailable.
func (db *DB) ConsumeRedemption(ctx context.Context, id string, now time.Time) (bool, error) {
	ts := formatTime(now)
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE rewards
		SET current_redemptions = current_redemptions + 1, updated_at = ?
		WHERE id = ?
			AND is_active = 1
			AND (valid_from IS NULL OR valid_from <= ?)
			AND (valid_until IS NULL OR valid_until >= ?)
			AND (max_redemptions IS NULL OR current_redemptions < max_redemptions)`,
		ts, id, ts, ts)
	if err != nil {
		return false, apperr.Store("consume redemption", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Store("consume redemption", err)
	}
	return n > 0, nil
}

func (db *DB) queryRewards(ctx context.Context, query string, args ...any) ([]models.Reward, error) {
	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store("query rewards", err)
	}
	defer rows.Close()

	rewards := []models.Reward{}
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, apperr.Store("scan reward", err)
		}
		rewards = append(rewards, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("iterate rewards", err)
	}
	return rewards, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
