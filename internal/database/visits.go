package database

import (
	"context"
	"time"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/models"
)

// InsertVisit appends a visit record.
func (db *DB) InsertVisit(ctx context.Context, v models.Visit) error {
	_, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO visits (id, customer_id, check_in_code, points_earned, visit_date, notes, is_valid)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.CustomerID, v.CheckInCode, v.PointsEarned, formatTime(v.VisitDate), v.Notes, v.IsValid)
	if err != nil {
		return storeErr("insert visit", err)
	}
	return nil
}

// ListVisits returns one page of a customer's visits, newest first, and the
// customer's total visit count.
func (db *DB) ListVisits(ctx context.Context, customerID string, limit, offset int) ([]models.Visit, int, error) {
	var total int
	if err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE customer_id = ?`, customerID).Scan(&total); err != nil {
		return nil, 0, apperr.Store("count visits", err)
	}

	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT id, customer_id, check_in_code, points_earned, visit_date, notes, is_valid
		FROM visits WHERE customer_id = ?
		ORDER BY visit_date DESC LIMIT ? OFFSET ?`, customerID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store("list visits", err)
	}
	defer rows.Close()

	visits := []models.Visit{}
	for rows.Next() {
		var v models.Visit
		var visitDate string
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.CheckInCode, &v.PointsEarned, &visitDate, &v.Notes, &v.IsValid); err != nil {
			return nil, 0, apperr.Store("scan visit", err)
		}
		if v.VisitDate, err = parseTime(visitDate); err != nil {
			return nil, 0, apperr.Store("scan visit", err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Store("iterate visits", err)
	}
	return visits, total, nil
}

// CountVisitsSince counts visits at or after since.
func (db *DB) CountVisitsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE visit_date >= ?`, formatTime(since)).Scan(&n); err != nil {
		return 0, apperr.Store("count visits", err)
	}
	return n, nil
}

// CountVisits counts every visit ever recorded.
func (db *DB) CountVisits(ctx context.Context) (int, error) {
	var n int
	if err := db.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&n); err != nil {
		return 0, apperr.Store("count visits", err)
	}
	return n, nil
}

// RecentVisits returns the latest visits joined with customer names.
func (db *DB) RecentVisits(ctx context.Context, limit int) ([]models.VisitWithCustomer, error) {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT v.id, v.customer_id, v.check_in_code, v.points_earned, v.visit_date, v.notes, v.is_valid,
			c.first_name, c.last_name, c.phone
		FROM visits v
		JOIN customers c ON c.id = v.customer_id
		ORDER BY v.visit_date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.Store("recent visits", err)
	}
	defer rows.Close()

	visits := []models.VisitWithCustomer{}
	for rows.Next() {
		var v models.VisitWithCustomer
		var visitDate string
		err := rows.Scan(
			&v.ID, &v.CustomerID, &v.CheckInCode, &v.PointsEarned, &visitDate, &v.Notes, &v.IsValid,
			&v.FirstName, &v.LastName, &v.Phone,
		)
		if err != nil {
			return nil, apperr.Store("scan recent visit", err)
		}
		if v.VisitDate, err = parseTime(visitDate); err != nil {
			return nil, apperr.Store("scan recent visit", err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("iterate recent visits", err)
	}
	return visits, nil
}

// RecentClaims returns the latest redemptions across all customers.
func (db *DB) RecentClaims(ctx context.Context, limit int) ([]models.RecentClaim, error) {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT c.first_name, c.last_name, c.phone, cr.reward_id, cr.reward_title,
			COALESCE(r.value, ''), cr.redeemed_at, cr.points_used
		FROM customer_rewards cr
		JOIN customers c ON c.id = cr.customer_id
		LEFT JOIN rewards r ON r.id = cr.reward_id
		ORDER BY cr.redeemed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.Store("recent claims", err)
	}
	defer rows.Close()

	claims := []models.RecentClaim{}
	for rows.Next() {
		var rc models.RecentClaim
		var redeemedAt string
		err := rows.Scan(&rc.FirstName, &rc.LastName, &rc.Phone, &rc.RewardID, &rc.RewardTitle,
			&rc.RewardValue, &redeemedAt, &rc.PointsUsed)
		if err != nil {
			return nil, apperr.Store("scan recent claim", err)
		}
		if rc.RedeemedAt, err = parseTime(redeemedAt); err != nil {
			return nil, apperr.Store("scan recent claim", err)
		}
		claims = append(claims, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("iterate recent claims", err)
	}
	return claims, nil
}
