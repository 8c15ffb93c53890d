package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/models"
)

const customerColumns = `id, phone, password_hash, first_name, last_name, email,
	total_points, available_points, total_visits, last_visit, join_date,
	is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (models.Customer, error) {
	var c models.Customer
	var lastVisit sql.NullString
	var joinDate, createdAt, updatedAt string

	err := row.Scan(
		&c.ID,
		&c.Phone,
		&c.PasswordHash,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.TotalPoints,
		&c.AvailablePoints,
		&c.TotalVisits,
		&lastVisit,
		&joinDate,
		&c.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return c, err
	}

	if c.LastVisit, err = parseNullTime(lastVisit); err != nil {
		return c, err
	}
	if c.JoinDate, err = parseTime(joinDate); err != nil {
		return c, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return c, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return c, err
	}
	c.Rewards = []models.RedemptionRecord{}
	return c, nil
}

// InsertCustomer stores a new customer. A duplicate phone number yields
// apperr.ErrConflict.
func (db *DB) InsertCustomer(ctx context.Context, c models.Customer) error {
	query := `INSERT INTO customers (
		id, phone, password_hash, first_name, last_name, email,
		total_points, available_points, total_visits, last_visit, join_date,
		is_active, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.q(ctx).ExecContext(ctx, query,
		c.ID,
		c.Phone,
		c.PasswordHash,
		c.FirstName,
		c.LastName,
		c.Email,
		c.TotalPoints,
		c.AvailablePoints,
		c.TotalVisits,
		formatNullTime(c.LastVisit),
		formatTime(c.JoinDate),
		c.IsActive,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		return storeErr("insert customer", err)
	}
	return nil
}

// GetCustomer returns the customer with its redemption history.
func (db *DB) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	return db.loadCustomer(ctx, row, id)
}

// GetCustomerByPhone looks a customer up by login phone number.
func (db *DB) GetCustomerByPhone(ctx context.Context, phone string) (models.Customer, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE phone = ?`, phone)
	return db.loadCustomer(ctx, row, phone)
}

func (db *DB) loadCustomer(ctx context.Context, row *sql.Row, key string) (models.Customer, error) {
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, apperr.NotFound("customer", key)
	}
	if err != nil {
		return models.Customer{}, apperr.Store("get customer", err)
	}

	c.Rewards, err = db.ListRedemptions(ctx, c.ID)
	if err != nil {
		return models.Customer{}, err
	}
	return c, nil
}

// UpdateCustomerProfile replaces the editable profile fields.
func (db *DB) UpdateCustomerProfile(ctx context.Context, id string, req models.UpdateProfileRequest, now time.Time) error {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE customers SET first_name = ?, last_name = ?, email = ?, updated_at = ?
		WHERE id = ?`,
		req.FirstName, req.LastName, req.Email, formatTime(now), id)
	if err != nil {
		return storeErr("update customer profile", err)
	}
	return requireRow(res, "customer", id)
}

// DeactivateCustomer soft-deletes a customer.
func (db *DB) DeactivateCustomer(ctx context.Context, id string, now time.Time) error {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE customers SET is_active = 0, updated_at = ? WHERE id = ?`,
		formatTime(now), id)
	if err != nil {
		return apperr.Store("deactivate customer", err)
	}
	return requireRow(res, "customer", id)
}

// CreditPoints adds amount to both the lifetime and the spendable balance.
func (db *DB) CreditPoints(ctx context.Context, id string, amount int, now time.Time) error {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE customers
		SET total_points = total_points + ?, available_points = available_points + ?, updated_at = ?
		WHERE id = ?`,
		amount, amount, formatTime(now), id)
	if err != nil {
		return apperr.Store("credit points", err)
	}
	return requireRow(res, "customer", id)
}

// DebitPoints subtracts amount from the spendable balance only if the
// balance covers it. The check and the write are one statement.
func (db *DB) DebitPoints(ctx context.Context, id string, amount int, now time.Time) error {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE customers
		SET available_points = available_points - ?, updated_at = ?
		WHERE id = ? AND available_points >= ?`,
		amount, formatTime(now), id, amount)
	if err != nil {
		return apperr.Store("debit points", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Store("debit points", err)
	}
	if n > 0 {
		return nil
	}

	exists, err := db.customerExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("customer", id)
	}
	return fmt.Errorf("customer %s: %w", id, apperr.ErrInsufficientPoints)
}

// TouchVisit increments the visit counter and stamps the last visit time.
func (db *DB) TouchVisit(ctx context.Context, id string, visitDate time.Time) error {
	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE customers
		SET total_visits = total_visits + 1, last_visit = ?, updated_at = ?
		WHERE id = ?`,
		formatTime(visitDate), formatTime(visitDate), id)
	if err != nil {
		return apperr.Store("record visit", err)
	}
	return requireRow(res, "customer", id)
}

func (db *DB) customerExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, apperr.Store("lookup customer", err)
	}
	return n > 0, nil
}

// InsertRedemption appends one record to a customer's redemption history.
func (db *DB) InsertRedemption(ctx context.Context, customerID string, rec models.RedemptionRecord) error {
	_, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO customer_rewards (id, customer_id, reward_id, reward_title, redeemed_at, points_used)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, customerID, rec.RewardID, rec.RewardTitle, formatTime(rec.RedeemedAt), rec.PointsUsed)
	if err != nil {
		return storeErr("insert redemption", err)
	}
	return nil
}

// ListRedemptions returns a customer's redemption history, newest first.
func (db *DB) ListRedemptions(ctx context.Context, customerID string) ([]models.RedemptionRecord, error) {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT id, reward_id, reward_title, redeemed_at, points_used
		FROM customer_rewards WHERE customer_id = ?
		ORDER BY redeemed_at DESC`, customerID)
	if err != nil {
		return nil, apperr.Store("list redemptions", err)
	}
	defer rows.Close()

	records := []models.RedemptionRecord{}
	for rows.Next() {
		var rec models.RedemptionRecord
		var redeemedAt string
		if err := rows.Scan(&rec.ID, &rec.RewardID, &rec.RewardTitle, &redeemedAt, &rec.PointsUsed); err != nil {
			return nil, apperr.Store("scan redemption", err)
		}
		if rec.RedeemedAt, err = parseTime(redeemedAt); err != nil {
			return nil, apperr.Store("scan redemption", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("iterate redemptions", err)
	}
	return records, nil
}

// ListClaimedRewards joins a customer's redemptions with the rewards that
// still exist, newest first.
func (db *DB) ListClaimedRewards(ctx context.Context, customerID string) ([]models.ClaimedReward, error) {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT cr.id, cr.redeemed_at, cr.points_used, `+prefixed("r", rewardColumns)+`
		FROM customer_rewards cr
		JOIN rewards r ON r.id = cr.reward_id
		WHERE cr.customer_id = ?
		ORDER BY cr.redeemed_at DESC`, customerID)
	if err != nil {
		return nil, apperr.Store("list claimed rewards", err)
	}
	defer rows.Close()

	claimed := []models.ClaimedReward{}
	for rows.Next() {
		var cr models.ClaimedReward
		var redeemedAt string
		reward, err := scanReward(rows, &cr.ClaimedID, &redeemedAt, &cr.PointsUsed)
		if err != nil {
			return nil, apperr.Store("scan claimed reward", err)
		}
		if cr.RedeemedAt, err = parseTime(redeemedAt); err != nil {
			return nil, apperr.Store("scan claimed reward", err)
		}
		cr.Reward = reward
		claimed = append(claimed, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("iterate claimed rewards", err)
	}
	return claimed, nil
}

// SearchCustomers returns one page of active customers matching search
// against name, phone or email, ordered by lifetime points descending,
// together with the total match count.
func (db *DB) SearchCustomers(ctx context.Context, search string, limit, offset int) ([]models.Customer, int, error) {
	where := `WHERE is_active = 1`
	var args []any
	if search != "" {
		like := "%" + escapeLike(search) + "%"
		where += ` AND (first_name LIKE ? ESCAPE '\' OR last_name LIKE ? ESCAPE '\'
			OR phone LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`
		args = append(args, like, like, like, like)
	}

	var total int
	if err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers `+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Store("count customers", err)
	}

	customers, err := db.queryCustomers(ctx,
		`SELECT `+customerColumns+` FROM customers `+where+`
		ORDER BY total_points DESC, created_at ASC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// TopCustomers returns the active customers with the most lifetime points.
func (db *DB) TopCustomers(ctx context.Context, limit int) ([]models.Customer, error) {
	return db.queryCustomers(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE is_active = 1
		ORDER BY total_points DESC, created_at ASC LIMIT ?`, limit)
}

// CountActiveCustomers counts customers that have not been soft-deleted.
func (db *DB) CountActiveCustomers(ctx context.Context) (int, error) {
	var n int
	if err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE is_active = 1`).Scan(&n); err != nil {
		return 0, apperr.Store("count customers", err)
	}
	return n, nil
}

func (db *DB) queryCustomers(ctx context.Context, query string, args ...any) ([]models.Customer, error) {
	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store("query customers", err)
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, apperr.Store("scan customer", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("iterate customers", err)
	}
	return customers, nil
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Store("rows affected", err)
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}
