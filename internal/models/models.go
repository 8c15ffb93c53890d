package models

import "time"

// ManualAwardCode is recorded as the check-in code of visits created by a
// manual point award instead of a venue code.
const ManualAwardCode = "MANUAL_AWARD"

// CheckInCode is a rotating venue-wide code shown at the point of sale.
type CheckInCode struct {
	ID         string    `json:"id"`          // uuid
	QRCode     string    `json:"qr_code"`     // long form, e.g. FADESBRAIDS_1760000000000_123456
	DigitCode  string    `json:"digit_code"`  // 6 digits
	ExpiresAt  time.Time `json:"expires_at"`  // RFC3339 timestamp
	IsActive   bool      `json:"is_active"`
	UsageCount int       `json:"usage_count"` // successful validations
	CreatedAt  time.Time `json:"created_at"`
}

// IsCurrent reports whether the code is active and unexpired at now.
func (c CheckInCode) IsCurrent(now time.Time) bool {
	return c.IsActive && c.ExpiresAt.After(now)
}

// Customer is a loyalty member identified by phone number.
type Customer struct {
	ID              string             `json:"id"`
	Phone           string             `json:"phone"`
	PasswordHash    string             `json:"-"`
	FirstName       string             `json:"first_name"`
	LastName        string             `json:"last_name"`
	Email           string             `json:"email,omitempty"`
	TotalPoints     int                `json:"total_points"`     // lifetime earned
	AvailablePoints int                `json:"available_points"` // spendable balance
	TotalVisits     int                `json:"total_visits"`
	LastVisit       *time.Time         `json:"last_visit,omitempty"`
	JoinDate        time.Time          `json:"join_date"`
	IsActive        bool               `json:"is_active"`
	Rewards         []RedemptionRecord `json:"rewards"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// RedemptionRecord is one entry of a customer's redemption history.
type RedemptionRecord struct {
	ID          string    `json:"id"`
	RewardID    string    `json:"reward_id"`
	RewardTitle string    `json:"reward_title"`
	RedeemedAt  time.Time `json:"redeemed_at"`
	PointsUsed  int       `json:"points_used"`
}

// RewardCategory enumerates reward kinds.
type RewardCategory string

const (
	CategoryDiscount     RewardCategory = "discount"
	CategoryFreeService  RewardCategory = "free_service"
	CategoryProduct      RewardCategory = "product"
	CategorySpecialOffer RewardCategory = "special_offer"
)

// Valid reports whether c is one of the known categories.
func (c RewardCategory) Valid() bool {
	switch c {
	case CategoryDiscount, CategoryFreeService, CategoryProduct, CategorySpecialOffer:
		return true
	}
	return false
}

// Reward is a catalog entry customers can redeem points for.
type Reward struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	PointsRequired     int            `json:"points_required"`
	Category           RewardCategory `json:"category"`
	Value              string         `json:"value"` // e.g. "20% off", "Free haircut"
	IsActive           bool           `json:"is_active"`
	ValidFrom          *time.Time     `json:"valid_from,omitempty"`
	ValidUntil         *time.Time     `json:"valid_until,omitempty"`
	MaxRedemptions     *int           `json:"max_redemptions,omitempty"` // nil means unlimited
	CurrentRedemptions int            `json:"current_redemptions"`
	Terms              string         `json:"terms,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Visit is an append-only audit record of a check-in or manual award.
type Visit struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	CheckInCode  string    `json:"check_in_code"`
	PointsEarned int       `json:"points_earned"`
	VisitDate    time.Time `json:"visit_date"`
	Notes        string    `json:"notes,omitempty"`
	IsValid      bool      `json:"is_valid"`
}

// Address is the business postal address.
type Address struct {
	Street  string `json:"street,omitempty" yaml:"street"`
	City    string `json:"city,omitempty" yaml:"city"`
	State   string `json:"state,omitempty" yaml:"state"`
	ZipCode string `json:"zip_code,omitempty" yaml:"zip_code"`
}

// BusinessSettings holds the operator-tunable loyalty parameters.
type BusinessSettings struct {
	PointsPerVisit      int `json:"points_per_visit" yaml:"points_per_visit"`
	CodeRefreshInterval int `json:"code_refresh_interval" yaml:"code_refresh_interval"` // minutes
	WelcomeBonus        int `json:"welcome_bonus" yaml:"welcome_bonus"`
}

// DefaultSettings returns the settings a new business starts with.
func DefaultSettings() BusinessSettings {
	return BusinessSettings{
		PointsPerVisit:      10,
		CodeRefreshInterval: 5,
		WelcomeBonus:        50,
	}
}

// Business is the operator account.
type Business struct {
	ID           string           `json:"id"`
	BusinessName string           `json:"business_name"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"-"`
	Phone        string           `json:"phone,omitempty"`
	Address      Address          `json:"address"`
	Settings     BusinessSettings `json:"settings"`
	IsActive     bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
