package models

import "time"

// Response is the JSON envelope every API endpoint returns.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RegisterCustomerRequest is the body of POST /api/customers/register.
type RegisterCustomerRequest struct {
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// CustomerLoginRequest is the body of POST /api/customers/login.
type CustomerLoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// BusinessLoginRequest is the body of POST /api/business/login.
type BusinessLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest is the body of PUT /api/customers/profile.
type UpdateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// CheckInRequest is the body of POST /api/customers/checkin.
type CheckInRequest struct {
	Code string `json:"code"`
}

// AwardPointsRequest is the body of POST /api/business/award-points.
type AwardPointsRequest struct {
	CustomerID string `json:"customer_id"`
	Points     int    `json:"points"`
	Reason     string `json:"reason"`
}

// RewardInput carries the editable reward fields for create and update.
type RewardInput struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	PointsRequired int            `json:"points_required"`
	Category       RewardCategory `json:"category"`
	Value          string         `json:"value"`
	IsActive       *bool          `json:"is_active"`
	ValidFrom      *time.Time     `json:"valid_from"`
	ValidUntil     *time.Time     `json:"valid_until"`
	MaxRedemptions *int           `json:"max_redemptions"`
	Terms          string         `json:"terms"`
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	Token    string    `json:"token"`
	Customer *Customer `json:"customer,omitempty"`
	Business *Business `json:"business,omitempty"`
}

// CheckInResult is returned by a successful check-in.
type CheckInResult struct {
	PointsEarned    int `json:"points_earned"`
	TotalPoints     int `json:"total_points"`
	AvailablePoints int `json:"available_points"`
	TotalVisits     int `json:"total_visits"`
}

// Redemption is returned by a successful reward redemption.
type Redemption struct {
	Reward          Reward           `json:"reward"`
	Record          RedemptionRecord `json:"record"`
	PointsUsed      int              `json:"points_used"`
	RemainingPoints int              `json:"remaining_points"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

// NewPagination computes page metadata for total items at page/limit.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// VisitPage is a page of a customer's visit history.
type VisitPage struct {
	Visits     []Visit    `json:"visits"`
	Pagination Pagination `json:"pagination"`
}

// CustomerPage is a page of the business customer listing.
type CustomerPage struct {
	Customers  []Customer `json:"customers"`
	Pagination Pagination `json:"pagination"`
}

// AvailableRewards is the customer's affordable reward list.
type AvailableRewards struct {
	Rewards        []Reward `json:"rewards"`
	CustomerPoints int      `json:"customer_points"`
}

// ClaimedReward joins a redemption record with its reward.
type ClaimedReward struct {
	Reward     Reward    `json:"reward"`
	ClaimedID  string    `json:"claimed_id"`
	RedeemedAt time.Time `json:"redeemed_at"`
	PointsUsed int       `json:"points_used"`
}

// CurrentCodes is the point-of-sale payload.
type CurrentCodes struct {
	DigitCode   string    `json:"digit_code"`
	QRCode      string    `json:"qr_code"`
	QRCodeImage string    `json:"qr_code_image,omitempty"` // data:image/png;base64,...
	ExpiresAt   time.Time `json:"expires_at"`
}

// VisitWithCustomer is a visit joined with the customer's display fields.
type VisitWithCustomer struct {
	Visit
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// RecentClaim is a redemption shown on the business dashboard.
type RecentClaim struct {
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Phone       string    `json:"phone"`
	RewardID    string    `json:"reward_id"`
	RewardTitle string    `json:"reward_title"`
	RewardValue string    `json:"reward_value"`
	RedeemedAt  time.Time `json:"redeemed_at"`
	PointsUsed  int       `json:"points_used"`
}

// DashboardStats are the headline counters of the business dashboard.
type DashboardStats struct {
	TodayVisits    int `json:"today_visits"`
	TotalCustomers int `json:"total_customers"`
	TotalVisits    int `json:"total_visits"`
	ActiveRewards  int `json:"active_rewards"`
}

// Dashboard is the business dashboard payload.
type Dashboard struct {
	Stats        DashboardStats      `json:"stats"`
	RecentVisits []VisitWithCustomer `json:"recent_visits"`
	TopCustomers []Customer          `json:"top_customers"`
	RecentClaims []RecentClaim       `json:"recent_claims"`
	CurrentCode  CheckInCode         `json:"current_code"`
}
