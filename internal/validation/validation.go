package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/models"
)

var (
	uuidRegex  = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	phoneRegex = regexp.MustCompile(`^\+?[\d\s\-\(\)]+$`)
	emailRegex = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)
)

const minPasswordLength = 6

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Is lets errors.Is(err, apperr.ErrValidation) match field errors.
func (e *ValidationError) Is(target error) bool {
	return target == apperr.ErrValidation
}

// Fields flattens err into field errors for the response envelope.
func Fields(err error) []models.FieldError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return []models.FieldError{{Field: ve.Field, Message: ve.Message}}
	}
	return nil
}

func ValidateRegistration(req models.RegisterCustomerRequest) error {
	if req.Phone == "" {
		return &ValidationError{Field: "phone", Message: "is required"}
	}
	if !phoneRegex.MatchString(req.Phone) {
		return &ValidationError{Field: "phone", Message: "must be a valid phone number"}
	}
	if len(req.Password) < minPasswordLength {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters long", minPasswordLength),
		}
	}
	return ValidateProfile(models.UpdateProfileRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
}

func ValidateProfile(req models.UpdateProfileRequest) error {
	if req.FirstName == "" {
		return &ValidationError{Field: "first_name", Message: "is required"}
	}
	if req.LastName == "" {
		return &ValidationError{Field: "last_name", Message: "is required"}
	}
	if req.Email != "" {
		if err := ValidateEmail(req.Email, "email"); err != nil {
			return err
		}
	}
	return nil
}

func ValidateEmail(email, fieldName string) error {
	if email == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}
	if !emailRegex.MatchString(email) {
		return &ValidationError{Field: fieldName, Message: "must be a valid email address"}
	}
	return nil
}

// ValidateReward checks the editable reward fields. It does not touch the
// redemption counter, which only the catalog mutates.
func ValidateReward(in models.RewardInput) error {
	if in.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if in.Description == "" {
		return &ValidationError{Field: "description", Message: "is required"}
	}
	if in.PointsRequired < 1 {
		return &ValidationError{Field: "points_required", Message: "must be a positive integer"}
	}
	if in.Value == "" {
		return &ValidationError{Field: "value", Message: "is required"}
	}
	if in.Category != "" && !in.Category.Valid() {
		return &ValidationError{
			Field:   "category",
			Message: "must be one of discount, free_service, product, special_offer",
		}
	}
	if in.ValidFrom != nil && in.ValidUntil != nil && in.ValidUntil.Before(*in.ValidFrom) {
		return &ValidationError{Field: "valid_until", Message: "must not be before valid_from"}
	}
	if in.MaxRedemptions != nil && *in.MaxRedemptions < 1 {
		return &ValidationError{Field: "max_redemptions", Message: "must be at least 1 when set"}
	}
	return nil
}

func ValidateSettings(s models.BusinessSettings) error {
	if s.PointsPerVisit < 1 {
		return &ValidationError{Field: "points_per_visit", Message: "must be a positive integer"}
	}
	if s.CodeRefreshInterval < 1 || s.CodeRefreshInterval > 60 {
		return &ValidationError{Field: "code_refresh_interval", Message: "must be between 1 and 60 minutes"}
	}
	if s.WelcomeBonus < 0 {
		return &ValidationError{Field: "welcome_bonus", Message: "must be a non-negative integer"}
	}
	return nil
}

// ValidatePoints requires a strictly positive point amount.
func ValidatePoints(points int, fieldName string) error {
	if points <= 0 {
		return &ValidationError{Field: fieldName, Message: "must be a positive integer"}
	}
	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// NormalizeEmail sanitizes and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(SanitizeString(email))
}

func ValidateUUID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	id = SanitizeString(id)

	if !uuidRegex.MatchString(strings.ToLower(id)) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a valid UUID v4",
		}
	}

	return nil
}

func ValidateTimeString(timeStr string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "is required",
		}
	}

	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "must be a valid RFC3339 timestamp",
		}
	}

	return t, nil
}
