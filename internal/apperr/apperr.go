package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by the loyalty core. Callers wrap these with
// context using fmt.Errorf("...: %w", ErrX) and match with errors.Is.
var (
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced customer, reward or business does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientPoints indicates a debit beyond the available balance.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrRewardUnavailable indicates a reward is inactive, outside its window or exhausted.
	ErrRewardUnavailable = errors.New("reward is not available")
	// ErrStoreFailure indicates the persistence layer failed.
	ErrStoreFailure = errors.New("store failure")
	// ErrConflict indicates a uniqueness violation such as a duplicate phone number.
	ErrConflict = errors.New("already exists")
	// ErrUnauthorized indicates bad credentials, a bad token or an inactive account.
	ErrUnauthorized = errors.New("unauthorized")
)

// NotFound returns an ErrNotFound wrapped with the entity name and id.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// Store wraps err as a store failure. A nil err stays nil.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInsufficientPoints),
		errors.Is(err, ErrRewardUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message for err. Store and unknown
// failures are not echoed to clients.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreFailure):
		return "internal storage error"
	case HTTPStatus(err) == http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}
