package services

import (
	"errors"
	"fmt"
)

var (
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrInvalidPrize      = errors.New("prize must be a non-negative integer")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrEventNameRequired = errors.New("event name is required")
	ErrEventNotFound     = errors.New("event not found")
	ErrEventClosed       = errors.New("event deadline has passed")
	ErrInvalidUser       = errors.New("name and email are required")
	ErrUserExists        = errors.New("user already exists")
	ErrStorage           = errors.New("storage error")
)

// domainErrors are returned to callers as-is; anything else coming out of
// a transaction is a storage failure.
var domainErrors = []error{
	ErrIdentityNotFound,
	ErrInvalidPrize,
	ErrInvalidTimestamp,
	ErrEventNameRequired,
	ErrEventNotFound,
	ErrEventClosed,
	ErrInvalidUser,
	ErrUserExists,
	ErrStorage,
}

// storageErr marks err as a storage failure while keeping the driver error
// reachable through errors.Is/As.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
