package service

import (
	"context"
	"errors"
	"time"

	"github.com/brightclass/identity-go/internal/ports"
)

var errStoreDown = errors.New("state store unavailable")

// failingStore errors on every operation, for fail-open/fail-closed checks.
type failingStore struct{}

var _ ports.StateStore = failingStore{}

func (failingStore) Get(context.Context, string, string) (string, bool, error) {
	return "", false, errStoreDown
}

func (failingStore) Set(context.Context, string, string, string, time.Duration) error {
	return errStoreDown
}

func (failingStore) SetIfNotExists(context.Context, string, string, string, time.Duration) (bool, error) {
	return false, errStoreDown
}

func (failingStore) Delete(context.Context, string, string) error { return errStoreDown }

func (failingStore) ClearClient(context.Context, string) error { return errStoreDown }
