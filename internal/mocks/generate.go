// Package mocks provides mock implementations for testing the identity gateway.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockProfileRepository(ctrl)
//	mockRepo.EXPECT().GetByIdentityID(gomock.Any(), gomock.Any(), gomock.Any()).Return(profile, nil)
//
// Hand-written doubles for the identity provider, state store, and navigator
// live in the identity subpackage; those interfaces carry behavior (event
// streams, per-client namespaces) that expectation-based mocks model poorly.
package mocks

// Generate mock for ProfileRepository interface from internal/ports package.
// This creates MockProfileRepository with methods for all ProfileRepository interface methods:
// GetByIdentityID, GetByEmail, Create, Update, DeleteByIdentityID
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=profile_repository_mock.go github.com/brightclass/identity-go/internal/ports ProfileRepository

// Generate mock for RoleExtractor interface from internal/ports package.
// This creates MockRoleExtractor with methods for all RoleExtractor interface methods:
// Role
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=role_extractor_mock.go github.com/brightclass/identity-go/internal/ports RoleExtractor
