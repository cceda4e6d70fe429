// Package mocks provides mock implementations of the storage ports for testing.
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
//	mockRepo := mocks.NewMockSessionRepository(ctrl)
//	mockRepo.EXPECT().GetByToken(gomock.Any(), "tok", gomock.Any()).Return(sess, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_repository_mock.go github.com/target/mmk-rpc-api/internal/core UserRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_repository_mock.go github.com/target/mmk-rpc-api/internal/core SessionRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=preauth_token_repository_mock.go github.com/target/mmk-rpc-api/internal/core PreAuthTokenRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=permission_repository_mock.go github.com/target/mmk-rpc-api/internal/core PermissionRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/mmk-rpc-api/internal/core CacheRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/target/mmk-rpc-api/internal/core ReaperRepository
