package mocks

import (
	"context"

	"docapp/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockDuplicateLogRepository struct {
	mock.Mock
}

func (m *MockDuplicateLogRepository) Insert(ctx context.Context, entry model.DuplicateLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
