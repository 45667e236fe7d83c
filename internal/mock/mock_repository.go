package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/size-analysis/internal/repository"
	"github.com/size-analysis/pkg/model"
)

// MockLoadRepository is a mock implementation of the LoadRepository interface.
type MockLoadRepository struct {
	mock.Mock
}

var _ repository.LoadRepository = (*MockLoadRepository)(nil)

// CreateLoad mocks the CreateLoad method.
func (m *MockLoadRepository) CreateLoad(ctx context.Context, rec *model.LoadRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// FinishLoad mocks the FinishLoad method.
func (m *MockLoadRepository) FinishLoad(ctx context.Context, id string, outcome *repository.LoadOutcome) error {
	args := m.Called(ctx, id, outcome)
	return args.Error(0)
}

// GetLoad mocks the GetLoad method.
func (m *MockLoadRepository) GetLoad(ctx context.Context, id string) (*model.LoadRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoadRecord), args.Error(1)
}

// ListLoads mocks the ListLoads method.
func (m *MockLoadRepository) ListLoads(ctx context.Context, sessionID string, limit int) ([]*model.LoadRecord, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LoadRecord), args.Error(1)
}

// ExpectCreateLoad sets up an expectation for any CreateLoad call.
func (m *MockLoadRepository) ExpectCreateLoad(err error) *mock.Call {
	return m.On("CreateLoad", mock.Anything, mock.AnythingOfType("*model.LoadRecord")).Return(err)
}

// ExpectFinishLoad sets up an expectation for FinishLoad with the given status.
func (m *MockLoadRepository) ExpectFinishLoad(status model.LoadStatus, err error) *mock.Call {
	return m.On("FinishLoad", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(o *repository.LoadOutcome) bool { return o.Status == status }),
	).Return(err)
}
