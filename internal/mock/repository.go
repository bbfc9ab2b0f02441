package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/graphpack/pkg/model"
)

// MockArtifactRepository is a mock implementation of repository.ArtifactRepository.
type MockArtifactRepository struct {
	mock.Mock
}

// Save mocks the Save method.
func (m *MockArtifactRepository) Save(ctx context.Context, a *model.Artifact) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

// GetByKey mocks the GetByKey method.
func (m *MockArtifactRepository) GetByKey(ctx context.Context, key string) (*model.Artifact, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Artifact), args.Error(1)
}

// List mocks the List method.
func (m *MockArtifactRepository) List(ctx context.Context, opts model.ListOptions) ([]*model.Artifact, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Artifact), args.Error(1)
}

// Delete mocks the Delete method.
func (m *MockArtifactRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
