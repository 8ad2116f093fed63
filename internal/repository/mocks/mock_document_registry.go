package mocks

import (
	"context"

	"docstore/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockDocumentRegistry struct {
	mock.Mock
}

func (m *MockDocumentRegistry) Append(ctx context.Context, doc *model.Document) (*model.Document, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRegistry) Query(ctx context.Context, ownerID *string) ([]model.Document, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentRegistry) FindOne(ctx context.Context, ownerID, originalName string) (*model.Document, error) {
	args := m.Called(ctx, ownerID, originalName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRegistry) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRegistry) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
