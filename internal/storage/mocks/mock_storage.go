package mocks

import (
	"context"
	"io"

	"docstore/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Store(ctx context.Context, r io.Reader, ext string) (string, int64, error) {
	args := m.Called(ctx, r, ext)
	return args.String(0), args.Get(1).(int64), args.Error(2)
}

func (m *MockBlobStore) Open(ctx context.Context, ref string) (storage.Blob, int64, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).(storage.Blob), args.Get(1).(int64), args.Error(2)
}

func (m *MockBlobStore) Delete(ctx context.Context, ref string) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}
