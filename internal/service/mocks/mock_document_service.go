package mocks

import (
	"context"
	"io"

	"docstore/internal/model"
	"docstore/internal/service"
	"docstore/internal/stream"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, r io.Reader, ownerID, originalName string) (*model.Document, error) {
	args := m.Called(ctx, r, ownerID, originalName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, ownerID *string) ([]model.Document, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, ownerID, originalName string) (*service.Download, error) {
	args := m.Called(ctx, ownerID, originalName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, ownerID, originalName string) (*service.DeleteResult, error) {
	args := m.Called(ctx, ownerID, originalName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DeleteResult), args.Error(1)
}

func (m *MockDocumentService) Stream(ctx context.Context, ownerID, originalName, rangeHeader string) (*stream.Response, *model.Document, error) {
	args := m.Called(ctx, ownerID, originalName, rangeHeader)
	var resp *stream.Response
	if v := args.Get(0); v != nil {
		resp = v.(*stream.Response)
	}
	var doc *model.Document
	if v := args.Get(1); v != nil {
		doc = v.(*model.Document)
	}
	return resp, doc, args.Error(2)
}
