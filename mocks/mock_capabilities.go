package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// MockFormInspector is a mock implementation of port.FormInspector.
type MockFormInspector struct {
	mock.Mock
}

func (m *MockFormInspector) InspectForm(ctx context.Context, path string) (*domain.FormAnalysis, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FormAnalysis), args.Error(1)
}

// MockPDFTextProbe is a mock implementation of port.PDFTextProbe.
type MockPDFTextProbe struct {
	mock.Mock
}

func (m *MockPDFTextProbe) ProbePages(ctx context.Context, path string) ([]port.PageProbe, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.PageProbe), args.Error(1)
}

// MockRasterizer is a mock implementation of port.Rasterizer.
type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) Rasterize(ctx context.Context, path string, dpi int) ([]port.PageImage, error) {
	args := m.Called(ctx, path, dpi)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.PageImage), args.Error(1)
}

// MockTextRecognizer is a mock implementation of port.TextRecognizer.
type MockTextRecognizer struct {
	mock.Mock
}

func (m *MockTextRecognizer) Recognize(ctx context.Context, img port.PageImage) ([]domain.TextBlock, error) {
	args := m.Called(ctx, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TextBlock), args.Error(1)
}

// MockEntityRecognizer is a mock implementation of port.EntityRecognizer.
type MockEntityRecognizer struct {
	mock.Mock
}

func (m *MockEntityRecognizer) Extract(ctx context.Context, in port.RecognitionInput) (domain.EntityGroups, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.EntityGroups), args.Error(1)
}

// MockFormRenderer is a mock implementation of port.FormRenderer.
type MockFormRenderer struct {
	mock.Mock
}

func (m *MockFormRenderer) Render(ctx context.Context, req port.RenderRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockOverlayTables is a mock implementation of port.OverlayTables.
type MockOverlayTables struct {
	mock.Mock
}

func (m *MockOverlayTables) Lookup(templateID string) (*domain.OverlayTable, error) {
	args := m.Called(templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverlayTable), args.Error(1)
}
