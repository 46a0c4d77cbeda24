package sync

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tenantsync/internal/api"
)

// MockBackend is a testify mock of api.Backend for resolver tests.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) TenantInquiries(ctx context.Context) ([]api.RawInquiry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.RawInquiry), args.Error(1)
}

func (m *MockBackend) InquiryAttachments(ctx context.Context, inquiryID int64) ([]api.RawAttachment, error) {
	args := m.Called(ctx, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.RawAttachment), args.Error(1)
}

func (m *MockBackend) DownloadAttachment(ctx context.Context, attachmentID int64) ([]byte, error) {
	args := m.Called(ctx, attachmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBackend) StartInquiry(ctx context.Context, propertyID, unitID int64, text string) (api.RawInquiry, bool, error) {
	args := m.Called(ctx, propertyID, unitID, text)
	return args.Get(0).(api.RawInquiry), args.Bool(1), args.Error(2)
}

func (m *MockBackend) SendMessage(ctx context.Context, inquiryID int64, text string) error {
	args := m.Called(ctx, inquiryID, text)
	return args.Error(0)
}

func (m *MockBackend) UploadAttachments(ctx context.Context, inquiryID int64, files []api.UploadFile) ([]api.RawAttachment, error) {
	args := m.Called(ctx, inquiryID, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.RawAttachment), args.Error(1)
}

// fakeBackend is a plain function-field fake for poll loop tests, where
// response sequencing and call counting matter more than expectations.
type fakeBackend struct {
	tenantInquiries    func(ctx context.Context) ([]api.RawInquiry, error)
	inquiryAttachments func(ctx context.Context, inquiryID int64) ([]api.RawAttachment, error)
	downloadAttachment func(ctx context.Context, attachmentID int64) ([]byte, error)
	startInquiry       func(ctx context.Context, propertyID, unitID int64, text string) (api.RawInquiry, bool, error)
	sendMessage        func(ctx context.Context, inquiryID int64, text string) error
	uploadAttachments  func(ctx context.Context, inquiryID int64, files []api.UploadFile) ([]api.RawAttachment, error)
}

func (f *fakeBackend) TenantInquiries(ctx context.Context) ([]api.RawInquiry, error) {
	if f.tenantInquiries == nil {
		return nil, nil
	}
	return f.tenantInquiries(ctx)
}

func (f *fakeBackend) InquiryAttachments(ctx context.Context, inquiryID int64) ([]api.RawAttachment, error) {
	if f.inquiryAttachments == nil {
		return nil, nil
	}
	return f.inquiryAttachments(ctx, inquiryID)
}

func (f *fakeBackend) DownloadAttachment(ctx context.Context, attachmentID int64) ([]byte, error) {
	if f.downloadAttachment == nil {
		return nil, nil
	}
	return f.downloadAttachment(ctx, attachmentID)
}

func (f *fakeBackend) StartInquiry(ctx context.Context, propertyID, unitID int64, text string) (api.RawInquiry, bool, error) {
	if f.startInquiry == nil {
		return api.RawInquiry{}, false, nil
	}
	return f.startInquiry(ctx, propertyID, unitID, text)
}

func (f *fakeBackend) SendMessage(ctx context.Context, inquiryID int64, text string) error {
	if f.sendMessage == nil {
		return nil
	}
	return f.sendMessage(ctx, inquiryID, text)
}

func (f *fakeBackend) UploadAttachments(ctx context.Context, inquiryID int64, files []api.UploadFile) ([]api.RawAttachment, error) {
	if f.uploadAttachments == nil {
		return nil, nil
	}
	return f.uploadAttachments(ctx, inquiryID, files)
}
