package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, "test-token"), srv
}

func TestTenantInquiriesSendsBearerToken(t *testing.T) {
	var gotAuth string
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"inquiries":[{"id":1,"property_id":3,"status":"active"}]}`))
	})
	defer srv.Close()

	inquiries, err := client.TenantInquiries(context.Background())
	require.NoError(t, err)
	require.Len(t, inquiries, 1)
	assert.EqualValues(t, 3, inquiries[0].PropertyID)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestErrorEnvelopeClassified(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"token expired"}`))
	})
	defer srv.Close()

	_, err := client.TenantInquiries(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthRequired(err))
}

func TestDownloadAttachmentBinary(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tenant/attachments/7/download", r.URL.Path)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("binary-content"))
	})
	defer srv.Close()

	data, err := client.DownloadAttachment(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("binary-content"), data)
}

func TestDownloadAttachmentJSONBodyIsError(t *testing.T) {
	// A 200 with a JSON content type is an error envelope, not content.
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"Attachment not found"}`))
	})
	defer srv.Close()

	_, err := client.DownloadAttachment(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestStartInquiryDetectsExisting(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"An inquiry already exists for this property","inquiry":{"id":42,"property_id":5,"status":"active"}}`))
	})
	defer srv.Close()

	inquiry, alreadyExists, err := client.StartInquiry(context.Background(), 5, 0, "Inquiry started")
	require.NoError(t, err)
	assert.True(t, alreadyExists)
	assert.EqualValues(t, 42, inquiry.ID)
}

func TestSendMessageRejectedWithoutSuccessFlag(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false}`))
	})
	defer srv.Close()

	err := client.SendMessage(context.Background(), 1, "hello")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTransient))
}

func TestUploadAttachmentsMultipart(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "lease.pdf", files[0].Filename)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"attachments":[{"id":1,"inquiry_id":9,"file_name":"lease.pdf"},{"id":2,"inquiry_id":9,"file_name":"photo.jpg"}]}`))
	})
	defer srv.Close()

	uploaded, err := client.UploadAttachments(context.Background(), 9, []UploadFile{
		{Name: "lease.pdf", Data: []byte("pdf")},
		{Name: "photo.jpg", Data: []byte("jpg")},
	})
	require.NoError(t, err)
	require.Len(t, uploaded, 2)
	assert.EqualValues(t, 9, uploaded[0].InquiryID)
}
