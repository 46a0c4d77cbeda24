package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// Backend is the slice of the platform REST API this module consumes.
// The server side is an external collaborator; only these shapes matter.
type Backend interface {
	// TenantInquiries lists all inquiry threads for the authenticated tenant.
	TenantInquiries(ctx context.Context) ([]RawInquiry, error)
	// InquiryAttachments lists attachment metadata for one inquiry.
	InquiryAttachments(ctx context.Context, inquiryID int64) ([]RawAttachment, error)
	// DownloadAttachment fetches one attachment's binary content.
	DownloadAttachment(ctx context.Context, attachmentID int64) ([]byte, error)
	// StartInquiry opens a new inquiry thread. If the backend reports that an
	// inquiry already exists for the property, the existing record is
	// returned with alreadyExists=true.
	StartInquiry(ctx context.Context, propertyID, unitID int64, text string) (inquiry RawInquiry, alreadyExists bool, err error)
	// SendMessage appends a tenant message to an inquiry.
	SendMessage(ctx context.Context, inquiryID int64, text string) error
	// UploadAttachments uploads files to an inquiry and returns their metadata.
	UploadAttachments(ctx context.Context, inquiryID int64, files []UploadFile) ([]RawAttachment, error)
}

// Client is the HTTP implementation of Backend.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: http.DefaultClient,
	}
}

func (c *Client) TenantInquiries(ctx context.Context) ([]RawInquiry, error) {
	var out inquiriesResponse
	if err := c.getJSON(ctx, "/api/tenant/inquiries", &out); err != nil {
		return nil, err
	}
	return out.Inquiries, nil
}

func (c *Client) InquiryAttachments(ctx context.Context, inquiryID int64) ([]RawAttachment, error) {
	var out attachmentsResponse
	path := fmt.Sprintf("/api/tenant/inquiries/%d/attachments", inquiryID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Attachments, nil
}

func (c *Client) DownloadAttachment(ctx context.Context, attachmentID int64) ([]byte, error) {
	path := fmt.Sprintf("/api/tenant/attachments/%d/download", attachmentID)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read attachment body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classify(resp.StatusCode, errorMessage(body))
	}
	// JSON bodies here mean the backend answered with an error envelope
	// instead of binary content; pass the text to the classifier.
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "application/json") {
		return nil, classify(resp.StatusCode, errorMessage(body))
	}
	return body, nil
}

func (c *Client) StartInquiry(ctx context.Context, propertyID, unitID int64, text string) (RawInquiry, bool, error) {
	payload := map[string]any{
		"property_id": propertyID,
		"message":     text,
	}
	if unitID > 0 {
		payload["unit_id"] = unitID
	}
	var out startInquiryResponse
	if err := c.postJSON(ctx, "/api/tenant/inquiries", payload, &out); err != nil {
		return RawInquiry{}, false, err
	}
	alreadyExists := strings.Contains(strings.ToLower(out.Message), "already exists")
	return out.Inquiry, alreadyExists, nil
}

func (c *Client) SendMessage(ctx context.Context, inquiryID int64, text string) error {
	path := fmt.Sprintf("/api/tenant/inquiries/%d/messages", inquiryID)
	var out sendMessageResponse
	if err := c.postJSON(ctx, path, map[string]any{"text": text}, &out); err != nil {
		return err
	}
	if !out.Success {
		return &Error{Kind: KindTransient, Status: http.StatusOK, Message: "send rejected by backend"}
	}
	return nil
}

func (c *Client) UploadAttachments(ctx context.Context, inquiryID int64, files []UploadFile) ([]RawAttachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("build multipart: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write multipart: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	path := fmt.Sprintf("/api/tenant/inquiries/%d/attachments", inquiryID)
	req, err := c.newRequest(ctx, http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var out attachmentsResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Attachments, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(resp.StatusCode, errorMessage(body))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// errorMessage extracts a human-readable message from an error body,
// falling back to the raw text.
func errorMessage(body []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(string(body))
}
