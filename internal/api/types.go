package api

// RawInquiry is an inquiry record exactly as the platform backend returns it.
// Two message representations exist side by side: newer records carry a
// structured Messages list; legacy records store one concatenated text blob
// per role (Message for tenant-authored content, ManagerReply for the
// manager). Fields not modeled here are preserved in the parsed Chat via the
// raw passthrough.
type RawInquiry struct {
	ID           int64        `json:"id"`
	PropertyID   int64        `json:"property_id"`
	UnitID       int64        `json:"unit_id,omitempty"`
	TenantID     int64        `json:"tenant_id"`
	PropertyName string       `json:"property_name,omitempty"`
	UnitLabel    string       `json:"unit_label,omitempty"`
	ManagerName  string       `json:"manager_name,omitempty"`
	Status       string       `json:"status"` // pending | active | closed (server-defined)
	Messages     []RawMessage `json:"messages,omitempty"`
	Message      string       `json:"message,omitempty"`       // legacy tenant blob
	ManagerReply string       `json:"manager_reply,omitempty"` // legacy manager blob
	CreatedAt    string       `json:"created_at,omitempty"`
}

// RawMessage is one structured message sub-record (new format).
type RawMessage struct {
	ID        int64  `json:"id"`
	SenderID  int64  `json:"sender_id,omitempty"`
	Sender    string `json:"sender,omitempty"` // explicit role when present
	Text      string `json:"text"`
	CreatedAt string `json:"created_at,omitempty"`
}

// RawAttachment is attachment metadata as listed by the backend. Binary
// content is fetched separately via DownloadAttachment.
type RawAttachment struct {
	ID         int64  `json:"id"`
	InquiryID  int64  `json:"inquiry_id"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type,omitempty"`
	Size       int64  `json:"size,omitempty"`
	UploaderID int64  `json:"uploader_id,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type inquiriesResponse struct {
	Inquiries []RawInquiry `json:"inquiries"`
}

type attachmentsResponse struct {
	Attachments []RawAttachment `json:"attachments"`
}

type startInquiryResponse struct {
	Message string     `json:"message,omitempty"`
	Inquiry RawInquiry `json:"inquiry"`
}

type sendMessageResponse struct {
	Success bool `json:"success"`
}

// UploadFile is one file handed to UploadAttachments.
type UploadFile struct {
	Name string
	MIME string
	Data []byte
}
