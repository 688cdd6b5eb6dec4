package armadasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Armada HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Inspection represents the API inspection model (partial).
type Inspection struct {
	ID                      string          `json:"id"`
	OwnerID                 string          `json:"owner_id"`
	OwnerName               string          `json:"owner_name,omitempty"`
	VehicleCategory         string          `json:"vehicle_category"`
	VehicleNumber           string          `json:"vehicle_number"`
	InspectionLocation      string          `json:"inspection_location,omitempty"`
	InspectionDate          string          `json:"inspection_date"`
	Status                  string          `json:"status"`
	Documents               json.RawMessage `json:"documents,omitempty"`
	SpecialData             json.RawMessage `json:"special_data,omitempty"`
	EquipmentChecklist      map[string]bool `json:"equipment_checklist,omitempty"`
	Notes                   string          `json:"notes,omitempty"`
	NeedsApproval           bool            `json:"needs_approval"`
	ApprovedByTrafficID     *string         `json:"approved_by_traffic_id,omitempty"`
	ApprovedAtTraffic       *string         `json:"approved_at_traffic,omitempty"`
	TrafficSignature        *string         `json:"traffic_signature,omitempty"`
	ApprovedByOperationalID *string         `json:"approved_by_operational_id,omitempty"`
	ApprovedAtOperational   *string         `json:"approved_at_operational,omitempty"`
	OperationalSignature    *string         `json:"operational_signature,omitempty"`
	RejectionNote           *string         `json:"rejection_note,omitempty"`
	RejectedByStage         *string         `json:"rejected_by_stage,omitempty"`
	RejectedAt              *string         `json:"rejected_at,omitempty"`
	PDFReference            *string         `json:"pdf_reference,omitempty"`
	PDFGeneratedAt          *string         `json:"pdf_generated_at,omitempty"`
	CreatedAt               string          `json:"created_at"`
	UpdatedAt               string          `json:"updated_at"`
}

// Komentar represents a comment on an inspection.
type Komentar struct {
	ID           string `json:"id"`
	InspectionID string `json:"inspection_id"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name,omitempty"`
	SenderRole   string `json:"sender_role"`
	Body         string `json:"body"`
	CreatedAt    string `json:"created_at"`
}

// Rekap represents an aggregate report.
type Rekap struct {
	ID               string         `json:"id"`
	PeriodType       string         `json:"period_type"`
	StartDate        string         `json:"start_date"`
	EndDate          string         `json:"end_date"`
	VehicleCategory  *string        `json:"vehicle_category,omitempty"`
	TotalInspections int            `json:"total_inspections"`
	Statistics       map[string]int `json:"statistics"`
	SenderID         string         `json:"sender_id"`
	SenderName       string         `json:"sender_name,omitempty"`
	ReceiverRole     string         `json:"receiver_role"`
	IsRead           bool           `json:"is_read"`
	ReadAt           *string        `json:"read_at,omitempty"`
	CreatedAt        string         `json:"created_at"`
}

// Event represents an audit log entry. Payload is the raw JSON the
// engine recorded with the event.
type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts"`
	Type         string `json:"type"`
	InspectionID string `json:"inspection_id,omitempty"`
	ActorID      string `json:"actor_id"`
	Payload      string `json:"payload_json"`
}

// InspectionRequest carries content fields for create and draft-edit.
type InspectionRequest struct {
	VehicleCategory    string          `json:"vehicle_category"`
	VehicleNumber      string          `json:"vehicle_number"`
	InspectionLocation string          `json:"inspection_location,omitempty"`
	InspectionDate     string          `json:"inspection_date"`
	Documents          json.RawMessage `json:"documents,omitempty"`
	SpecialData        json.RawMessage `json:"special_data,omitempty"`
	EquipmentChecklist map[string]bool `json:"equipment_checklist,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	Submit             bool            `json:"submit,omitempty"`
}

// RekapRequest describes the recap window.
type RekapRequest struct {
	PeriodType      string  `json:"period_type"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	VehicleCategory *string `json:"vehicle_category,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// InspectionPage wraps list responses with cursors.
type InspectionPage struct {
	Items      []Inspection `json:"items"`
	NextCursor string       `json:"next_cursor"`
}

// ListOptions filter inspection listings.
type ListOptions struct {
	Status          string
	VehicleCategory string
	OwnerID         string
	Limit           int
	Cursor          string
}

// CreateInspection creates an inspection. When req.Submit is set the
// record is created already submitted for approval.
func (c *Client) CreateInspection(ctx context.Context, req InspectionRequest) (Inspection, error) {
	var resp Inspection
	err := c.do(ctx, http.MethodPost, "v0/inspections", req, &resp)
	return resp, err
}

// GetInspection fetches an inspection by id.
func (c *Client) GetInspection(ctx context.Context, id string) (Inspection, error) {
	var resp Inspection
	err := c.do(ctx, http.MethodGet, "v0/inspections/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListInspections returns a paginated inspection listing.
func (c *Client) ListInspections(ctx context.Context, opts ListOptions) (InspectionPage, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.VehicleCategory != "" {
		q.Set("vehicle_category", opts.VehicleCategory)
	}
	if opts.OwnerID != "" {
		q.Set("owner_id", opts.OwnerID)
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}
	endpoint := "v0/inspections"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp InspectionPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateDraft replaces the content of an owned draft.
func (c *Client) UpdateDraft(ctx context.Context, id string, req InspectionRequest) (Inspection, error) {
	var resp Inspection
	err := c.do(ctx, http.MethodPut, "v0/inspections/"+url.PathEscape(id)+"/draft", req, &resp)
	return resp, err
}

// DeleteDraft removes an owned draft.
func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/inspections/"+url.PathEscape(id), nil, nil)
}

// ApproveTraffic records the traffic manager approval.
func (c *Client) ApproveTraffic(ctx context.Context, id string, signature *string) (Inspection, error) {
	body := map[string]any{}
	if signature != nil {
		body["signature"] = *signature
	}
	var resp Inspection
	err := c.do(ctx, http.MethodPost, "v0/inspections/"+url.PathEscape(id)+"/approve-traffic", body, &resp)
	return resp, err
}

// ApproveOperational records the operational manager approval.
func (c *Client) ApproveOperational(ctx context.Context, id string, signature *string) (Inspection, error) {
	body := map[string]any{}
	if signature != nil {
		body["signature"] = *signature
	}
	var resp Inspection
	err := c.do(ctx, http.MethodPost, "v0/inspections/"+url.PathEscape(id)+"/approve-operational", body, &resp)
	return resp, err
}

// Reject rejects a submitted inspection with a mandatory note.
func (c *Client) Reject(ctx context.Context, id, note string) (Inspection, error) {
	var resp Inspection
	err := c.do(ctx, http.MethodPost, "v0/inspections/"+url.PathEscape(id)+"/reject", map[string]any{"note": note}, &resp)
	return resp, err
}

// AttachPDF stores a report reference on a fully approved inspection.
func (c *Client) AttachPDF(ctx context.Context, id, reference string) (Inspection, error) {
	var resp Inspection
	err := c.do(ctx, http.MethodPost, "v0/inspections/"+url.PathEscape(id)+"/pdf", map[string]any{"reference": reference}, &resp)
	return resp, err
}

// AddComment appends a comment to an inspection.
func (c *Client) AddComment(ctx context.Context, inspectionID, body string) (Komentar, error) {
	var resp Komentar
	endpoint := "v0/inspections/" + url.PathEscape(inspectionID) + "/comments"
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"body": body}, &resp)
	return resp, err
}

// ListComments returns the comments on an inspection, oldest first.
func (c *Client) ListComments(ctx context.Context, inspectionID string) ([]Komentar, error) {
	var resp []Komentar
	endpoint := "v0/inspections/" + url.PathEscape(inspectionID) + "/comments"
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateRekap generates a recap over the given period.
func (c *Client) CreateRekap(ctx context.Context, req RekapRequest) (Rekap, error) {
	var resp Rekap
	err := c.do(ctx, http.MethodPost, "v0/rekaps", req, &resp)
	return resp, err
}

// ListRekaps returns recaps, optionally filtered by read state.
func (c *Client) ListRekaps(ctx context.Context, isRead *bool, limit int) ([]Rekap, error) {
	q := url.Values{}
	if isRead != nil {
		q.Set("is_read", fmt.Sprintf("%t", *isRead))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	endpoint := "v0/rekaps"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Rekap
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// MarkRekapRead marks a recap as read. Marking twice is a no-op.
func (c *Client) MarkRekapRead(ctx context.Context, id string) (Rekap, error) {
	var resp Rekap
	err := c.do(ctx, http.MethodPost, "v0/rekaps/"+url.PathEscape(id)+"/read", nil, &resp)
	return resp, err
}

// Events returns recent audit events.
func (c *Client) Events(ctx context.Context, limit int, inspectionID string) ([]Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if inspectionID != "" {
		q.Set("inspection_id", inspectionID)
	}
	endpoint := "v0/events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UploadReport uploads rendered report bytes and attaches the stored
// reference to the inspection.
func (c *Client) UploadReport(ctx context.Context, inspectionID string, pdf []byte) (Inspection, error) {
	endpoint := "v0/inspections/" + url.PathEscape(inspectionID) + "/report"
	var resp Inspection
	err := c.doRaw(ctx, http.MethodPost, endpoint, "application/pdf", pdf, &resp)
	return resp, err
}

// DownloadReport fetches the attached report bytes.
func (c *Client) DownloadReport(ctx context.Context, inspectionID string) ([]byte, error) {
	endpoint := "v0/inspections/" + url.PathEscape(inspectionID) + "/report"
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	return c.doRaw(ctx, method, endpoint, "application/json", data, out)
}

func (c *Client) doRaw(ctx context.Context, method, endpoint, contentType string, data []byte, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, contentType, data)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint, contentType string, data []byte) (*http.Request, error) {
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	return req, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c.HTTPClient
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
