package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"armada/internal/blobstore"
	"armada/internal/config"
	"armada/internal/db"
	"armada/internal/domain"
	"armada/internal/engine"
	"armada/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

var (
	officerHeaders = map[string]string{"X-Actor-Id": "officer-1", "X-Actor-Name": "Budi", "X-Actor-Role": "PETUGAS_LAPANGAN"}
	otherHeaders   = map[string]string{"X-Actor-Id": "officer-2", "X-Actor-Name": "Sari", "X-Actor-Role": "PETUGAS_LAPANGAN"}
	trafficHeaders = map[string]string{"X-Actor-Id": "mgr-traffic", "X-Actor-Name": "Andi", "X-Actor-Role": "MANAGER_TRAFFIC"}
	opsHeaders     = map[string]string{"X-Actor-Id": "mgr-ops", "X-Actor-Name": "Dewi", "X-Actor-Role": "MANAGER_OPERATIONAL"}
)

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("test"))
	blobs, err := blobstore.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		Blobs:    blobs,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func inspectionBody(submit bool) map[string]any {
	return map[string]any{
		"vehicle_category":    "TOW",
		"vehicle_number":      "B 1234 XY",
		"inspection_location": "KM 42",
		"inspection_date":     "2024-03-10",
		"documents": map[string]any{
			"stnk":    map[string]any{"valid_until": "2025-01-01"},
			"kir":     map[string]any{},
			"tax":     map[string]any{},
			"service": map[string]any{},
		},
		"special_data": map[string]any{
			"tow": map[string]any{"crane_condition": "good"},
		},
		"submit": submit,
	}
}

func createSubmitted(t *testing.T, srv *testServer) domain.Inspection {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/inspections", inspectionBody(true), officerHeaders)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var ins domain.Inspection
	if err := json.Unmarshal(data, &ins); err != nil {
		t.Fatalf("unmarshal inspection: %v", err)
	}
	return ins
}

func approveBoth(t *testing.T, srv *testServer, id string) domain.Inspection {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/inspections/"+id+"/approve-traffic", map[string]any{}, trafficHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve traffic %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/inspections/"+id+"/approve-operational", map[string]any{}, opsHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve operational %d: %s", res.StatusCode, string(data))
	}
	var ins domain.Inspection
	if err := json.Unmarshal(data, &ins); err != nil {
		t.Fatalf("unmarshal inspection: %v", err)
	}
	return ins
}

func TestInspectionWorkflowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/inspections", inspectionBody(false), officerHeaders)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var ins domain.Inspection
	if err := json.Unmarshal(data, &ins); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ins.Status != domain.StatusDraft {
		t.Fatalf("expected DRAFT, got %s", ins.Status)
	}

	// operational approval may not skip ahead of the traffic stage
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/inspections/"+ins.ID+"/approve-operational", map[string]any{}, opsHeaders)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 skipping stage, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/inspections/"+ins.ID+"/draft", inspectionBody(true), officerHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
	}

	approved := approveBoth(t, srv, ins.ID)
	if approved.Status != domain.StatusApprovedByOperational {
		t.Fatalf("expected APPROVED_BY_OPERATIONAL, got %s", approved.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/inspections/"+ins.ID+"/pdf", map[string]any{"reference": "s3://reports/r1.pdf"}, opsHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("attach pdf status %d: %s", res.StatusCode, string(data))
	}
	var withPDF domain.Inspection
	_ = json.Unmarshal(data, &withPDF)
	if withPDF.PDFReference == nil || *withPDF.PDFReference != "s3://reports/r1.pdf" {
		t.Fatalf("pdf reference missing: %s", string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/inspections", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/inspections", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}
}

func TestDevLoginIssuesUsableToken(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "officer-9",
		"name":     "Rina",
		"role":     "PETUGAS_LAPANGAN",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("expected token, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me ActorResponse
	_ = json.Unmarshal(data, &me)
	if me.ID != "officer-9" || me.Role != domain.RolePetugasLapangan {
		t.Fatalf("unexpected identity %+v", me)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	ins := createSubmitted(t, srv)

	// wrong role
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/inspections/"+ins.ID+"/approve-traffic", map[string]any{}, officerHeaders)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for field officer approval, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code != "forbidden" {
		t.Fatalf("expected forbidden envelope, got %s", string(data))
	}

	// non-owner edit
	res, _ = doJSON(t, client, http.MethodPut, srv.URL+"/v0/inspections/"+ins.ID+"/draft", inspectionBody(false), otherHeaders)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner edit, got %d", res.StatusCode)
	}

	// unknown id wins over ownership concerns
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/inspections/does-not-exist", nil, officerHeaders)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", res.StatusCode)
	}

	// blank rejection note
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/inspections/"+ins.ID+"/reject", map[string]any{"note": "  "}, trafficHeaders)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank note, got %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code != "precondition_failed" {
		t.Fatalf("expected precondition_failed envelope, got %s", string(data))
	}

	// editing a submitted record
	res, _ = doJSON(t, client, http.MethodPut, srv.URL+"/v0/inspections/"+ins.ID+"/draft", inspectionBody(false), officerHeaders)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 editing submitted record, got %d", res.StatusCode)
	}
}

func TestRekapEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	ins := createSubmitted(t, srv)
	approveBoth(t, srv, ins.ID)

	// the receiver hint is ignored, rekaps always go to operational managers
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/rekaps", map[string]any{
		"period_type":   "WEEKLY",
		"start_date":    "2020-01-01",
		"end_date":      "2030-01-01",
		"receiver_role": "MANAGER_TRAFFIC",
	}, officerHeaders)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create rekap status %d: %s", res.StatusCode, string(data))
	}
	var rk domain.Rekap
	if err := json.Unmarshal(data, &rk); err != nil {
		t.Fatalf("unmarshal rekap: %v", err)
	}
	if rk.ReceiverRole != domain.RoleManagerOperational {
		t.Fatalf("expected receiver MANAGER_OPERATIONAL, got %s", rk.ReceiverRole)
	}
	if rk.TotalInspections != 1 {
		t.Fatalf("expected 1 approved inspection, got %d", rk.TotalInspections)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/rekaps/"+rk.ID+"/read", nil, opsHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mark read status %d: %s", res.StatusCode, string(data))
	}
	var read domain.Rekap
	_ = json.Unmarshal(data, &read)
	if !read.IsRead || read.ReadAt == nil {
		t.Fatalf("expected read rekap, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/rekaps?is_read=false", nil, opsHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list rekaps status %d: %s", res.StatusCode, string(data))
	}
	var listed []domain.Rekap
	_ = json.Unmarshal(data, &listed)
	if len(listed) != 0 {
		t.Fatalf("expected no unread rekaps, got %d", len(listed))
	}
}

func TestCommentsEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	ins := createSubmitted(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/inspections/"+ins.ID+"/comments", map[string]any{"body": "check the winch"}, trafficHeaders)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add comment status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/inspections/"+ins.ID+"/comments", nil, officerHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list comments status %d: %s", res.StatusCode, string(data))
	}
	var listed []domain.Komentar
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatalf("unmarshal comments: %v", err)
	}
	if len(listed) != 1 || listed[0].Body != "check the winch" {
		t.Fatalf("unexpected comments: %s", string(data))
	}
}

func TestReportUploadDownload(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	pdf := []byte("%PDF-1.4 test report")

	upload := func(id string, headers map[string]string) (*http.Response, []byte) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/v0/inspections/"+id+"/report", bytes.NewReader(pdf))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", "application/pdf")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		res, err := client.Do(req)
		if err != nil {
			t.Fatalf("do request: %v", err)
		}
		defer res.Body.Close()
		data, _ := io.ReadAll(res.Body)
		return res, data
	}

	ins := createSubmitted(t, srv)
	res, data := upload(ins.ID, opsHeaders)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 before approval, got %d: %s", res.StatusCode, string(data))
	}

	approveBoth(t, srv, ins.ID)
	res, data = upload(ins.ID, opsHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("upload status %d: %s", res.StatusCode, string(data))
	}
	var withPDF domain.Inspection
	_ = json.Unmarshal(data, &withPDF)
	if withPDF.PDFReference == nil {
		t.Fatalf("expected stored reference, got %s", string(data))
	}

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/inspections/"+ins.ID+"/report", nil, officerHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("download status %d: %s", res.StatusCode, string(body))
	}
	if !bytes.Equal(body, pdf) {
		t.Fatalf("downloaded bytes differ")
	}
}
