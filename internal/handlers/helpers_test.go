package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"

	"tally/internal/middleware"
	"tally/internal/validator"
)

const (
	accountID  = "0190f2a1-0000-7000-8000-000000000001"
	categoryID = "0190f2a1-0000-7000-8000-000000000002"
	templateID = "0190f2a1-0000-7000-8000-000000000003"
	positionID = "0190f2a1-0000-7000-8000-000000000004"
	txID       = "0190f2a1-0000-7000-8000-000000000005"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

type auditEntry struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Changes      map[string]interface{}
}

// mockAuditService records entries instead of writing them.
type mockAuditService struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (m *mockAuditService) Log(actor, action, resourceType, resourceID, _ string, changes map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Changes:      changes,
	})
}

func (m *mockAuditService) last(t *testing.T) auditEntry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		t.Fatal("expected an audit entry, got none")
	}
	return m.entries[len(m.entries)-1]
}

// newTestRouter returns an engine with the actor middleware installed.
func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.ActorMiddleware())
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	return doRequestWithHeaders(r, method, path, body, nil)
}

func doRequestWithHeaders(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func TestParseFlexibleTime(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	tests := []struct {
		name    string
		in      string
		loc     *time.Location
		want    time.Time
		wantErr bool
	}{
		{name: "date_defaults_to_utc", in: "2025-02-01", want: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{name: "date_in_location", in: "2025-02-01", loc: shanghai, want: time.Date(2025, 2, 1, 0, 0, 0, 0, shanghai)},
		{name: "rfc3339_keeps_its_offset", in: "2025-02-01T06:00:00Z", loc: shanghai, want: time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC)},
		{name: "garbage", in: "02/01/2025", loc: shanghai, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlexibleTime(tt.in, tt.loc)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseFlexibleTime(%q) = %s, want %s", tt.in, got.UTC(), tt.want.UTC())
			}
		})
	}
}
