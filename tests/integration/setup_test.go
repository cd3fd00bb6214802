package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tally/internal/clock"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/server"
	"tally/internal/validator"
)

const pipelineKey = "integration-pipeline-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Clock  *clock.Fixed
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite and a fixed clock set to now.
func setupApp(t *testing.T, now time.Time) *testApp {
	t.Helper()
	return setupAppWithKey(t, now, pipelineKey)
}

func setupAppWithKey(t *testing.T, now time.Time, key string) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)
	clk := clock.NewFixed(now)
	svc := server.NewServices(db, clk, 4)
	router := server.NewRouter(svc, server.Options{PipelineAPIKey: key, Location: now.Location()})

	return &testApp{DB: db, Clock: clk, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body string) *httptest.ResponseRecorder {
	return app.requestWithHeaders(method, path, body, nil)
}

func (app *testApp) requestWithHeaders(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// pipeline calls a pipeline route with the configured API key.
func (app *testApp) pipeline(method, path, body string) *httptest.ResponseRecorder {
	return app.requestWithHeaders(method, path, body, map[string]string{"X-API-Key": pipelineKey})
}

// mustStatus fails the test unless rec has the wanted status and returns the parsed body.
func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) map[string]interface{} {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func object(t *testing.T, m map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	v, ok := m[key].(map[string]interface{})
	if !ok {
		t.Fatalf("expected object at %q, got %T", key, m[key])
	}
	return v
}

// assertDecimal compares a JSON money field, which may be a string or a number.
func assertDecimal(t *testing.T, m map[string]interface{}, key, want string) {
	t.Helper()
	var got decimal.Decimal
	switch v := m[key].(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			t.Fatalf("%s: invalid decimal %q", key, v)
		}
		got = d
	case float64:
		got = decimal.NewFromFloat(v)
	default:
		t.Fatalf("%s: unexpected type %T", key, m[key])
	}
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", key, got, want)
	}
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	body := mustStatus(t, rec, status)
	errObj := object(t, body, "error")
	if errObj["code"] != code {
		t.Errorf("error code = %v, want %s", errObj["code"], code)
	}
}

// createAccount creates an account through the API and returns its id.
func (app *testApp) createAccount(t *testing.T, name string, accountType models.AccountType, balance string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"type":%q,"initial_balance":%q}`, name, accountType, balance)
	result := mustStatus(t, app.request(http.MethodPost, "/api/v1/accounts", body), http.StatusCreated)
	return object(t, result, "account")["id"].(string)
}

func (app *testApp) accountBalance(t *testing.T, id string) map[string]interface{} {
	t.Helper()
	result := mustStatus(t, app.request(http.MethodGet, "/api/v1/accounts/"+id, ""), http.StatusOK)
	return object(t, result, "account")
}
