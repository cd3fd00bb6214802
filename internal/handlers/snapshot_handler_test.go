package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
)

func setupSnapshotRouter(handler *SnapshotHandler) *gin.Engine {
	r := newTestRouter()
	r.POST("/snapshots", handler.CreateSnapshot)
	r.GET("/snapshots", handler.GetSnapshots)
	r.GET("/snapshots/:year/:month", handler.GetSnapshot)
	return r
}

func TestSnapshotHandler_CreateSnapshot(t *testing.T) {
	svc := &mockSnapshotService{
		createFn: func() (*models.MonthlySnapshot, error) {
			return &models.MonthlySnapshot{ID: "snap", Year: 2025, Month: 3, NetWorth: dec("-4300")}, nil
		},
	}
	audit := &mockAuditService{}
	r := setupSnapshotRouter(NewSnapshotHandler(svc, audit, nil))

	rec := doRequest(r, "POST", "/snapshots", "")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	snapshot := parseJSON(t, rec)["snapshot"].(map[string]interface{})
	if snapshot["net_worth"] != "-4300" {
		t.Errorf("expected net_worth \"-4300\", got %v", snapshot["net_worth"])
	}
	if entry := audit.last(t); entry.Action != services.AuditActionSnapshot || entry.ResourceID != "snap" {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
}

func TestSnapshotHandler_GetSnapshot(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		var gotYear, gotMonth int
		svc := &mockSnapshotService{
			getSnapshotFn: func(year, month int) (*models.MonthlySnapshot, error) {
				gotYear, gotMonth = year, month
				return &models.MonthlySnapshot{Year: year, Month: month}, nil
			},
		}
		r := setupSnapshotRouter(NewSnapshotHandler(svc, &mockAuditService{}, nil))

		rec := doRequest(r, "GET", "/snapshots/2025/2", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotYear != 2025 || gotMonth != 2 {
			t.Errorf("expected 2025/2, got %d/%d", gotYear, gotMonth)
		}
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockSnapshotService{
			getSnapshotFn: func(int, int) (*models.MonthlySnapshot, error) {
				return nil, apperrors.ErrSnapshotNotFound
			},
		}
		r := setupSnapshotRouter(NewSnapshotHandler(svc, &mockAuditService{}, nil))

		rec := doRequest(r, "GET", "/snapshots/2024/12", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "SNAPSHOT_NOT_FOUND")
	})

	t.Run("returns 400 on non-numeric month", func(t *testing.T) {
		r := setupSnapshotRouter(NewSnapshotHandler(&mockSnapshotService{}, &mockAuditService{}, nil))

		rec := doRequest(r, "GET", "/snapshots/2025/march", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSnapshotHandler_GetSnapshots(t *testing.T) {
	t.Run("passes the month range", func(t *testing.T) {
		var gotFrom, gotTo *time.Time
		svc := &mockSnapshotService{
			getSnapshotsFn: func(_ pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.MonthlySnapshot], error) {
				gotFrom, gotTo = from, to
				resp := pagination.NewPageResponse([]models.MonthlySnapshot{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupSnapshotRouter(NewSnapshotHandler(svc, &mockAuditService{}, nil))

		rec := doRequest(r, "GET", "/snapshots?from=2024-11-01&page_size=12", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotFrom == nil || gotFrom.Year() != 2024 || gotFrom.Month() != time.November {
			t.Errorf("unexpected from %v", gotFrom)
		}
		if gotTo != nil {
			t.Errorf("expected open upper bound, got %v", gotTo)
		}
	})

	t.Run("returns 400 on bad date", func(t *testing.T) {
		r := setupSnapshotRouter(NewSnapshotHandler(&mockSnapshotService{}, &mockAuditService{}, nil))

		rec := doRequest(r, "GET", "/snapshots?to=last-month", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
