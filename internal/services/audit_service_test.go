package services

import (
	"testing"

	"tally/internal/models"
	"tally/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	svc := NewAuditService(db)
	svc.Log("pipeline", AuditActionProcessDue, "recurring_template", "", "10.0.0.1", map[string]any{
		"processed": 3,
	})
	svc.Log("api", AuditActionDelete, "transaction", "txn-1", "", nil)

	var entries []models.AuditLog
	if err := db.Order("id ASC").Find(&entries).Error; err != nil {
		t.Fatalf("failed to load audit log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Actor != "pipeline" || entries[0].Changes != `{"processed":3}` {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Changes != "" {
		t.Errorf("expected no changes on second entry, got %q", entries[1].Changes)
	}
}
