package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tally/internal/calendar"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/testutil"
)

func TestCreateTemplate(t *testing.T) {
	t.Run("first_occurrence_clamped", func(t *testing.T) {
		env := newLedgerEnv(t, at(2025, 2, 10, 8, 0))
		account := testutil.CreateTestCashAccount(t, env.db)

		tmpl, err := env.recurring.CreateTemplate(TemplateInput{
			Name:        "Rent",
			Amount:      testutil.Dec(t, "1000"),
			Type:        models.TransactionTypeExpense,
			AccountID:   account.ID,
			Frequency:   calendar.FrequencyMonthly,
			DayOfPeriod: 31,
			Note:        "flat",
		})
		testutil.AssertNoError(t, err)

		assertTime(t, "start", at(2025, 2, 10, 8, 0), tmpl.StartDate)
		assertTime(t, "next", at(2025, 2, 28, 8, 0), tmpl.NextExecutionDate)
		if !tmpl.IsActive || !tmpl.AutoExecute {
			t.Error("expected template to be active with auto execute")
		}
		if tmpl.LastExecutedDate != nil {
			t.Error("expected no last executed date")
		}
		if tmpl.Version != 1 {
			t.Errorf("expected version 1, got %d", tmpl.Version)
		}
	})

	t.Run("explicit_start_date", func(t *testing.T) {
		env := newLedgerEnv(t, at(2025, 1, 1, 0, 0))
		account := testutil.CreateTestCashAccount(t, env.db)

		tmpl, err := env.recurring.CreateTemplate(TemplateInput{
			Name:        "Gym",
			Amount:      testutil.Dec(t, "30"),
			Type:        models.TransactionTypeExpense,
			AccountID:   account.ID,
			Frequency:   calendar.FrequencyWeekly,
			DayOfPeriod: 1,
			AutoExecute: boolPtr(false),
			StartDate:   at(2025, 1, 1, 7, 0), // Wednesday
		})
		testutil.AssertNoError(t, err)

		assertTime(t, "next", at(2025, 1, 6, 7, 0), tmpl.NextExecutionDate)
		if stored := reloadTemplate(t, env.db, tmpl.ID); stored.AutoExecute {
			t.Error("expected auto_execute=false to be stored")
		}
	})

	t.Run("errors", func(t *testing.T) {
		env := newLedgerEnv(t, at(2025, 1, 1, 0, 0))
		account := testutil.CreateTestCashAccount(t, env.db)
		income := testutil.CreateTestCategory(t, env.db, models.CategoryTypeIncome)

		valid := func() TemplateInput {
			return TemplateInput{
				Name:        "Salary",
				Amount:      testutil.Dec(t, "5000"),
				Type:        models.TransactionTypeIncome,
				AccountID:   account.ID,
				Frequency:   calendar.FrequencyMonthly,
				DayOfPeriod: 25,
			}
		}

		tests := []struct {
			name   string
			mutate func(in *TemplateInput)
			code   string
		}{
			{"empty_name", func(in *TemplateInput) { in.Name = "" }, "INVALID_INPUT"},
			{"zero_amount", func(in *TemplateInput) { in.Amount = testutil.Dec(t, "0") }, "INVALID_INPUT"},
			{"bad_type", func(in *TemplateInput) { in.Type = "transfer" }, "INVALID_TRANSACTION_TYPE"},
			{"day_out_of_range", func(in *TemplateInput) { in.DayOfPeriod = 32 }, "INVALID_SCHEDULE"},
			{"yearly_without_month", func(in *TemplateInput) { in.Frequency = calendar.FrequencyYearly }, "INVALID_SCHEDULE"},
			{"unknown_frequency", func(in *TemplateInput) { in.Frequency = "hourly" }, "INVALID_SCHEDULE"},
			{"unknown_account", func(in *TemplateInput) { in.AccountID = "0190a8c2-0000-7000-8000-000000000000" }, "ACCOUNT_NOT_FOUND"},
			{"category_mismatch", func(in *TemplateInput) { in.Type = models.TransactionTypeExpense; in.CategoryID = &income.ID }, "CATEGORY_TYPE_MISMATCH"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				in := valid()
				tt.mutate(&in)
				_, err := env.recurring.CreateTemplate(in)
				testutil.AssertAppError(t, err, tt.code)
			})
		}
	})
}

func TestProcessAllDue_MonthEndClamp(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 2, 1, 9, 0))
	account := testutil.CreateTestAccount(t, env.db, models.AccountTypeBank, "5000")
	tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 31, at(2025, 1, 31, 0, 0))
	env.db.Model(tmpl).Update("note", "monthly")

	report, err := env.recurring.ProcessAllDue(context.Background(), at(2025, 2, 1, 9, 0))
	testutil.AssertNoError(t, err)

	if report.Due != 1 || report.Processed != 1 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	var txns []models.Transaction
	env.db.Where("recurring_template_id = ?", tmpl.ID).Find(&txns)
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}
	txn := txns[0]
	testutil.AssertDecimal(t, "amount", "1000", txn.Amount)
	if txn.Type != models.TransactionTypeExpense {
		t.Errorf("expected expense, got %s", txn.Type)
	}
	assertTime(t, "transaction date", at(2025, 2, 1, 9, 0), txn.Date)
	if want := fmt.Sprintf("[recurring] %s: monthly", tmpl.Name); txn.Note != want {
		t.Errorf("note = %q, want %q", txn.Note, want)
	}
	if report.TransactionIDs[0] != txn.ID {
		t.Errorf("expected report to carry transaction %s, got %v", txn.ID, report.TransactionIDs)
	}

	stored := reloadTemplate(t, env.db, tmpl.ID)
	assertTime(t, "next", at(2025, 2, 28, 0, 0), stored.NextExecutionDate)
	if stored.LastExecutedDate == nil {
		t.Fatal("expected last executed date")
	}
	assertTime(t, "last executed", at(2025, 2, 1, 9, 0), *stored.LastExecutedDate)
	if stored.Version != 2 {
		t.Errorf("expected version 2, got %d", stored.Version)
	}

	testutil.AssertDecimal(t, "balance", "4000", reloadAccount(t, env.db, account.ID).Balance)
}

func TestProcessAllDue_SecondCallIsNoop(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 2, 1, 9, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	testutil.CreateTestTemplate(t, env.db, account.ID, 31, at(2025, 1, 31, 0, 0))
	now := at(2025, 2, 1, 9, 0)

	_, err := env.recurring.ProcessAllDue(context.Background(), now)
	testutil.AssertNoError(t, err)
	report, err := env.recurring.ProcessAllDue(context.Background(), now)
	testutil.AssertNoError(t, err)

	if report.Due != 0 || report.Processed != 0 {
		t.Errorf("expected nothing due on second call, got %+v", report)
	}
	if n := countRows(t, env.db, &models.Transaction{}, ""); n != 1 {
		t.Errorf("expected 1 transaction in total, got %d", n)
	}
}

func TestProcessAllDue_SingleAdvancePerCall(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 4, 15, 12, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 31, at(2025, 1, 31, 0, 0))
	now := at(2025, 4, 15, 12, 0)

	wantNext := []time.Time{
		at(2025, 2, 28, 0, 0),
		at(2025, 3, 31, 0, 0),
		at(2025, 4, 30, 0, 0),
	}
	for i, want := range wantNext {
		report, err := env.recurring.ProcessAllDue(context.Background(), now)
		testutil.AssertNoError(t, err)
		if report.Processed != 1 {
			t.Fatalf("call %d: expected 1 processed, got %d", i+1, report.Processed)
		}
		assertTime(t, fmt.Sprintf("next after call %d", i+1), want, reloadTemplate(t, env.db, tmpl.ID).NextExecutionDate)
	}

	report, err := env.recurring.ProcessAllDue(context.Background(), now)
	testutil.AssertNoError(t, err)
	if report.Due != 0 {
		t.Errorf("expected backlog to be cleared, got %d due", report.Due)
	}
	if n := countRows(t, env.db, &models.Transaction{}, "recurring_template_id = ?", tmpl.ID); n != 3 {
		t.Errorf("expected 3 transactions, got %d", n)
	}
}

func TestProcessAllDue_FailureIsolation(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 2, 1, 9, 0))
	good := testutil.CreateTestCashAccount(t, env.db)
	closed := testutil.CreateTestCashAccount(t, env.db)
	ok := testutil.CreateTestTemplate(t, env.db, good.ID, 1, at(2025, 2, 1, 0, 0))
	bad := testutil.CreateTestTemplate(t, env.db, closed.ID, 1, at(2025, 2, 1, 0, 0))
	env.db.Model(closed).Update("is_active", false)

	report, err := env.recurring.ProcessAllDue(context.Background(), at(2025, 2, 1, 9, 0))
	testutil.AssertNoError(t, err)

	if report.Due != 2 || report.Processed != 1 {
		t.Fatalf("expected 2 due and 1 processed, got %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].TemplateID != bad.ID {
		t.Fatalf("expected failure for %s, got %+v", bad.ID, report.Failures)
	}
	if report.Failures[0].Error == "" {
		t.Error("expected failure message")
	}

	// The failed pair is rolled back together
	failed := reloadTemplate(t, env.db, bad.ID)
	assertTime(t, "failed next", at(2025, 2, 1, 0, 0), failed.NextExecutionDate)
	if failed.Version != 1 || failed.LastExecutedDate != nil {
		t.Errorf("expected failed template untouched, got version %d", failed.Version)
	}
	if n := countRows(t, env.db, &models.Transaction{}, "recurring_template_id = ?", bad.ID); n != 0 {
		t.Errorf("expected no transaction for failed template, got %d", n)
	}

	assertTime(t, "ok next", at(2025, 3, 1, 0, 0), reloadTemplate(t, env.db, ok.ID).NextExecutionDate)
}

func TestProcessAllDue_SkipsInactiveAndFuture(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 2, 1, 9, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	paused := testutil.CreateTestTemplate(t, env.db, account.ID, 1, at(2025, 1, 1, 0, 0))
	env.db.Model(paused).Update("is_active", false)
	testutil.CreateTestTemplate(t, env.db, account.ID, 2, at(2025, 2, 2, 0, 0))

	report, err := env.recurring.ProcessAllDue(context.Background(), at(2025, 2, 1, 9, 0))
	testutil.AssertNoError(t, err)
	if report.Due != 0 {
		t.Errorf("expected nothing due, got %d", report.Due)
	}
}

func TestProcessAllDue_ParallelWorkers(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 2, 1, 9, 0))
	account := testutil.CreateTestAccount(t, env.db, models.AccountTypeBank, "10000")
	svc := NewRecurringService(env.db, env.accounts, env.clock, 4)

	for i := 0; i < 6; i++ {
		testutil.CreateTestTemplate(t, env.db, account.ID, 1, at(2025, 2, 1, 0, 0))
	}

	report, err := svc.ProcessAllDue(context.Background(), time.Time{})
	testutil.AssertNoError(t, err)

	if report.Processed != 6 || len(report.TransactionIDs) != 6 {
		t.Fatalf("expected 6 processed, got %+v", report)
	}
	assertTime(t, "evaluated at clock time", at(2025, 2, 1, 9, 0), report.EvaluatedAt)
	testutil.AssertDecimal(t, "balance", "4000", reloadAccount(t, env.db, account.ID).Balance)
}

func TestProcessAllDue_CanceledContext(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 2, 1, 9, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 1, at(2025, 2, 1, 0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := env.recurring.ProcessAllDue(ctx, at(2025, 2, 1, 9, 0))
	testutil.AssertNoError(t, err)

	if report.Processed != 0 || len(report.Failures) != 1 {
		t.Fatalf("expected the due template to be reported as failed, got %+v", report)
	}
	assertTime(t, "next", at(2025, 2, 1, 0, 0), reloadTemplate(t, env.db, tmpl.ID).NextExecutionDate)
}

func TestMaterialize_StaleVersion(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 2, 1, 9, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 1, at(2025, 2, 1, 0, 0))

	// Another run advanced the template after this copy was read
	stale := *tmpl
	_, err := env.recurring.MarkExecuted(tmpl.ID)
	testutil.AssertNoError(t, err)

	_, err = env.recurring.materialize(&stale, at(2025, 2, 1, 9, 0))
	testutil.AssertAppError(t, err, "CONCURRENT_UPDATE")

	if n := countRows(t, env.db, &models.Transaction{}, ""); n != 0 {
		t.Errorf("expected no transaction, got %d", n)
	}
}

func TestMarkExecuted(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 1, 20, 10, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 25, at(2025, 1, 25, 0, 0))

	updated, err := env.recurring.MarkExecuted(tmpl.ID)
	testutil.AssertNoError(t, err)

	assertTime(t, "next", at(2025, 2, 25, 0, 0), updated.NextExecutionDate)
	if updated.LastExecutedDate == nil {
		t.Fatal("expected last executed date")
	}
	assertTime(t, "last executed", at(2025, 1, 20, 10, 0), *updated.LastExecutedDate)
	if n := countRows(t, env.db, &models.Transaction{}, ""); n != 0 {
		t.Errorf("expected no transaction, got %d", n)
	}

	_, err = env.recurring.MarkExecuted("0190a8c2-0000-7000-8000-000000000000")
	testutil.AssertAppError(t, err, "TEMPLATE_NOT_FOUND")
}

func TestSetActive(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 6, 1, 0, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 1, at(2025, 1, 1, 0, 0))

	paused, err := env.recurring.SetActive(tmpl.ID, false)
	testutil.AssertNoError(t, err)
	if paused.IsActive {
		t.Fatal("expected template to be inactive")
	}

	due, err := env.recurring.DueForExecution(time.Time{})
	testutil.AssertNoError(t, err)
	if len(due) != 0 {
		t.Errorf("expected paused template not to be due, got %d", len(due))
	}

	resumed, err := env.recurring.SetActive(tmpl.ID, true)
	testutil.AssertNoError(t, err)

	// Reactivation keeps the old date, so the template is due right away
	assertTime(t, "next", at(2025, 1, 1, 0, 0), resumed.NextExecutionDate)
	due, err = env.recurring.DueForExecution(time.Time{})
	testutil.AssertNoError(t, err)
	if len(due) != 1 {
		t.Errorf("expected reactivated template to be due, got %d", len(due))
	}
}

func TestRescheduleFromNow(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 6, 10, 0, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 5, at(2025, 1, 5, 0, 0))

	updated, err := env.recurring.RescheduleFromNow(tmpl.ID)
	testutil.AssertNoError(t, err)

	assertTime(t, "next", at(2025, 7, 5, 0, 0), updated.NextExecutionDate)
}

func TestDueForReminder(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 3, 1, 12, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	testutil.CreateTestTemplate(t, env.db, account.ID, 1, at(2025, 3, 1, 12, 0)) // due now, excluded
	inside := testutil.CreateTestTemplate(t, env.db, account.ID, 3, at(2025, 3, 3, 0, 0))
	edge := testutil.CreateTestTemplate(t, env.db, account.ID, 8, at(2025, 3, 8, 12, 0))
	testutil.CreateTestTemplate(t, env.db, account.ID, 9, at(2025, 3, 9, 0, 0))
	paused := testutil.CreateTestTemplate(t, env.db, account.ID, 4, at(2025, 3, 4, 0, 0))
	env.db.Model(paused).Update("is_active", false)

	upcoming, err := env.recurring.DueForReminder(time.Time{}, 0)
	testutil.AssertNoError(t, err)

	if len(upcoming) != 2 {
		t.Fatalf("expected 2 upcoming templates, got %d", len(upcoming))
	}
	if upcoming[0].ID != inside.ID || upcoming[1].ID != edge.ID {
		t.Errorf("unexpected upcoming order: %s, %s", upcoming[0].ID, upcoming[1].ID)
	}

	narrow, err := env.recurring.DueForReminder(at(2025, 3, 1, 12, 0), 1)
	testutil.AssertNoError(t, err)
	if len(narrow) != 0 {
		t.Errorf("expected nothing within one day, got %d", len(narrow))
	}
}

func TestUpdateTemplate(t *testing.T) {
	t.Run("non_schedule_fields_keep_date", func(t *testing.T) {
		env := newLedgerEnv(t, at(2025, 1, 10, 0, 0))
		account := testutil.CreateTestCashAccount(t, env.db)
		tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 15, at(2025, 1, 15, 0, 0))

		amount := testutil.Dec(t, "1200")
		updated, err := env.recurring.UpdateTemplate(tmpl.ID, TemplateUpdateFields{
			Name:   strPtr("Rent 2025"),
			Amount: &amount,
		})
		testutil.AssertNoError(t, err)

		if updated.Name != "Rent 2025" {
			t.Errorf("expected new name, got %s", updated.Name)
		}
		testutil.AssertDecimal(t, "amount", "1200", updated.Amount)
		assertTime(t, "next", at(2025, 1, 15, 0, 0), updated.NextExecutionDate)
		if updated.Version != 2 {
			t.Errorf("expected version 2, got %d", updated.Version)
		}
	})

	t.Run("schedule_change_recomputes_date", func(t *testing.T) {
		env := newLedgerEnv(t, at(2025, 1, 10, 0, 0))
		account := testutil.CreateTestCashAccount(t, env.db)
		tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 15, at(2025, 1, 15, 0, 0))

		day := 5
		updated, err := env.recurring.UpdateTemplate(tmpl.ID, TemplateUpdateFields{DayOfPeriod: &day})
		testutil.AssertNoError(t, err)

		assertTime(t, "next", at(2025, 2, 5, 0, 0), updated.NextExecutionDate)
	})

	t.Run("invalid_schedule", func(t *testing.T) {
		env := newLedgerEnv(t, at(2025, 1, 10, 0, 0))
		account := testutil.CreateTestCashAccount(t, env.db)
		tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 15, at(2025, 1, 15, 0, 0))

		weekly := calendar.FrequencyWeekly
		_, err := env.recurring.UpdateTemplate(tmpl.ID, TemplateUpdateFields{Frequency: &weekly})
		testutil.AssertAppError(t, err, "INVALID_SCHEDULE")
	})
}

func TestDeleteTemplate(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 2, 1, 9, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 1, at(2025, 2, 1, 0, 0))

	_, err := env.recurring.ProcessAllDue(context.Background(), at(2025, 2, 1, 9, 0))
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, env.recurring.DeleteTemplate(tmpl.ID))

	_, err = env.recurring.GetTemplateByID(tmpl.ID)
	testutil.AssertAppError(t, err, "TEMPLATE_NOT_FOUND")
	if n := countRows(t, env.db, &models.Transaction{}, ""); n != 1 {
		t.Errorf("expected materialized transaction to be kept, got %d", n)
	}

	testutil.AssertAppError(t, env.recurring.DeleteTemplate(tmpl.ID), "TEMPLATE_NOT_FOUND")
}

func TestGetTemplates(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 1, 1, 0, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	later := testutil.CreateTestTemplate(t, env.db, account.ID, 20, at(2025, 1, 20, 0, 0))
	sooner := testutil.CreateTestTemplate(t, env.db, account.ID, 5, at(2025, 1, 5, 0, 0))
	env.db.Model(later).Update("is_active", false)

	page, err := env.recurring.GetTemplates(pagination.PageRequest{}, TemplateFilter{})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 2 || page.Data[0].ID != sooner.ID {
		t.Errorf("expected 2 templates ordered by next execution, got %d", page.TotalItems)
	}

	active, err := env.recurring.GetTemplates(pagination.PageRequest{}, TemplateFilter{IsActive: boolPtr(true)})
	testutil.AssertNoError(t, err)
	if active.TotalItems != 1 {
		t.Errorf("expected 1 active template, got %d", active.TotalItems)
	}
}

func TestProcessAllDue_ClockLocation(t *testing.T) {
	shanghai := mustLoadLocation(t, "Asia/Shanghai")
	local := func(m time.Month, d int) time.Time {
		return time.Date(2025, m, d, 0, 0, 0, 0, shanghai)
	}

	tests := []struct {
		name     string
		day      int
		next     time.Time
		now      time.Time
		wantNext time.Time
	}{
		{
			name:     "mid_month_with_utc_now",
			day:      15,
			next:     local(time.January, 15),
			now:      time.Date(2025, time.January, 16, 0, 0, 0, 0, time.UTC),
			wantNext: local(time.February, 15),
		},
		{
			name:     "month_end_with_utc_now",
			day:      31,
			next:     local(time.January, 31),
			now:      time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
			wantNext: local(time.February, 28),
		},
		{
			name:     "month_end_with_clock_now",
			day:      31,
			next:     local(time.January, 31),
			wantNext: local(time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newLedgerEnv(t, local(time.February, 1).Add(9*time.Hour))
			account := testutil.CreateTestCashAccount(t, env.db)
			tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, tt.day, tt.next.UTC())

			report, err := env.recurring.ProcessAllDue(context.Background(), tt.now)
			testutil.AssertNoError(t, err)
			if report.Processed != 1 {
				t.Fatalf("expected 1 processed, got %+v", report)
			}
			assertTime(t, "next", tt.wantNext, reloadTemplate(t, env.db, tmpl.ID).NextExecutionDate)
		})
	}
}

func TestMarkExecuted_ClockLocation(t *testing.T) {
	shanghai := mustLoadLocation(t, "Asia/Shanghai")
	env := newLedgerEnv(t, time.Date(2025, time.January, 31, 8, 0, 0, 0, shanghai))
	account := testutil.CreateTestCashAccount(t, env.db)
	tmpl := testutil.CreateTestTemplate(t, env.db, account.ID, 31,
		time.Date(2025, time.January, 31, 0, 0, 0, 0, shanghai).UTC())

	updated, err := env.recurring.MarkExecuted(tmpl.ID)
	testutil.AssertNoError(t, err)
	assertTime(t, "next", time.Date(2025, time.February, 28, 0, 0, 0, 0, shanghai), updated.NextExecutionDate)
}

func TestBatchKey(t *testing.T) {
	jan15 := at(2025, 1, 15, 0, 0)
	shanghai := mustLoadLocation(t, "Asia/Shanghai")

	if batchKey(time.Time{}) != processDueKey {
		t.Errorf("zero time should use the shared clock key, got %q", batchKey(time.Time{}))
	}
	if batchKey(jan15) == batchKey(time.Time{}) {
		t.Error("explicit time must not share the clock key")
	}
	if batchKey(jan15) == batchKey(jan15.Add(time.Nanosecond)) {
		t.Error("distinct instants must not share a key")
	}
	if batchKey(jan15) != batchKey(jan15.In(shanghai)) {
		t.Error("the same instant in another zone should share a key")
	}
}

func TestProcessAllDue_DistinctEvaluationTimes(t *testing.T) {
	env := newLedgerEnv(t, at(2025, 3, 1, 0, 0))
	account := testutil.CreateTestCashAccount(t, env.db)
	early := testutil.CreateTestTemplate(t, env.db, account.ID, 10, at(2025, 1, 10, 0, 0))
	late := testutil.CreateTestTemplate(t, env.db, account.ID, 20, at(2025, 1, 20, 0, 0))

	first, err := env.recurring.ProcessAllDue(context.Background(), at(2025, 1, 15, 0, 0))
	testutil.AssertNoError(t, err)
	second, err := env.recurring.ProcessAllDue(context.Background(), at(2025, 1, 25, 0, 0))
	testutil.AssertNoError(t, err)

	if first.Processed != 1 || second.Processed != 1 {
		t.Fatalf("expected one template per call, got %d and %d", first.Processed, second.Processed)
	}
	assertTime(t, "first evaluated at", at(2025, 1, 15, 0, 0), first.EvaluatedAt)
	assertTime(t, "second evaluated at", at(2025, 1, 25, 0, 0), second.EvaluatedAt)
	assertTime(t, "early next", at(2025, 2, 10, 0, 0), reloadTemplate(t, env.db, early.ID).NextExecutionDate)
	assertTime(t, "late next", at(2025, 2, 20, 0, 0), reloadTemplate(t, env.db, late.ID).NextExecutionDate)
}
