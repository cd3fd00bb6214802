package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"tally/internal/calendar"
	"tally/internal/clock"
	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/pagination"
)

// DefaultReminderHorizonDays is used when DueForReminder is given no horizon.
const DefaultReminderHorizonDays = 7

const processDueKey = "process-due"

// recurringService schedules recurring templates and materializes due
// occurrences into ledger transactions.
type recurringService struct {
	db             *gorm.DB
	accountService AccountServicer
	clock          clock.Clock
	workers        int

	// Coalesces concurrent ProcessAllDue calls into one batch.
	batches singleflight.Group
}

// NewRecurringService creates a new RecurringServicer. workers bounds how
// many templates ProcessAllDue materializes at once; values below 1 mean 1.
func NewRecurringService(db *gorm.DB, accountService AccountServicer, clk clock.Clock, workers int) RecurringServicer {
	if workers < 1 {
		workers = 1
	}
	return &recurringService{
		db:             db,
		accountService: accountService,
		clock:          clk,
		workers:        workers,
	}
}

// RecurringNote builds the note written on materialized transactions.
func RecurringNote(tmpl *models.RecurringTemplate) string {
	return fmt.Sprintf("[recurring] %s: %s", tmpl.Name, tmpl.Note)
}

// CreateTemplate creates an active template whose first execution is the
// earliest occurrence at or after the start date.
func (s *recurringService) CreateTemplate(in TemplateInput) (*models.RecurringTemplate, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "template name is required")
	}
	if !in.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if !in.Type.IsValid() {
		return nil, apperrors.ErrInvalidTransactionType
	}

	schedule := calendar.Schedule{Frequency: in.Frequency, DayOfPeriod: in.DayOfPeriod, Month: time.Month(in.Month)}
	if err := schedule.Validate(); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
	}

	if err := s.checkReferences(in.AccountID, in.CategoryID, in.Type); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	start := in.StartDate
	if start.IsZero() {
		start = now
	}
	start = start.In(now.Location())

	autoExecute := true
	if in.AutoExecute != nil {
		autoExecute = *in.AutoExecute
	}

	tmpl := &models.RecurringTemplate{
		Name:              name,
		Amount:            in.Amount,
		Type:              in.Type,
		CategoryID:        in.CategoryID,
		AccountID:         in.AccountID,
		Frequency:         in.Frequency,
		DayOfPeriod:       in.DayOfPeriod,
		Month:             in.Month,
		Note:              in.Note,
		AutoExecute:       autoExecute,
		IsActive:          true,
		StartDate:         start.UTC(),
		NextExecutionDate: calendar.First(start, schedule).UTC(),
		Version:           1,
	}

	if err := s.db.Create(tmpl).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tmpl, nil
}

// checkReferences verifies the account exists and is active and that the
// category, if any, matches the flow direction.
func (s *recurringService) checkReferences(accountID string, categoryID *string, txType models.TransactionType) error {
	if accountID == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}
	account, err := s.accountService.GetAccountByID(accountID)
	if err != nil {
		return err
	}
	if !account.IsActive {
		return apperrors.ErrAccountInactive
	}
	if categoryID != nil {
		category, err := findCategory(s.db, *categoryID)
		if err != nil {
			return err
		}
		if string(category.Type) != string(txType) {
			return apperrors.ErrCategoryTypeMismatch
		}
	}
	return nil
}

// GetTemplates retrieves a paginated list of templates ordered by next execution.
func (s *recurringService) GetTemplates(page pagination.PageRequest, filter TemplateFilter) (*pagination.PageResponse[models.RecurringTemplate], error) {
	page.Defaults()

	base := s.db.Model(&models.RecurringTemplate{})
	if filter.IsActive != nil {
		base = base.Where("is_active = ?", *filter.IsActive)
	}
	if filter.AccountID != nil {
		base = base.Where("account_id = ?", *filter.AccountID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var templates []models.RecurringTemplate
	if err := base.Scopes(pagination.Paginate(page)).
		Order("next_execution_date ASC").
		Find(&templates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(templates, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetTemplateByID retrieves a template by ID
func (s *recurringService) GetTemplateByID(templateID string) (*models.RecurringTemplate, error) {
	return findTemplate(s.db, templateID)
}

func findTemplate(db *gorm.DB, templateID string) (*models.RecurringTemplate, error) {
	var tmpl models.RecurringTemplate
	if err := db.Where("id = ?", templateID).First(&tmpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTemplateNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &tmpl, nil
}

// UpdateTemplate changes template fields. A schedule change restarts the
// schedule from now; other changes leave the next execution date alone.
func (s *recurringService) UpdateTemplate(templateID string, fields TemplateUpdateFields) (*models.RecurringTemplate, error) {
	tmpl, err := s.GetTemplateByID(templateID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "template name cannot be empty")
		}
		updates["name"] = name
	}
	if fields.Amount != nil {
		if !fields.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *fields.Amount
	}
	if fields.CategoryID != nil {
		if err := s.checkReferences(tmpl.AccountID, fields.CategoryID, tmpl.Type); err != nil {
			return nil, err
		}
		updates["category_id"] = *fields.CategoryID
	}
	if fields.Note != nil {
		updates["note"] = *fields.Note
	}
	if fields.AutoExecute != nil {
		updates["auto_execute"] = *fields.AutoExecute
	}

	schedule := tmpl.Schedule()
	scheduleChanged := false
	if fields.Frequency != nil && *fields.Frequency != schedule.Frequency {
		schedule.Frequency = *fields.Frequency
		scheduleChanged = true
	}
	if fields.DayOfPeriod != nil && *fields.DayOfPeriod != schedule.DayOfPeriod {
		schedule.DayOfPeriod = *fields.DayOfPeriod
		scheduleChanged = true
	}
	if fields.Month != nil && time.Month(*fields.Month) != schedule.Month {
		schedule.Month = time.Month(*fields.Month)
		scheduleChanged = true
	}
	if scheduleChanged {
		if err := schedule.Validate(); err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidSchedule, err.Error())
		}
		updates["frequency"] = schedule.Frequency
		updates["day_of_period"] = schedule.DayOfPeriod
		updates["month"] = int(schedule.Month)
		updates["next_execution_date"] = calendar.First(s.clock.Now(), schedule).UTC()
	}

	if len(updates) == 0 {
		return tmpl, nil
	}
	if err := updateTemplateVersioned(s.db, tmpl, updates); err != nil {
		return nil, err
	}
	return s.GetTemplateByID(templateID)
}

// DeleteTemplate permanently removes a template. Transactions it produced are kept.
func (s *recurringService) DeleteTemplate(templateID string) error {
	res := s.db.Unscoped().Delete(&models.RecurringTemplate{}, "id = ?", templateID)
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrTemplateNotFound
	}
	return nil
}

// SetActive enables or disables a template without touching its next
// execution date. A template reactivated after a long pause is due at once
// with its old date; use RescheduleFromNow to skip the backlog.
func (s *recurringService) SetActive(templateID string, active bool) (*models.RecurringTemplate, error) {
	tmpl, err := s.GetTemplateByID(templateID)
	if err != nil {
		return nil, err
	}
	if tmpl.IsActive == active {
		return tmpl, nil
	}
	if err := updateTemplateVersioned(s.db, tmpl, map[string]interface{}{"is_active": active}); err != nil {
		return nil, err
	}
	return s.GetTemplateByID(templateID)
}

// RescheduleFromNow moves the next execution to the first occurrence at or
// after now, dropping any missed occurrences.
func (s *recurringService) RescheduleFromNow(templateID string) (*models.RecurringTemplate, error) {
	tmpl, err := s.GetTemplateByID(templateID)
	if err != nil {
		return nil, err
	}
	next := calendar.First(s.clock.Now(), tmpl.Schedule())
	if err := updateTemplateVersioned(s.db, tmpl, map[string]interface{}{"next_execution_date": next.UTC()}); err != nil {
		return nil, err
	}
	return s.GetTemplateByID(templateID)
}

// MarkExecuted records an execution that happened outside the batch path.
// The next date advances one period from the current next date and no
// transaction is written.
func (s *recurringService) MarkExecuted(templateID string) (*models.RecurringTemplate, error) {
	tmpl, err := s.GetTemplateByID(templateID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := updateTemplateVersioned(s.db, tmpl, advanceColumns(tmpl, now, now.Location())); err != nil {
		return nil, err
	}
	return s.GetTemplateByID(templateID)
}

// advanceColumns returns the updates that move tmpl one period forward from
// its current next date. Day and month boundaries are taken in loc, which is
// the service clock's zone whatever zone now carries.
func advanceColumns(tmpl *models.RecurringTemplate, now time.Time, loc *time.Location) map[string]interface{} {
	next := calendar.Next(tmpl.NextExecutionDate.In(loc), tmpl.Schedule())
	return map[string]interface{}{
		"next_execution_date": next.UTC(),
		"last_executed_date":  now.UTC(),
	}
}

// updateTemplateVersioned writes updates only if the template still has the
// version it was read with, and bumps the version.
func updateTemplateVersioned(db *gorm.DB, tmpl *models.RecurringTemplate, updates map[string]interface{}) error {
	updates["version"] = tmpl.Version + 1
	res := db.Model(&models.RecurringTemplate{}).
		Where("id = ? AND version = ?", tmpl.ID, tmpl.Version).
		Updates(updates)
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConcurrentUpdate
	}
	return nil
}

// DueForExecution returns active templates whose next execution is at or
// before now. A zero now means the service clock's current time.
func (s *recurringService) DueForExecution(now time.Time) ([]models.RecurringTemplate, error) {
	if now.IsZero() {
		now = s.clock.Now()
	}
	var templates []models.RecurringTemplate
	if err := s.db.
		Where("is_active = ? AND next_execution_date <= ?", true, now.UTC()).
		Order("next_execution_date ASC").
		Find(&templates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return templates, nil
}

// DueForReminder returns active templates coming up in (now, now+horizonDays].
// Templates already due are not included.
func (s *recurringService) DueForReminder(now time.Time, horizonDays int) ([]models.RecurringTemplate, error) {
	if now.IsZero() {
		now = s.clock.Now()
	}
	if horizonDays < 1 {
		horizonDays = DefaultReminderHorizonDays
	}
	until := now.AddDate(0, 0, horizonDays)

	var templates []models.RecurringTemplate
	if err := s.db.
		Where("is_active = ? AND next_execution_date > ? AND next_execution_date <= ?", true, now.UTC(), until.UTC()).
		Order("next_execution_date ASC").
		Find(&templates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return templates, nil
}

// ProcessAllDue materializes one occurrence of every template due at now.
// Each template advances by exactly one period per call; callers catching
// up on several missed periods call it repeatedly until nothing is due.
//
// A failing template is recorded in the report and skipped. Concurrent calls
// for the same evaluation time share the batch already in flight and receive
// its report; calls with a zero now all evaluate at the clock and share one
// batch.
func (s *recurringService) ProcessAllDue(ctx context.Context, now time.Time) (*BatchReport, error) {
	key := batchKey(now)
	if now.IsZero() {
		now = s.clock.Now()
	}
	v, err, _ := s.batches.Do(key, func() (interface{}, error) {
		return s.processAllDue(ctx, now)
	})
	if err != nil {
		return nil, err
	}
	return v.(*BatchReport), nil
}

// batchKey groups ProcessAllDue calls that evaluate the same instant. A zero
// now means "the clock", which every such caller shares.
func batchKey(now time.Time) string {
	if now.IsZero() {
		return processDueKey
	}
	return processDueKey + ":" + strconv.FormatInt(now.UnixNano(), 10)
}

func (s *recurringService) processAllDue(ctx context.Context, now time.Time) (*BatchReport, error) {
	due, err := s.DueForExecution(now)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{
		EvaluatedAt:    now,
		Due:            len(due),
		TransactionIDs: []string{},
		Failures:       []ItemFailure{},
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.workers)

	for i := range due {
		tmpl := &due[i]
		g.Go(func() error {
			var txID string
			err := ctx.Err()
			if err == nil {
				txID, err = s.materialize(tmpl, now)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, ItemFailure{
					TemplateID: tmpl.ID,
					Name:       tmpl.Name,
					Error:      err.Error(),
				})
				logger.Get().Warnw("recurring template failed",
					"template_id", tmpl.ID,
					"name", tmpl.Name,
					"error", err,
				)
				return nil
			}
			report.Processed++
			report.TransactionIDs = append(report.TransactionIDs, txID)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.TransactionIDs)
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].TemplateID < report.Failures[j].TemplateID
	})

	logger.Get().Infow("recurring batch processed",
		"evaluated_at", now,
		"due", report.Due,
		"processed", report.Processed,
		"failed", len(report.Failures),
	)
	return report, nil
}

// materialize claims one occurrence of tmpl and writes its transaction in a
// single database transaction. The claim only succeeds if the template is
// still active and unchanged since it was read, so a template already
// advanced by another run is never materialized twice.
func (s *recurringService) materialize(tmpl *models.RecurringTemplate, now time.Time) (string, error) {
	var txID string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		updates := advanceColumns(tmpl, now, s.clock.Now().Location())
		updates["version"] = tmpl.Version + 1
		res := tx.Model(&models.RecurringTemplate{}).
			Where("id = ? AND version = ? AND is_active = ?", tmpl.ID, tmpl.Version, true).
			Updates(updates)
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrConcurrentUpdate
		}

		created, err := createTransactionWithDB(tx, s.accountService, TransactionInput{
			AccountID:  tmpl.AccountID,
			CategoryID: tmpl.CategoryID,
			Type:       tmpl.Type,
			Amount:     tmpl.Amount,
			Note:       RecurringNote(tmpl),
			Date:       now,
		}, &tmpl.ID)
		if err != nil {
			return err
		}
		txID = created.ID
		return nil
	})
	return txID, err
}
