package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-quotations/internal/apperr"
	"github.com/diewo77/go-quotations/internal/events"
	"github.com/diewo77/go-quotations/internal/lock"
	"github.com/diewo77/go-quotations/internal/logging"
	"github.com/diewo77/go-quotations/internal/models"
	"github.com/diewo77/go-quotations/internal/numbering"
	"github.com/diewo77/go-quotations/internal/pricing"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const module = "services"

// DefaultValidity is the expiry window used when Options.Validity is zero.
const DefaultValidity = 30 * 24 * time.Hour

// Options configures a QuotationService. Zero values get defaults.
type Options struct {
	Prefix     string        // number prefix, default "QUO"
	Validity   time.Duration // default expiry window
	StrictSend bool          // repeated send fails instead of being a no-op
	// NumberLocker is taken around number allocation on top of the in-process
	// lock, typically a lock.RedisLocker shared by all replicas.
	NumberLocker lock.Locker
	Publisher    events.Publisher
	Logger       *logrus.Logger
	Now          func() time.Time
}

// QuotationService owns every write to quotations and their items.
type QuotationService struct {
	db         *gorm.DB
	seq        *numbering.Sequencer
	validity   time.Duration
	strictSend bool
	docLocks   lock.Locker
	numLocks   lock.Locker
	publisher  events.Publisher
	log        *logrus.Logger
	now        func() time.Time
}

func NewQuotationService(db *gorm.DB, opts Options) *QuotationService {
	if opts.Prefix == "" {
		opts.Prefix = "QUO"
	}
	if opts.Validity <= 0 {
		opts.Validity = DefaultValidity
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.LogPublisher{Logger: opts.Logger}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	local := lock.NewKeyedMutex()
	return &QuotationService{
		db:         db,
		seq:        numbering.NewSequencer(opts.Prefix),
		validity:   opts.Validity,
		strictSend: opts.StrictSend,
		docLocks:   local,
		numLocks:   lock.Chain(local, opts.NumberLocker),
		publisher:  opts.Publisher,
		log:        opts.Logger,
		now:        opts.Now,
	}
}

// Create validates in, assigns the next number of the current year and stores
// the quotation in draft together with its items.
func (s *QuotationService) Create(ctx context.Context, in CreateInput) (*models.Quotation, error) {
	if err := in.violations().Err(); err != nil {
		return nil, err
	}

	now := s.now()
	issue := now
	if in.IssueDate != nil {
		issue = *in.IssueDate
	}
	expiry := issue.Add(s.validity)
	if in.ExpiryDate != nil {
		expiry = *in.ExpiryDate
	}
	if expiry.Before(issue) {
		return nil, apperr.Invalid("expiry_date", "before_issue_date")
	}

	q := &models.Quotation{
		CreatedBy:           in.CreatedBy,
		CounterpartyName:    strings.TrimSpace(in.Counterparty.Name),
		CounterpartyCompany: in.Counterparty.Company,
		CounterpartyEmail:   in.Counterparty.Email,
		CounterpartyPhone:   in.Counterparty.Phone,
		CounterpartyAddress: in.Counterparty.Address,
		IssueDate:           issue,
		ExpiryDate:          expiry,
		Status:              models.QuotationStatusDraft,
		Notes:               in.Notes,
		Terms:               in.Terms,
		Subtotal:            in.Subtotal,
		TaxAmount:           in.TaxAmount,
		DiscountAmount:      in.DiscountAmount,
	}
	for i, it := range in.Items {
		item := newItem(it, i+1)
		if err := pricing.PriceItem(&item); err != nil {
			var verr *apperr.ValidationError
			if errors.As(err, &verr) {
				return nil, verr.Prefixed(fmt.Sprintf("items[%d].", i))
			}
			return nil, err
		}
		q.Items = append(q.Items, item)
	}
	pricing.RecomputeTotals(q)
	if verr := pricing.CheckTotals(q); verr != nil {
		return nil, verr
	}

	year := now.Year()
	partition := numbering.PartitionKey(s.seq.Prefix, year)
	release, err := s.numLocks.Lock(ctx, "numbering:"+partition)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.inTx(ctx, "Create", func(tx *gorm.DB) error {
		number, err := s.seq.Allocate(tx, year)
		if err != nil {
			return err
		}
		q.Number = number
		return tx.Create(q).Error
	})
	if err != nil {
		return nil, err
	}

	created, err := s.Get(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.QuotationCreated, created, in.CreatedBy)
	return created, nil
}

// AddItem appends a line and recomputes the totals in the same transaction.
func (s *QuotationService) AddItem(ctx context.Context, quotationID uint, in ItemInput) (*models.Quotation, error) {
	if err := in.violations().Err(); err != nil {
		return nil, err
	}
	return s.mutateItems(ctx, quotationID, "AddItem", func(tx *gorm.DB, q *models.Quotation) error {
		position := 0
		for _, it := range q.Items {
			if it.Position > position {
				position = it.Position
			}
		}
		item := newItem(in, position+1)
		item.QuotationID = q.ID
		if err := pricing.PriceItem(&item); err != nil {
			return err
		}
		return tx.Create(&item).Error
	})
}

// UpdateItem replaces the caller-controlled fields of a line.
func (s *QuotationService) UpdateItem(ctx context.Context, quotationID, itemID uint, in ItemInput) (*models.Quotation, error) {
	if err := in.violations().Err(); err != nil {
		return nil, err
	}
	return s.mutateItems(ctx, quotationID, "UpdateItem", func(tx *gorm.DB, q *models.Quotation) error {
		item, err := findItem(q, itemID)
		if err != nil {
			return err
		}
		updated := newItem(in, item.Position)
		updated.ID = item.ID
		updated.QuotationID = q.ID
		updated.CreatedAt = item.CreatedAt
		if err := pricing.PriceItem(&updated); err != nil {
			return err
		}
		return tx.Save(&updated).Error
	})
}

// RemoveItem deletes a line. Removing the last line leaves the totals as they
// were, since an itemless quotation keeps its stored amounts.
func (s *QuotationService) RemoveItem(ctx context.Context, quotationID, itemID uint) (*models.Quotation, error) {
	return s.mutateItems(ctx, quotationID, "RemoveItem", func(tx *gorm.DB, q *models.Quotation) error {
		if _, err := findItem(q, itemID); err != nil {
			return err
		}
		return tx.Delete(&models.QuotationItem{}, itemID).Error
	})
}

// SetManualTotals stores caller-supplied totals on a quotation without items.
func (s *QuotationService) SetManualTotals(ctx context.Context, quotationID uint, in TotalsInput) (*models.Quotation, error) {
	if err := in.violations().Err(); err != nil {
		return nil, err
	}
	release, err := s.docLocks.Lock(ctx, docKey(quotationID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.inTx(ctx, "SetManualTotals", func(tx *gorm.DB) error {
		q, err := lockQuotation(tx, quotationID)
		if err != nil {
			return err
		}
		if !q.CanEdit() {
			return &apperr.DocumentLockedError{Status: string(q.Status)}
		}
		if len(q.Items) > 0 {
			return apperr.Invalid("items", "totals_derived_from_items")
		}
		q.Subtotal, q.TaxAmount, q.DiscountAmount = in.Subtotal, in.TaxAmount, in.DiscountAmount
		pricing.RecomputeTotals(q)
		if verr := pricing.CheckTotals(q); verr != nil {
			return verr
		}
		return saveTotals(tx, q, s.now())
	})
	if err != nil {
		return nil, err
	}
	return s.reloadAndPublish(ctx, quotationID, events.QuotationUpdated, 0)
}

// UpdateDetails edits counterparty, notes, terms and expiry date while the
// quotation is still open. The number never changes.
func (s *QuotationService) UpdateDetails(ctx context.Context, quotationID uint, in DetailsInput) (*models.Quotation, error) {
	if err := in.violations().Err(); err != nil {
		return nil, err
	}
	release, err := s.docLocks.Lock(ctx, docKey(quotationID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.inTx(ctx, "UpdateDetails", func(tx *gorm.DB) error {
		q, err := lockQuotation(tx, quotationID)
		if err != nil {
			return err
		}
		if !q.CanEdit() {
			return &apperr.DocumentLockedError{Status: string(q.Status)}
		}
		updates := map[string]any{"updated_at": s.now()}
		if c := in.Counterparty; c != nil {
			updates["counterparty_name"] = strings.TrimSpace(c.Name)
			updates["counterparty_company"] = c.Company
			updates["counterparty_email"] = c.Email
			updates["counterparty_phone"] = c.Phone
			updates["counterparty_address"] = c.Address
		}
		if in.ExpiryDate != nil {
			if in.ExpiryDate.Before(q.IssueDate) {
				return apperr.Invalid("expiry_date", "before_issue_date")
			}
			updates["expiry_date"] = *in.ExpiryDate
		}
		if in.Notes != nil {
			updates["notes"] = *in.Notes
		}
		if in.Terms != nil {
			updates["terms"] = *in.Terms
		}
		return tx.Model(&models.Quotation{}).Where("id = ?", q.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.reloadAndPublish(ctx, quotationID, events.QuotationUpdated, 0)
}

// Transition moves the quotation through the state machine. The status write
// is a compare-and-set on the allowed source statuses, so two racing
// transitions cannot both win.
func (s *QuotationService) Transition(ctx context.Context, quotationID uint, event Event, actor uint, notes string) (*models.Quotation, error) {
	if _, ok := ParseEvent(string(event)); !ok {
		return nil, apperr.Invalid("event", "unknown_event")
	}
	if actor == 0 {
		return nil, apperr.Invalid("actor", "required")
	}
	release, err := s.docLocks.Lock(ctx, docKey(quotationID))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.Get(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	_, noop, err := nextStatus(current.Status, event, s.strictSend)
	if err != nil {
		return nil, err
	}
	if noop {
		return current, nil
	}

	res := s.db.WithContext(ctx).Model(&models.Quotation{}).
		Where("id = ? AND status IN ?", quotationID, sourceStatuses(event)).
		Updates(transitionUpdates(event, actor, notes, s.now()))
	if res.Error != nil {
		logging.LogError(s.log, module, "Transition", "status update failed", map[string]any{"id": quotationID, "event": event}, res.Error)
		return nil, &apperr.PersistenceError{Op: "Transition", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return s.lostTransition(ctx, quotationID, event)
	}
	return s.reloadAndPublish(ctx, quotationID, transitions[event].notify, actor)
}

// lostTransition resolves a compare-and-set that matched no row: another
// writer changed the status first. A repeated send that the winner already
// performed still succeeds as a no-op.
func (s *QuotationService) lostTransition(ctx context.Context, quotationID uint, event Event) (*models.Quotation, error) {
	latest, err := s.Get(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	_, noop, err := nextStatus(latest.Status, event, s.strictSend)
	if err != nil {
		return nil, err
	}
	if noop {
		return latest, nil
	}
	s.log.WithFields(logrus.Fields{"id": quotationID, "event": event, "status": latest.Status}).
		Warn("status changed concurrently")
	return nil, &apperr.ConcurrencyConflictError{Resource: fmt.Sprintf("quotation %d", quotationID)}
}

// Get returns a live quotation with its items and a fresh expiry flag.
func (s *QuotationService) Get(ctx context.Context, quotationID uint) (*models.Quotation, error) {
	var q models.Quotation
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		First(&q, quotationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("quotation %d: %w", quotationID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "Get", Err: err}
	}
	q.Expired = q.IsExpired(s.now())
	return &q, nil
}

// GetWithDeleted is Get including soft-deleted quotations.
func (s *QuotationService) GetWithDeleted(ctx context.Context, quotationID uint) (*models.Quotation, error) {
	var q models.Quotation
	err := s.db.WithContext(ctx).Unscoped().First(&q, quotationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("quotation %d: %w", quotationID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "GetWithDeleted", Err: err}
	}
	q.Expired = q.IsExpired(s.now())
	return &q, nil
}

// Delete soft-deletes a quotation. Its number stays reserved.
func (s *QuotationService) Delete(ctx context.Context, quotationID uint, actor uint) error {
	release, err := s.docLocks.Lock(ctx, docKey(quotationID))
	if err != nil {
		return err
	}
	defer release()

	q, err := s.Get(ctx, quotationID)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.Quotation{}, quotationID)
	if res.Error != nil {
		logging.LogError(s.log, module, "Delete", "soft delete failed", quotationID, res.Error)
		return &apperr.PersistenceError{Op: "Delete", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("quotation %d: %w", quotationID, apperr.ErrNotFound)
	}
	s.publish(ctx, events.QuotationDeleted, q, actor)
	return nil
}

// Restore brings back a soft-deleted quotation. Restoring a live one is a no-op.
func (s *QuotationService) Restore(ctx context.Context, quotationID uint, actor uint) (*models.Quotation, error) {
	release, err := s.docLocks.Lock(ctx, docKey(quotationID))
	if err != nil {
		return nil, err
	}
	defer release()

	res := s.db.WithContext(ctx).Unscoped().Model(&models.Quotation{}).
		Where("id = ? AND deleted_at IS NOT NULL", quotationID).
		Update("deleted_at", nil)
	if res.Error != nil {
		logging.LogError(s.log, module, "Restore", "restore failed", quotationID, res.Error)
		return nil, &apperr.PersistenceError{Op: "Restore", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return s.Get(ctx, quotationID)
	}
	return s.reloadAndPublish(ctx, quotationID, events.QuotationRestored, actor)
}

// mutateItems runs fn with the quotation row locked, then recomputes and
// stores the totals before the transaction commits.
func (s *QuotationService) mutateItems(ctx context.Context, quotationID uint, op string, fn func(tx *gorm.DB, q *models.Quotation) error) (*models.Quotation, error) {
	release, err := s.docLocks.Lock(ctx, docKey(quotationID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.inTx(ctx, op, func(tx *gorm.DB) error {
		q, err := lockQuotation(tx, quotationID)
		if err != nil {
			return err
		}
		if !q.CanEdit() {
			return &apperr.DocumentLockedError{Status: string(q.Status)}
		}
		if err := fn(tx, q); err != nil {
			return err
		}
		if q.Items, err = loadItems(tx, quotationID); err != nil {
			return err
		}
		pricing.RecomputeTotals(q)
		if verr := pricing.CheckTotals(q); verr != nil {
			return verr
		}
		return saveTotals(tx, q, s.now())
	})
	if err != nil {
		return nil, err
	}
	return s.reloadAndPublish(ctx, quotationID, events.QuotationItemsChanged, 0)
}

// inTx runs fn in a transaction. Errors outside the domain taxonomy are
// logged and wrapped in a PersistenceError; the transaction is rolled back in
// every error case.
func (s *QuotationService) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	if apperr.IsDomain(err) {
		return err
	}
	logging.LogError(s.log, module, op, "transaction rolled back", nil, err)
	return &apperr.PersistenceError{Op: op, Err: err}
}

func (s *QuotationService) reloadAndPublish(ctx context.Context, quotationID uint, t events.Type, actor uint) (*models.Quotation, error) {
	q, err := s.Get(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, t, q, actor)
	return q, nil
}

// publish sends an event for a committed change. Failures are logged only:
// the change itself already succeeded.
func (s *QuotationService) publish(ctx context.Context, t events.Type, q *models.Quotation, actor uint) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	e := events.Event{
		Type:        t,
		QuotationID: q.ID,
		Number:      q.Number,
		Status:      string(q.Status),
		TotalAmount: q.TotalAmount,
		Actor:       actor,
		OccurredAt:  s.now(),
	}
	if err := s.publisher.Publish(pctx, e); err != nil {
		logging.LogError(s.log, module, "publish", "event not delivered", e, err)
	}
}

func docKey(id uint) string {
	return fmt.Sprintf("quotation:%d", id)
}

func newItem(in ItemInput, position int) models.QuotationItem {
	return models.QuotationItem{
		Description:  strings.TrimSpace(in.Description),
		Quantity:     in.Quantity,
		UnitPrice:    in.UnitPrice,
		TaxRate:      in.TaxRate,
		DiscountRate: in.DiscountRate,
		Position:     position,
	}
}

func findItem(q *models.Quotation, itemID uint) (*models.QuotationItem, error) {
	for i := range q.Items {
		if q.Items[i].ID == itemID {
			return &q.Items[i], nil
		}
	}
	return nil, fmt.Errorf("item %d of quotation %d: %w", itemID, q.ID, apperr.ErrNotFound)
}

// lockQuotation reads the quotation FOR UPDATE and loads its items.
func lockQuotation(tx *gorm.DB, quotationID uint) (*models.Quotation, error) {
	var q models.Quotation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&q, quotationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("quotation %d: %w", quotationID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if q.Items, err = loadItems(tx, quotationID); err != nil {
		return nil, err
	}
	return &q, nil
}

func loadItems(tx *gorm.DB, quotationID uint) ([]models.QuotationItem, error) {
	var items []models.QuotationItem
	err := tx.Where("quotation_id = ?", quotationID).Order("position, id").Find(&items).Error
	return items, err
}

func saveTotals(tx *gorm.DB, q *models.Quotation, at time.Time) error {
	return tx.Model(&models.Quotation{}).Where("id = ?", q.ID).Updates(map[string]any{
		"subtotal":        q.Subtotal,
		"tax_amount":      q.TaxAmount,
		"discount_amount": q.DiscountAmount,
		"total_amount":    q.TotalAmount,
		"updated_at":      at,
	}).Error
}
