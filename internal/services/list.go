package services

import (
	"context"
	"strings"

	"github.com/diewo77/go-quotations/internal/apperr"
	"github.com/diewo77/go-quotations/internal/models"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Status    models.QuotationStatus
	Search    string // number, counterparty name or company, case-insensitive
	CreatedBy uint
	Expired   *bool
	Page      int // 1-based
	PageSize  int
}

// ListResult is one page of quotations, newest first.
type ListResult struct {
	Items    []models.Quotation `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// List returns live quotations matching f with items and expiry flag loaded.
func (s *QuotationService) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Invalid("status", "unknown_status")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	now := s.now()

	query := s.db.WithContext(ctx).Model(&models.Quotation{})
	if f.Status != "" {
		query = query.Where("status = ?", string(f.Status))
	}
	if f.CreatedBy != 0 {
		query = query.Where("created_by = ?", f.CreatedBy)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where(
			"LOWER(number) LIKE ? OR LOWER(counterparty_name) LIKE ? OR LOWER(counterparty_company) LIKE ?",
			like, like, like,
		)
	}
	if f.Expired != nil {
		if *f.Expired {
			query = query.Where("expiry_date < ?", now)
		} else {
			query = query.Where("expiry_date >= ?", now)
		}
	}

	// shared by the count and the page query
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, &apperr.PersistenceError{Op: "List", Err: err}
	}

	var rows []models.Quotation
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "List", Err: err}
	}
	for i := range rows {
		rows[i].Expired = rows[i].IsExpired(now)
	}
	return &ListResult{Items: rows, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}
