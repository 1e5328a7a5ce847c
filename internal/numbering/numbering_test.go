package numbering

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-quotations/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(name, "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedQuotation(t *testing.T, db *gorm.DB, number string) *models.Quotation {
	t.Helper()
	now := time.Now()
	q := &models.Quotation{
		Number:           number,
		CreatedBy:        1,
		CounterpartyName: "Seed",
		IssueDate:        now,
		ExpiryDate:       now.AddDate(0, 0, 30),
		Status:           models.QuotationStatusDraft,
	}
	if err := db.Create(q).Error; err != nil {
		t.Fatalf("seed quotation %s: %v", number, err)
	}
	return q
}

func allocate(t *testing.T, db *gorm.DB, seq *Sequencer, year int) string {
	t.Helper()
	var number string
	err := db.Transaction(func(tx *gorm.DB) error {
		n, err := seq.Allocate(tx, year)
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	return number
}

func TestParseSuffix(t *testing.T) {
	tests := []struct {
		number string
		want   int64
		ok     bool
	}{
		{"QUO-2026-1001", 1001, true},
		{"QUO-2026-0042", 42, true},
		{"QUO-2026-12345", 12345, true},
		{"QUO-2026-ABCD", 0, false},
		{"QUO-2026-12a4", 0, false},
		{"QUO-2026-", 0, false},
		{"QUO-2025-1001", 0, false},
		{"QUO-2026--100", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			got, ok := ParseSuffix("QUO-2026-", tt.number)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseSuffix(%q) = %d, %v; want %d, %v", tt.number, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNextAndFormat(t *testing.T) {
	if got := Next(0); got != FirstNumber {
		t.Errorf("Next(0) = %d, want %d", got, FirstNumber)
	}
	if got := Next(42); got != FirstNumber {
		t.Errorf("Next(42) = %d, want floor %d", got, FirstNumber)
	}
	if got := Next(1500); got != 1501 {
		t.Errorf("Next(1500) = %d, want 1501", got)
	}
	if got := Format(PartitionKey("QUO", 2026), 1001); got != "QUO-2026-1001" {
		t.Errorf("Format = %q", got)
	}
}

func TestAllocate_SequentialInEmptyYear(t *testing.T) {
	db := setupTestDB(t, t.Name())
	seq := NewSequencer("QUO")

	first := allocate(t, db, seq, 2026)
	seedQuotation(t, db, first)
	second := allocate(t, db, seq, 2026)

	if first != "QUO-2026-1001" || second != "QUO-2026-1002" {
		t.Fatalf("got %s, %s; want QUO-2026-1001, QUO-2026-1002", first, second)
	}
}

func TestAllocate_ContinuesFromExistingRows(t *testing.T) {
	db := setupTestDB(t, t.Name())
	seedQuotation(t, db, "QUO-2026-1500")
	seedQuotation(t, db, "QUO-2026-1200")

	if got := allocate(t, db, NewSequencer("QUO"), 2026); got != "QUO-2026-1501" {
		t.Fatalf("got %s, want QUO-2026-1501", got)
	}
}

func TestAllocate_CorruptedSuffixCountsAsNoPriorNumber(t *testing.T) {
	db := setupTestDB(t, t.Name())
	seedQuotation(t, db, "QUO-2026-ABCD")

	if got := allocate(t, db, NewSequencer("QUO"), 2026); got != "QUO-2026-1001" {
		t.Fatalf("got %s, want QUO-2026-1001", got)
	}
}

func TestAllocate_YearsArePartitioned(t *testing.T) {
	db := setupTestDB(t, t.Name())
	seq := NewSequencer("QUO")
	seedQuotation(t, db, "QUO-2025-1733")

	if got := allocate(t, db, seq, 2026); got != "QUO-2026-1001" {
		t.Fatalf("2026: got %s, want QUO-2026-1001", got)
	}
	if got := allocate(t, db, seq, 2025); got != "QUO-2025-1734" {
		t.Fatalf("2025: got %s, want QUO-2025-1734", got)
	}
}

func TestAllocate_SkipsSoftDeletedNumbers(t *testing.T) {
	db := setupTestDB(t, t.Name())
	q := seedQuotation(t, db, "QUO-2026-1001")
	if err := db.Delete(q).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if got := allocate(t, db, NewSequencer("QUO"), 2026); got != "QUO-2026-1002" {
		t.Fatalf("got %s, want QUO-2026-1002", got)
	}
}

func TestAllocate_RollbackReleasesNumber(t *testing.T) {
	db := setupTestDB(t, t.Name())
	seq := NewSequencer("QUO")

	_ = db.Transaction(func(tx *gorm.DB) error {
		if _, err := seq.Allocate(tx, 2026); err != nil {
			t.Fatalf("allocate: %v", err)
		}
		return fmt.Errorf("abort")
	})

	if got := allocate(t, db, seq, 2026); got != "QUO-2026-1001" {
		t.Fatalf("got %s, want QUO-2026-1001 after rollback", got)
	}
}
