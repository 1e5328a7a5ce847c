// Package numbering allocates quotation numbers of the form PREFIX-YYYY-NNNN.
//
// Numbers live in per-year partitions ("QUO-2026-"). Inside a partition they
// start at FirstNumber and grow by one. Allocation reads and bumps a counter
// row under a row lock, so it must run inside the transaction that inserts the
// quotation.
package numbering

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/diewo77/go-quotations/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FirstNumber is the first sequence value of every partition, and the floor.
const FirstNumber = 1001

// PartitionKey returns the shared prefix of every number issued in year.
func PartitionKey(prefix string, year int) string {
	return fmt.Sprintf("%s-%d-", prefix, year)
}

// Format renders a full number from its partition key and sequence value.
func Format(partition string, n int64) string {
	return fmt.Sprintf("%s%04d", partition, n)
}

// ParseSuffix extracts the sequence value of number. ok is false when number
// is outside the partition or its suffix is not a plain decimal integer.
func ParseSuffix(partition, number string) (n int64, ok bool) {
	suffix, found := strings.CutPrefix(number, partition)
	if !found || suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Next returns the value following last, never below FirstNumber.
func Next(last int64) int64 {
	if last < FirstNumber {
		return FirstNumber
	}
	return last + 1
}

// Sequencer hands out numbers for one prefix.
type Sequencer struct {
	Prefix string
}

// NewSequencer returns a Sequencer for prefix (e.g. "QUO").
func NewSequencer(prefix string) *Sequencer {
	return &Sequencer{Prefix: prefix}
}

// Allocate reserves the next number of the year partition. tx must be an open
// transaction; the counter row stays locked until it ends, and a rollback
// releases the number again.
func (s *Sequencer) Allocate(tx *gorm.DB, year int) (string, error) {
	partition := PartitionKey(s.Prefix, year)

	seq, err := s.lockCounter(tx, partition)
	if err != nil {
		return "", err
	}

	n := Next(seq.LastValue)
	for {
		// The counter can lag behind rows written before it existed or restored
		// from a backup; skip anything already taken, deleted rows included,
		// since the unique index still covers them.
		var taken int64
		if err := tx.Unscoped().Model(&models.Quotation{}).
			Where("number = ?", Format(partition, n)).
			Count(&taken).Error; err != nil {
			return "", fmt.Errorf("check number %s: %w", Format(partition, n), err)
		}
		if taken == 0 {
			break
		}
		n++
	}

	if err := tx.Model(&models.QuotationSequence{}).
		Where("partition_key = ?", partition).
		Update("last_value", n).Error; err != nil {
		return "", fmt.Errorf("bump sequence %s: %w", partition, err)
	}
	return Format(partition, n), nil
}

// lockCounter returns the partition counter row locked FOR UPDATE, creating it
// on first use from the highest number already stored.
func (s *Sequencer) lockCounter(tx *gorm.DB, partition string) (*models.QuotationSequence, error) {
	seq, err := selectForUpdate(tx, partition)
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lock sequence %s: %w", partition, err)
	}

	highest, err := HighestExisting(tx, partition)
	if err != nil {
		return nil, err
	}
	seed := models.QuotationSequence{PartitionKey: partition, LastValue: highest}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("create sequence %s: %w", partition, err)
	}

	seq, err = selectForUpdate(tx, partition)
	if err != nil {
		return nil, fmt.Errorf("lock sequence %s: %w", partition, err)
	}
	return seq, nil
}

func selectForUpdate(tx *gorm.DB, partition string) (*models.QuotationSequence, error) {
	var seq models.QuotationSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("partition_key = ?", partition).
		Take(&seq).Error
	if err != nil {
		return nil, err
	}
	return &seq, nil
}

// HighestExisting scans the live (not soft-deleted) quotations of partition
// and returns the largest numeric suffix, or 0 when there is none. Suffixes
// that are not plain integers are ignored.
func HighestExisting(db *gorm.DB, partition string) (int64, error) {
	var numbers []string
	if err := db.Model(&models.Quotation{}).
		Where("number LIKE ?", partition+"%").
		Pluck("number", &numbers).Error; err != nil {
		return 0, fmt.Errorf("scan numbers %s: %w", partition, err)
	}
	var highest int64
	for _, number := range numbers {
		if n, ok := ParseSuffix(partition, number); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}
