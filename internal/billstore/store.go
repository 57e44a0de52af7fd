package billstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ameli-konnector/internal/bills"
	"ameli-konnector/internal/components/assert"
	"ameli-konnector/internal/components/chrono"
	"ameli-konnector/internal/components/telemetry"

	"github.com/shopspring/decimal"
)

const (
	report_store_save = "store.save"
)

var ErrDeadlineExceeded = errors.New("save deadline exceeded")

type SaveOptions struct {
	// Deadline bounds the whole save, nothing is persisted past it.
	Deadline time.Time
	// Identifiers is the label used to match the records with bank operations.
	Identifiers string
	// DateDelta is the number of days two records may be apart and still match.
	DateDelta int
	// AmountDelta is how far apart two matching amounts may be.
	AmountDelta decimal.Decimal
}

type SaveResult struct {
	Inserted int
	Skipped  int
}

type Store struct {
	db   *sql.DB
	time chrono.API
	tel  telemetry.API
}

func NewStore(db *sql.DB, time chrono.API, tel telemetry.API) Store {
	assert.NotNil(db)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Store{
		db:   db,
		time: time,
		tel:  telemetry.NewScopedAPI("billstore", tel),
	}
}

type storedBill struct {
	date   time.Time
	amount decimal.Decimal
}

func (s Store) existing(ctx context.Context, tx *sql.Tx, folder string, record bills.BillingRecord) ([]storedBill, error) {
	rows, err := tx.QueryContext(
		ctx,
		`select date, amount from bill
		where folder = ? and vendor = ? and subtype = ? and beneficiary = ? and is_third_party_payer = ?`,
		folder, record.Vendor, record.Subtype, record.Beneficiary, record.IsThirdPartyPayer,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedBill
	for rows.Next() {
		var unix int64
		var amount string
		err = rows.Scan(&unix, &amount)
		if err != nil {
			return nil, err
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			s.tel.ReportWarning(report_store_save, fmt.Errorf("stored amount %q: %w", amount, err))
			continue
		}
		out = append(out, storedBill{date: time.Unix(unix, 0).In(s.time.Location()), amount: parsed})
	}
	return out, rows.Err()
}

// calendarDay is the date of t in loc, as a UTC midnight so that day
// differences are not skewed by daylight saving changes.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func (s Store) matches(stored storedBill, record bills.BillingRecord, opts SaveOptions) bool {
	loc := s.time.Location()
	days := int(calendarDay(record.Date, loc).Sub(calendarDay(stored.date, loc)).Hours() / 24)
	if days < 0 {
		days = -days
	}
	if days > opts.DateDelta {
		return false
	}
	return record.Amount.Sub(stored.amount).Abs().LessThanOrEqual(opts.AmountDelta)
}

// Save inserts the records that match no bill previously saved in the same
// folder. Records of the same call are never matched against each other.
// It either saves every new record or none.
//
// The deadline is read against the clock of the store.
func (s Store) Save(ctx context.Context, records []bills.BillingRecord, folder string, opts SaveOptions) (SaveResult, error) {
	expired := func() bool {
		return !opts.Deadline.IsZero() && !s.time.Now().Before(opts.Deadline)
	}

	saveError := func(err error) error {
		if expired() || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrDeadlineExceeded, err)
		}
		s.tel.ReportBroken(report_store_save, err)
		return fmt.Errorf("save bills: %w", err)
	}

	if !opts.Deadline.IsZero() {
		remaining := opts.Deadline.Sub(s.time.Now())
		if remaining <= 0 {
			return SaveResult{}, saveError(fmt.Errorf("deadline %s already passed", opts.Deadline.Format(time.RFC3339)))
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, remaining)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, saveError(err)
	}
	defer tx.Rollback()

	fresh := []bills.BillingRecord{}
	result := SaveResult{}
	for _, record := range records {
		stored, err := s.existing(ctx, tx, folder, record)
		if err != nil {
			return SaveResult{}, saveError(err)
		}

		duplicate := false
		for _, candidate := range stored {
			if s.matches(candidate, record, opts) {
				duplicate = true
				break
			}
		}
		if duplicate {
			result.Skipped++
			continue
		}
		fresh = append(fresh, record)
	}

	now := s.time.Now().Unix()
	for _, record := range fresh {
		var originalAmount sql.NullString
		if record.OriginalAmount != nil {
			originalAmount = sql.NullString{String: record.OriginalAmount.String(), Valid: true}
		}

		_, err = tx.ExecContext(
			ctx,
			`insert into bill (
				folder, type, subtype, beneficiary, is_third_party_payer, date, original_date,
				vendor, amount, original_amount, file_url, filename, identifiers, created_at
			) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			folder,
			record.Type,
			record.Subtype,
			record.Beneficiary,
			record.IsThirdPartyPayer,
			record.Date.Unix(),
			record.OriginalDate.Unix(),
			record.Vendor,
			record.Amount.String(),
			originalAmount,
			record.FileURL,
			record.Filename,
			opts.Identifiers,
			now,
		)
		if err != nil {
			return SaveResult{}, saveError(err)
		}
		result.Inserted++
	}

	if err := ctx.Err(); err != nil {
		return SaveResult{}, saveError(err)
	}
	if expired() {
		return SaveResult{}, saveError(fmt.Errorf("deadline %s passed before commit", opts.Deadline.Format(time.RFC3339)))
	}
	err = tx.Commit()
	if err != nil {
		return SaveResult{}, saveError(err)
	}

	s.tel.ReportCount("store.inserted", int64(result.Inserted))
	s.tel.ReportCount("store.skipped", int64(result.Skipped))
	return result, nil
}

// Bill is a saved billing record.
type Bill struct {
	bills.BillingRecord
	Identifiers string
}

// List returns the bills saved in a folder, oldest reimbursement first.
func (s Store) List(ctx context.Context, folder string) ([]Bill, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select type, subtype, beneficiary, is_third_party_payer, date, original_date,
			vendor, amount, original_amount, file_url, filename, identifiers
		from bill where folder = ? order by date, id`,
		folder,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bill
	for rows.Next() {
		var b Bill
		var date, originalDate int64
		var amount string
		var originalAmount sql.NullString
		err = rows.Scan(
			&b.Type,
			&b.Subtype,
			&b.Beneficiary,
			&b.IsThirdPartyPayer,
			&date,
			&originalDate,
			&b.Vendor,
			&amount,
			&originalAmount,
			&b.FileURL,
			&b.Filename,
			&b.Identifiers,
		)
		if err != nil {
			return nil, err
		}

		b.Date = time.Unix(date, 0).In(s.time.Location())
		b.OriginalDate = time.Unix(originalDate, 0).In(s.time.Location())
		b.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		if originalAmount.Valid {
			parsed, err := decimal.NewFromString(originalAmount.String)
			if err != nil {
				return nil, err
			}
			b.OriginalAmount = &parsed
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
