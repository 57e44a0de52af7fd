// Package konnector runs the whole retrieval of a user's reimbursements, from
// the portal login to the saved billing records.
package konnector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ameli-konnector/internal/ameli"
	"ameli-konnector/internal/bills"
	"ameli-konnector/internal/billstore"
	"ameli-konnector/internal/components/assert"
	"ameli-konnector/internal/components/chrono"
	"ameli-konnector/internal/components/telemetry"
	libtelemetry "ameli-konnector/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("ameli-konnector/internal/konnector")

const (
	DefaultIdentifiers = "C.P.A.M."
	SaveTimeout        = 60 * time.Second
	DateDelta          = 10
)

var AmountDelta = decimal.RequireFromString("0.1")

var ErrMissingField = errors.New("missing field")

const (
	report_konnector_run  = "konnector.run"
	report_konnector_save = "konnector.save"
)

// Fields are the user supplied inputs of a run.
type Fields struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	// BankIdentifier overrides the label used to match the bills with bank
	// operations.
	BankIdentifier string `json:"bank_identifier"`
	FolderPath     string `json:"folder_path"`
}

func (f Fields) identifiers() string {
	if f.BankIdentifier != "" {
		return f.BankIdentifier
	}
	return DefaultIdentifiers
}

// Saver persists billing records, skipping those that were already saved.
type Saver interface {
	Save(ctx context.Context, records []bills.BillingRecord, folder string, opts billstore.SaveOptions) (billstore.SaveResult, error)
}

type Konnector struct {
	session ameli.SessionOptions
	saver   Saver
	time    chrono.API
	tel     telemetry.API
}

func NewKonnector(session ameli.SessionOptions, saver Saver, time chrono.API, tel telemetry.API) Konnector {
	assert.NotNil(time)
	assert.NotNil(tel)

	return Konnector{
		session: session,
		saver:   saver,
		time:    time,
		tel:     tel,
	}
}

// Run logs into the portal and returns the billing records of the
// reimbursements of the last months. Every request is made one after the
// other through a single session and the first failure aborts the run.
func (k Konnector) Run(ctx context.Context, fields Fields) ([]bills.BillingRecord, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	if fields.Login == "" || fields.Password == "" {
		return nil, libtelemetry.Fail(span, fmt.Errorf("%w: login and password are required", ErrMissingField), "invalid fields")
	}

	session, err := ameli.NewSession(k.session, k.tel)
	if err != nil {
		return nil, libtelemetry.Fail(span, err, "create session")
	}

	landing, err := k.authenticate(ctx, session, fields)
	if err != nil {
		// rejected credentials and pending terms are outcomes for the user,
		// the session already reported them
		if !errors.Is(err, ameli.ErrLoginFailed) && !errors.Is(err, ameli.ErrUserActionNeeded) {
			k.tel.ReportBroken(report_konnector_run, err)
		}
		return nil, libtelemetry.Fail(span, err, "authenticate")
	}

	summaries, err := k.list(ctx, session, landing)
	if err != nil {
		k.tel.ReportBroken(report_konnector_run, err)
		return nil, libtelemetry.Fail(span, err, "list reimbursements")
	}
	span.SetAttributes(attribute.Int("reimbursements", len(summaries)))

	details, err := k.details(ctx, session, summaries)
	if err != nil {
		k.tel.ReportBroken(report_konnector_run, err)
		return nil, libtelemetry.Fail(span, err, "fetch details")
	}

	records := bills.Assemble(details)
	span.SetAttributes(attribute.Int("records", len(records)))
	k.tel.ReportCount("konnector.records", int64(len(records)))
	return records, nil
}

func (k Konnector) authenticate(ctx context.Context, session *ameli.Session, fields Fields) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "authenticate")
	defer span.End()

	doc, err := session.Authenticate(ctx, ameli.Credentials{
		Login:    fields.Login,
		Password: fields.Password,
	})
	if err != nil {
		return nil, libtelemetry.Fail(span, err, "login")
	}
	return doc, nil
}

func (k Konnector) list(ctx context.Context, session *ameli.Session, landing *goquery.Document) ([]ameli.ReimbursementSummary, error) {
	ctx, span := tracer.Start(ctx, "list")
	defer span.End()

	doc, err := session.FetchList(ctx, landing)
	if err != nil {
		return nil, libtelemetry.Fail(span, err, "fetch list")
	}
	summaries, err := ameli.ParseList(doc, session.Portal())
	if err != nil {
		return nil, libtelemetry.Fail(span, err, "parse list")
	}
	return summaries, nil
}

func (k Konnector) details(ctx context.Context, session *ameli.Session, summaries []ameli.ReimbursementSummary) ([]ameli.ReimbursementDetail, error) {
	ctx, span := tracer.Start(ctx, "details")
	defer span.End()

	details, err := session.FetchDetails(ctx, summaries)
	if err != nil {
		return nil, libtelemetry.Fail(span, err, "fetch details")
	}
	return details, nil
}

// FetchAndSave runs the retrieval then hands the records to the saver. The
// save must complete within [SaveTimeout] of the start of the run, the
// retrieval itself is not bounded.
func (k Konnector) FetchAndSave(ctx context.Context, fields Fields) ([]bills.BillingRecord, billstore.SaveResult, error) {
	assert.NotNil(k.saver)

	ctx, span := tracer.Start(ctx, "FetchAndSave")
	defer span.End()

	deadline := k.time.Now().Add(SaveTimeout)

	if fields.FolderPath == "" {
		return nil, billstore.SaveResult{}, libtelemetry.Fail(span, fmt.Errorf("%w: a folder path is required", ErrMissingField), "invalid fields")
	}

	records, err := k.Run(ctx, fields)
	if err != nil {
		return nil, billstore.SaveResult{}, err
	}

	res, err := k.saver.Save(ctx, records, fields.FolderPath, billstore.SaveOptions{
		Deadline:    deadline,
		Identifiers: fields.identifiers(),
		DateDelta:   DateDelta,
		AmountDelta: AmountDelta,
	})
	if err != nil {
		k.tel.ReportBroken(report_konnector_save, err)
		return nil, billstore.SaveResult{}, libtelemetry.Fail(span, err, "save")
	}
	span.SetAttributes(
		attribute.Int("inserted", res.Inserted),
		attribute.Int("skipped", res.Skipped),
	)
	return records, res, nil
}
