package konnector

import (
	"context"
	"errors"
	"testing"
	"time"

	"ameli-konnector/internal/ameli"
	"ameli-konnector/internal/ameli/fakeportal"
	"ameli-konnector/internal/bills"
	"ameli-konnector/internal/billstore"
	"ameli-konnector/internal/components/chrono"
	"ameli-konnector/internal/components/telemetry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testLogin    = "1840275123456"
	testPassword = "12345678"
)

var now = time.Date(2023, time.July, 14, 9, 0, 0, 0, chrono.Paris())

func oneReimbursement() []fakeportal.Month {
	return []fakeportal.Month{
		{
			Label: "Janvier 2023",
			Payments: []fakeportal.Payment{
				{
					Id: "4242", Nature: ameli.ThirdPartyNature, Group: "0", Index: "0", Day: "20", Month: "janvier",
					Detail: fakeportal.Detail{
						Link: "/PortailAS/PDFServletReleveMensuel.dopdf?idDecompte=4242",
						Containers: []fakeportal.Container{
							{Beneficiary: "MARIE DUPONT"},
							{Lines: []fakeportal.CareLine{
								{Label: "Consultation", Date: "12/01/2023", Billed: "25,00 €", Base: "25,00 €", Rate: "70%", Paid: "16,50 €"},
								{Label: "Pharmacie", Date: "13/01/2023", Billed: "12,40 €", Base: "12,40 €", Rate: "65%", Paid: "8,06 €"},
							}},
							{Participations: []fakeportal.Participation{
								{Label: "Participation forfaitaire", Date: "12/01/2023", Paid: "-2,00 €"},
							}},
						},
					},
				},
			},
		},
	}
}

type fakeSaver struct {
	calls   int
	records []bills.BillingRecord
	folder  string
	opts    billstore.SaveOptions
	err     error
}

func (f *fakeSaver) Save(ctx context.Context, records []bills.BillingRecord, folder string, opts billstore.SaveOptions) (billstore.SaveResult, error) {
	f.calls++
	f.records = records
	f.folder = folder
	f.opts = opts
	if f.err != nil {
		return billstore.SaveResult{}, f.err
	}
	return billstore.SaveResult{Inserted: len(records)}, nil
}

func newTestKonnector(srv *fakeportal.Server, saver Saver) (Konnector, *telemetry.RecordingAPI) {
	tel := telemetry.NewRecordingAPI()
	return NewKonnector(ameli.SessionOptions{
		Portal:                  ameli.Portal{Origin: srv.URL},
		RequestsPerSecond:       1000,
		DisableCloudflareBypass: true,
	}, saver, chrono.FixedImpl{At: now}, tel), tel
}

func TestRun(t *testing.T) {
	srv := fakeportal.New(fakeportal.Account{Login: testLogin, Password: testPassword}, "14/07/2023", oneReimbursement())
	defer srv.Close()
	k, _ := newTestKonnector(srv, nil)

	records, err := k.Run(context.Background(), Fields{Login: testLogin, Password: testPassword})
	require.NoError(t, err)
	require.Len(t, records, 3)

	issued := time.Date(2023, time.January, 20, 0, 0, 0, 0, chrono.Paris())
	for i, record := range records {
		require.True(t, record.Date.Equal(issued), "record %d issued %s", i, record.Date)
		require.True(t, record.IsThirdPartyPayer)
		require.Equal(t, "https://assure.ameli.fr/PortailAS/PDFServletReleveMensuel.dopdf?idDecompte=4242", record.FileURL)
		require.Equal(t, "20230120_ameli.pdf", record.Filename)
		require.Equal(t, bills.Vendor, record.Vendor)
		require.Equal(t, bills.Type, record.Type)
	}
	for _, record := range records[:2] {
		require.Equal(t, "MARIE DUPONT", record.Beneficiary)
		require.NotNil(t, record.OriginalAmount)
	}
	require.Equal(t, "Consultation", records[0].Subtype)
	require.True(t, records[0].Amount.Equal(decimal.RequireFromString("16.5")))
	require.Equal(t, "Pharmacie", records[1].Subtype)

	participation := records[2]
	require.Equal(t, "Participation forfaitaire", participation.Subtype)
	require.Empty(t, participation.Beneficiary)
	require.Nil(t, participation.OriginalAmount)
	require.True(t, participation.Amount.Equal(decimal.RequireFromString("-2")))

	require.Equal(t, 1, srv.MaxInFlight())
}

func TestRunFailures(t *testing.T) {
	testCases := []struct {
		name     string
		account  fakeportal.Account
		endDate  string
		fields   Fields
		expected error
		broken   bool
	}{
		{
			name:     "missing password",
			account:  fakeportal.Account{Login: testLogin, Password: testPassword},
			endDate:  "14/07/2023",
			fields:   Fields{Login: testLogin},
			expected: ErrMissingField,
		},
		{
			name:     "login rejected",
			account:  fakeportal.Account{Login: testLogin, Password: testPassword},
			endDate:  "14/07/2023",
			fields:   Fields{Login: testLogin, Password: "nope"},
			expected: ameli.ErrLoginFailed,
		},
		{
			name:     "terms of use",
			account:  fakeportal.Account{Login: testLogin, Password: testPassword, TermsPending: true},
			endDate:  "14/07/2023",
			fields:   Fields{Login: testLogin, Password: testPassword},
			expected: ameli.ErrUserActionNeeded,
		},
		{
			name:     "landing page changed",
			account:  fakeportal.Account{Login: testLogin, Password: testPassword},
			endDate:  "",
			fields:   Fields{Login: testLogin, Password: testPassword},
			expected: ameli.ErrMarkupMismatch,
			broken:   true,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			srv := fakeportal.New(test.account, test.endDate, oneReimbursement())
			defer srv.Close()
			saver := &fakeSaver{}
			k, tel := newTestKonnector(srv, saver)

			test.fields.FolderPath = "/Ameli"
			_, _, err := k.FetchAndSave(context.Background(), test.fields)
			require.ErrorIs(t, err, test.expected)
			// nothing is saved once a stage failed
			require.Equal(t, 0, saver.calls)

			if test.broken {
				require.Len(t, tel.Reports("broken", report_konnector_run), 1)
			} else {
				require.Empty(t, tel.Reports("broken", ""))
			}
		})
	}
}

func TestFetchAndSaveOptions(t *testing.T) {
	srv := fakeportal.New(fakeportal.Account{Login: testLogin, Password: testPassword}, "14/07/2023", oneReimbursement())
	defer srv.Close()

	testCases := []struct {
		bankIdentifier string
		identifiers    string
	}{
		{bankIdentifier: "", identifiers: "C.P.A.M."},
		{bankIdentifier: "CPAM PARIS", identifiers: "CPAM PARIS"},
	}
	for _, test := range testCases {
		saver := &fakeSaver{}
		k, _ := newTestKonnector(srv, saver)

		records, res, err := k.FetchAndSave(context.Background(), Fields{
			Login:          testLogin,
			Password:       testPassword,
			BankIdentifier: test.bankIdentifier,
			FolderPath:     "/Administratif/Ameli",
		})
		require.NoError(t, err)
		require.Len(t, records, 3)
		require.Equal(t, 3, res.Inserted)

		require.Equal(t, 1, saver.calls)
		require.Equal(t, records, saver.records)
		require.Equal(t, "/Administratif/Ameli", saver.folder)
		require.Equal(t, test.identifiers, saver.opts.Identifiers)
		require.Equal(t, 10, saver.opts.DateDelta)
		require.True(t, saver.opts.AmountDelta.Equal(decimal.RequireFromString("0.1")))
		require.True(t, saver.opts.Deadline.Equal(now.Add(60*time.Second)))
	}
}

func TestFetchAndSaveFailure(t *testing.T) {
	srv := fakeportal.New(fakeportal.Account{Login: testLogin, Password: testPassword}, "14/07/2023", oneReimbursement())
	defer srv.Close()

	saver := &fakeSaver{err: billstore.ErrDeadlineExceeded}
	k, tel := newTestKonnector(srv, saver)

	_, _, err := k.FetchAndSave(context.Background(), Fields{Login: testLogin, Password: testPassword, FolderPath: "/Ameli"})
	require.True(t, errors.Is(err, billstore.ErrDeadlineExceeded))
	require.Len(t, tel.Reports("broken", report_konnector_save), 1)

	_, _, err = k.FetchAndSave(context.Background(), Fields{Login: testLogin, Password: testPassword})
	require.ErrorIs(t, err, ErrMissingField)
}

func TestFetchAndSaveTwice(t *testing.T) {
	srv := fakeportal.New(fakeportal.Account{Login: testLogin, Password: testPassword}, "14/07/2023", oneReimbursement())
	defer srv.Close()

	db, err := billstore.OpenDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	// the run and the store share a clock that is far behind the wall clock
	clock := chrono.FixedImpl{At: now}
	store := billstore.NewStore(db, clock, telemetry.NewRecordingAPI())
	tel := telemetry.NewRecordingAPI()
	k := NewKonnector(ameli.SessionOptions{
		Portal:                  ameli.Portal{Origin: srv.URL},
		RequestsPerSecond:       1000,
		DisableCloudflareBypass: true,
	}, store, clock, tel)

	fields := Fields{Login: testLogin, Password: testPassword, FolderPath: "/Ameli"}
	_, res, err := k.FetchAndSave(context.Background(), fields)
	require.NoError(t, err)
	require.Equal(t, billstore.SaveResult{Inserted: 3}, res)

	_, res, err = k.FetchAndSave(context.Background(), fields)
	require.NoError(t, err)
	require.Equal(t, billstore.SaveResult{Skipped: 3}, res)

	saved, err := store.List(context.Background(), "/Ameli")
	require.NoError(t, err)
	require.Len(t, saved, 3)
}
