package bills

import (
	"testing"
	"time"

	"ameli-konnector/internal/ameli"
	"ameli-konnector/lib/calendar"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2023, time.January, d, 0, 0, 0, 0, calendar.French.Location)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func TestAssemble(t *testing.T) {
	detail := ameli.ReimbursementDetail{
		ReimbursementSummary: ameli.ReimbursementSummary{
			Date:              day(20),
			LineId:            "00",
			IsThirdPartyPayer: true,
		},
		DocumentLink: "/PortailAS/PDFServletReleveMensuel.dopdf?idDecompte=42",
		Beneficiaries: []ameli.Beneficiary{
			{
				Name: "MARIE DUPONT",
				Lines: []ameli.HealthCareLine{
					{Label: "Consultation", Date: day(12), AmountBilled: amount("25"), ReimbursementBase: amount("25"), Rate: "70%", AmountPaid: amount("16.5")},
					{Label: "Pharmacie", Date: day(13), AmountBilled: amount("12.4"), ReimbursementBase: amount("12.4"), Rate: "65%", AmountPaid: amount("8.06")},
				},
			},
		},
		Participation: &ameli.ParticipationLine{
			Label:      "Participation forfaitaire",
			Date:       day(12),
			AmountPaid: amount("-2"),
		},
	}

	records := Assemble([]ameli.ReimbursementDetail{detail})
	require.Len(t, records, 3)

	fileURL := "https://assure.ameli.fr/PortailAS/PDFServletReleveMensuel.dopdf?idDecompte=42"
	expected := []BillingRecord{
		{
			Type: "health", Subtype: "Consultation", Beneficiary: "MARIE DUPONT", IsThirdPartyPayer: true,
			Date: day(20), OriginalDate: day(12), Vendor: "Ameli",
			Amount: amount("16.5"), OriginalAmount: ptr(amount("25")),
			FileURL: fileURL, Filename: "20230120_ameli.pdf",
		},
		{
			Type: "health", Subtype: "Pharmacie", Beneficiary: "MARIE DUPONT", IsThirdPartyPayer: true,
			Date: day(20), OriginalDate: day(13), Vendor: "Ameli",
			Amount: amount("8.06"), OriginalAmount: ptr(amount("12.4")),
			FileURL: fileURL, Filename: "20230120_ameli.pdf",
		},
		{
			Type: "health", Subtype: "Participation forfaitaire", IsThirdPartyPayer: true,
			Date: day(20), OriginalDate: day(12), Vendor: "Ameli",
			Amount:  amount("-2"),
			FileURL: fileURL, Filename: "20230120_ameli.pdf",
		},
	}
	if diff := cmp.Diff(expected, records); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}

	for _, r := range records {
		require.True(t, r.IsThirdPartyPayer)
		require.Equal(t, records[0].Date, r.Date)
		require.Equal(t, records[0].FileURL, r.FileURL)
		require.Equal(t, records[0].Filename, r.Filename)
	}
	require.Empty(t, records[2].Beneficiary)
	require.Nil(t, records[2].OriginalAmount)
}

func TestAssembleOrder(t *testing.T) {
	details := []ameli.ReimbursementDetail{
		{
			ReimbursementSummary: ameli.ReimbursementSummary{Date: day(20)},
			Beneficiaries: []ameli.Beneficiary{
				{Name: "LUC", Lines: []ameli.HealthCareLine{{Label: "a"}, {Label: "b"}}},
				{Name: "ANNE", Lines: []ameli.HealthCareLine{{Label: "c"}}},
			},
			Participation: &ameli.ParticipationLine{Label: "p1"},
		},
		{
			ReimbursementSummary: ameli.ReimbursementSummary{Date: day(5)},
			Participation:        &ameli.ParticipationLine{Label: "p2"},
		},
		{
			ReimbursementSummary: ameli.ReimbursementSummary{Date: day(4)},
		},
	}

	records := Assemble(details)
	subtypes := []string{}
	for _, r := range records {
		subtypes = append(subtypes, r.Subtype)
	}
	require.Equal(t, []string{"a", "b", "c", "p1", "p2"}, subtypes)
	require.Equal(t, "20230105_ameli.pdf", records[4].Filename)
}

func TestAssembleNothing(t *testing.T) {
	require.Empty(t, Assemble(nil))
}
