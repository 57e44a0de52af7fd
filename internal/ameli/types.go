package ameli

import (
	"time"

	"github.com/shopspring/decimal"
)

// ThirdPartyNature is the payment nature of reimbursements paid straight to
// the care provider instead of the insured.
const ThirdPartyNature = "PAIEMENT_A_UN_TIERS"

// MonthsBack is how far the payment list reaches, the portal serves nothing older.
const MonthsBack = 6

type Credentials struct {
	Login    string
	Password string
}

// ReimbursementSummary is one line of the payment list.
type ReimbursementSummary struct {
	Date time.Time
	// LineId is the group index followed by the payment index. It is unique
	// within a run only.
	LineId            string
	DetailsURL        string
	IsThirdPartyPayer bool
}

type HealthCareLine struct {
	Label             string
	Date              time.Time
	AmountBilled      decimal.Decimal
	ReimbursementBase decimal.Decimal
	Rate              string
	AmountPaid        decimal.Decimal
}

// ParticipationLine is a flat contribution that belongs to the whole
// reimbursement rather than to a beneficiary.
type ParticipationLine struct {
	Label      string
	Date       time.Time
	AmountPaid decimal.Decimal
}

type Beneficiary struct {
	Name  string
	Lines []HealthCareLine
}

type ReimbursementDetail struct {
	ReimbursementSummary

	DocumentLink string
	// Beneficiaries are kept in the order they first appear on the page.
	Beneficiaries []Beneficiary
	Participation *ParticipationLine
}

func (d *ReimbursementDetail) addLines(name string, lines []HealthCareLine) {
	for i := range d.Beneficiaries {
		if d.Beneficiaries[i].Name == name {
			d.Beneficiaries[i].Lines = append(d.Beneficiaries[i].Lines, lines...)
			return
		}
	}
	d.Beneficiaries = append(d.Beneficiaries, Beneficiary{Name: name, Lines: lines})
}
