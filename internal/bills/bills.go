package bills

import (
	"time"

	"ameli-konnector/internal/ameli"

	"github.com/shopspring/decimal"
)

const (
	Type   = "health"
	Vendor = "Ameli"
)

// BillingRecord is the unit handed to storage, one per care line and one per
// participation.
type BillingRecord struct {
	Type    string
	Subtype string
	// Beneficiary is empty for participation records.
	Beneficiary       string
	IsThirdPartyPayer bool
	// Date is the date of the reimbursement, OriginalDate the date of the care.
	Date           time.Time
	OriginalDate   time.Time
	Vendor         string
	Amount         decimal.Decimal
	OriginalAmount *decimal.Decimal
	FileURL        string
	Filename       string
}

// Filename is the name the statement of a reimbursement is saved under.
func Filename(date time.Time) string {
	return date.Format("20060102") + "_ameli.pdf"
}

// Assemble flattens reimbursements into billing records. For each detail, the
// care lines of every beneficiary come first, in page order, then the
// participation if there is one.
func Assemble(details []ameli.ReimbursementDetail) []BillingRecord {
	records := []BillingRecord{}
	for _, detail := range details {
		fileURL := ameli.FileURL(detail.DocumentLink)
		filename := Filename(detail.Date)

		for _, beneficiary := range detail.Beneficiaries {
			for _, line := range beneficiary.Lines {
				originalAmount := line.AmountBilled
				records = append(records, BillingRecord{
					Type:              Type,
					Subtype:           line.Label,
					Beneficiary:       beneficiary.Name,
					IsThirdPartyPayer: detail.IsThirdPartyPayer,
					Date:              detail.Date,
					OriginalDate:      line.Date,
					Vendor:            Vendor,
					Amount:            line.AmountPaid,
					OriginalAmount:    &originalAmount,
					FileURL:           fileURL,
					Filename:          filename,
				})
			}
		}

		if detail.Participation != nil {
			records = append(records, BillingRecord{
				Type:              Type,
				Subtype:           detail.Participation.Label,
				IsThirdPartyPayer: detail.IsThirdPartyPayer,
				Date:              detail.Date,
				OriginalDate:      detail.Participation.Date,
				Vendor:            Vendor,
				Amount:            detail.Participation.AmountPaid,
				FileURL:           fileURL,
				Filename:          filename,
			})
		}
	}
	return records
}
