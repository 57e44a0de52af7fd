package ameli

import (
	"fmt"
	"time"

	"ameli-konnector/internal/components/telemetry"
	"ameli-konnector/lib/calendar"
	"ameli-konnector/lib/htmlutil"
	"ameli-konnector/lib/money"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

const (
	report_detail_parse               = "detail.parse"
	report_detail_parse_participation = "detail.parse-participation"
)

type walkState int

const (
	// awaitingBeneficiary: the next lines container belongs to the whole reimbursement.
	awaitingBeneficiary walkState = iota
	// haveBeneficiary: the next lines container belongs to detailWalk.beneficiary.
	haveBeneficiary
)

// detailWalk is folded over the containers of a detail page. A beneficiary
// name container is always followed by exactly one container of care lines,
// any other container holds the participation of the reimbursement.
type detailWalk struct {
	state       walkState
	beneficiary string
}

func (w detailWalk) step(container *goquery.Selection, detail *ReimbursementDetail, tel telemetry.API) (detailWalk, error) {
	name := container.Find("[id^=nomBeneficiaire]")
	if name.Length() > 0 {
		return detailWalk{state: haveBeneficiary, beneficiary: htmlutil.TrimText(name)}, nil
	}

	switch w.state {
	case haveBeneficiary:
		lines, err := parseHealthCares(container)
		if err != nil {
			return w, fmt.Errorf("care lines of %q: %w", w.beneficiary, err)
		}
		detail.addLines(w.beneficiary, lines)
		return detailWalk{state: awaitingBeneficiary}, nil
	default:
		err := parseParticipation(container, detail, tel)
		if err != nil {
			return w, fmt.Errorf("participation: %w", err)
		}
		return w, nil
	}
}

// ParseDetail reconstructs the beneficiaries, care lines and participation of
// the detail page of a reimbursement.
func ParseDetail(doc *goquery.Document, summary ReimbursementSummary, tel telemetry.API) (ReimbursementDetail, error) {
	detail := ReimbursementDetail{
		ReimbursementSummary: summary,
		DocumentLink:         doc.Find(".entete [id^=liendowndecompte]").AttrOr("href", ""),
	}
	if detail.DocumentLink == "" {
		tel.ReportWarning(report_detail_parse, "no statement link", summary.LineId)
	}

	walk := detailWalk{state: awaitingBeneficiary}
	var err error
	doc.Find(".container:not(.entete)").EachWithBreak(func(_ int, container *goquery.Selection) bool {
		walk, err = walk.step(container, &detail, tel)
		return err == nil
	})
	if err != nil {
		return ReimbursementDetail{}, err
	}
	if walk.state == haveBeneficiary {
		tel.ReportWarning(report_detail_parse, "beneficiary without care lines", walk.beneficiary)
	}

	return detail, nil
}

func isHeaderRow(row *goquery.Selection) bool {
	return row.Find("th").Length() > 0
}

func parseAmountCell(row *goquery.Selection, selector string) (decimal.Decimal, error) {
	text := htmlutil.TrimText(row.Find(selector).First())
	amount, err := money.ParseAmount(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrMarkupMismatch, selector, err)
	}
	return amount, nil
}

func parseDateCell(text, selector string) (time.Time, error) {
	date, err := calendar.ParseDayMonthYear(calendar.French, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", ErrMarkupMismatch, selector, err)
	}
	return date, nil
}

func parseHealthCares(container *goquery.Selection) ([]HealthCareLine, error) {
	lines := []HealthCareLine{}

	var err error
	container.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if isHeaderRow(row) {
			return true
		}
		var line HealthCareLine
		line, err = parseHealthCare(row)
		if err != nil {
			return false
		}
		lines = append(lines, line)
		return true
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func parseHealthCare(row *goquery.Selection) (HealthCareLine, error) {
	// the nature cell holds the label of the act, a <br> then the date
	date, err := parseDateCell(htmlutil.LastSegment(row.Find("[id^=Nature]").First()), "[id^=Nature]")
	if err != nil {
		return HealthCareLine{}, err
	}
	billed, err := parseAmountCell(row, "[id^=montantPaye]")
	if err != nil {
		return HealthCareLine{}, err
	}
	base, err := parseAmountCell(row, "[id^=baseRemboursement]")
	if err != nil {
		return HealthCareLine{}, err
	}
	paid, err := parseAmountCell(row, "[id^=montantVerse]")
	if err != nil {
		return HealthCareLine{}, err
	}

	return HealthCareLine{
		Label:             htmlutil.TrimText(row.Find(".naturePrestation").First()),
		Date:              date,
		AmountBilled:      billed,
		ReimbursementBase: base,
		Rate:              htmlutil.TrimText(row.Find("[id^=taux]").First()),
		AmountPaid:        paid,
	}, nil
}

func parseParticipation(container *goquery.Selection, detail *ReimbursementDetail, tel telemetry.API) error {
	var err error
	container.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if isHeaderRow(row) {
			return true
		}

		var date time.Time
		date, err = parseDateCell(htmlutil.TrimText(row.Find("[id^=dateActePFF]").First()), "[id^=dateActePFF]")
		if err != nil {
			return false
		}
		var paid decimal.Decimal
		paid, err = parseAmountCell(row, "[id^=montantVerse]")
		if err != nil {
			return false
		}

		// a reimbursement is only expected to carry one participation, keep
		// the last one seen
		if detail.Participation != nil {
			tel.ReportWarning(
				report_detail_parse_participation,
				"participation already set, overwriting",
				detail.LineId,
			)
		}
		detail.Participation = &ParticipationLine{
			Label:      htmlutil.TrimText(row.Find("[id^=naturePFF]").First()),
			Date:       date,
			AmountPaid: paid,
		}
		return true
	})
	return err
}
