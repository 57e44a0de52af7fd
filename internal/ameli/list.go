package ameli

import (
	"fmt"
	"strconv"
	"strings"

	"ameli-konnector/lib/calendar"
	"ameli-konnector/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	rowIdPrefix = "lignePaiement"
	rowSelector = "[id^=" + rowIdPrefix + "]"
)

// HandlerTokens are the arguments of the inline click handler of a payment line.
type HandlerTokens struct {
	PaymentId     string
	PaymentNature string
	GroupIndex    string
	PaymentIndex  string
}

// ParseHandlerTokens splits an onclick attribute such as
// `chargerDetailPaiement('123','PAIEMENT_A_UN_TIERS','0','1');` on single
// quotes and keeps the tokens at positions 1, 3, 5 and 7.
func ParseHandlerTokens(raw string) (HandlerTokens, error) {
	tokens := strings.Split(raw, "'")
	if len(tokens) < 8 {
		return HandlerTokens{}, fmt.Errorf(
			"%w: click handler has %d tokens, expected at least 8: %q",
			ErrMarkupMismatch, len(tokens), raw,
		)
	}
	return HandlerTokens{
		PaymentId:     tokens[1],
		PaymentNature: tokens[3],
		GroupIndex:    tokens[5],
		PaymentIndex:  tokens[7],
	}, nil
}

// ParseList returns one summary per payment line, in document order.
//
// Payment lines are numbered across the whole page rather than per month, so
// a single row counter is threaded through every monthly block.
func ParseList(doc *goquery.Document, portal Portal) ([]ReimbursementSummary, error) {
	summaries := []ReimbursementSummary{}
	counter := 0

	var err error
	doc.Find(".blocParMois").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		var blockSummaries []ReimbursementSummary
		blockSummaries, counter, err = parseMonthBlock(block, counter, portal)
		if err != nil {
			return false
		}
		summaries = append(summaries, blockSummaries...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// parseMonthBlock reads the rows of a block starting at row index `counter`
// and returns the index of the first row it did not consume.
func parseMonthBlock(block *goquery.Selection, counter int, portal Portal) ([]ReimbursementSummary, int, error) {
	// the year is only given in the label of the month
	label := strings.Fields(block.Find(".rowdate .mois").First().Text())
	if len(label) < 2 {
		return nil, counter, fmt.Errorf("%w: month label %q has no year", ErrMarkupMismatch, strings.Join(label, " "))
	}
	year := label[1]

	summaries := []ReimbursementSummary{}
	for {
		row := rowByIndex(block, counter)
		if row.Length() == 0 {
			break
		}
		summary, err := parseRow(row, year, portal)
		if err != nil {
			return nil, counter, fmt.Errorf("row %d: %w", counter, err)
		}
		summaries = append(summaries, summary)
		counter++
	}

	// every payment line of the block must have been reached by the numbering
	present := block.Find(rowSelector).Not(rowSelector + " " + rowSelector).Length()
	if present != len(summaries) {
		return nil, counter, fmt.Errorf(
			"%w: block %q has %d payment lines but only %d follow the numbering from row %d",
			ErrMarkupMismatch, strings.Join(label, " "), present, len(summaries), counter-len(summaries),
		)
	}
	return summaries, counter, nil
}

// rowByIndex finds the payment line whose id is lignePaiement<index>, optionally
// followed by a non digit suffix so that line 1 never matches line 10.
func rowByIndex(block *goquery.Selection, index int) *goquery.Selection {
	prefix := rowIdPrefix + strconv.Itoa(index)
	return block.Find(fmt.Sprintf("[id^=%s]", prefix)).FilterFunction(func(_ int, s *goquery.Selection) bool {
		rest := strings.TrimPrefix(s.AttrOr("id", ""), prefix)
		return rest == "" || rest[0] < '0' || rest[0] > '9'
	}).First()
}

func parseRow(row *goquery.Selection, year string, portal Portal) (ReimbursementSummary, error) {
	day := htmlutil.TrimText(row.Find(".col-date .jour").First())
	month := htmlutil.TrimText(row.Find(".col-date .mois").First())
	date, err := calendar.ParseOrdinal(calendar.French, fmt.Sprintf("%s %s %s", day, month, year))
	if err != nil {
		return ReimbursementSummary{}, fmt.Errorf("%w: %w", ErrMarkupMismatch, err)
	}

	handler, ok := row.Attr("onclick")
	if !ok {
		return ReimbursementSummary{}, fmt.Errorf("%w: payment line has no click handler", ErrMarkupMismatch)
	}
	tokens, err := ParseHandlerTokens(handler)
	if err != nil {
		return ReimbursementSummary{}, err
	}

	return ReimbursementSummary{
		Date:   date,
		LineId: tokens.GroupIndex + tokens.PaymentIndex,
		DetailsURL: portal.DetailsURL(
			tokens.PaymentId,
			tokens.PaymentNature,
			tokens.GroupIndex,
			tokens.PaymentIndex,
		),
		IsThirdPartyPayer: tokens.PaymentNature == ThirdPartyNature,
	}, nil
}
