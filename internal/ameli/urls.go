package ameli

import (
	"net/url"
	"strings"
	"time"
)

// DefaultOrigin is the origin of the ameli portal, downloadable statements
// are always resolved against it.
const DefaultOrigin = "https://assure.ameli.fr"

const (
	loginPath        = "/PortailAS/appmanager/PortailAS/assure"
	paymentsPath     = "/PortailAS/paiements.do"
	portalDateFormat = "02/01/2006"
)

// Portal builds every url the connector requests. It does no I/O.
type Portal struct {
	Origin string
}

var DefaultPortal = Portal{Origin: DefaultOrigin}

func (p Portal) build(path string, query url.Values) string {
	u := url.URL{Path: path, RawQuery: query.Encode()}
	return strings.TrimSuffix(p.Origin, "/") + u.String()
}

func (p Portal) LoginURL() string {
	return p.build(loginPath, url.Values{
		"_somtc": {"true"},
	})
}

func (p Portal) SubmitURL() string {
	return p.build(loginPath, url.Values{
		"_nfpb":                            {"true"},
		"_windowLabel":                     {"connexioncompte_2"},
		"connexioncompte_2_actionOverride": {"/portlets/connexioncompte/validationconnexioncompte"},
		"_pageLabel":                       {"as_login_page"},
	})
}

func (p Portal) ReimbursementURL() string {
	return p.build(loginPath, url.Values{
		"_nfpb":      {"true"},
		"_pageLabel": {"as_paiements_page"},
	})
}

// BillListURL lists the payments between endDate minus monthsBack months and endDate.
func (p Portal) BillListURL(endDate time.Time, monthsBack int) string {
	startDate := subtractMonths(endDate, monthsBack)
	return p.build(paymentsPath, url.Values{
		"actionEvt":       {"afficherPaiementsComplementaires"},
		"DateDebut":       {startDate.Format(portalDateFormat)},
		"DateFin":         {endDate.Format(portalDateFormat)},
		"Beneficiaire":    {"tout_selectionner"},
		"afficherReleves": {"false"},
		"afficherIJ":      {"false"},
		"afficherInva":    {"false"},
		"afficherRentes":  {"false"},
		"afficherRS":      {"false"},
		"indexPaiement":   {""},
		"idNotif":         {""},
	})
}

func (p Portal) DetailsURL(paymentId, paymentNature, groupIndex, paymentIndex string) string {
	return p.build(paymentsPath, url.Values{
		"actionEvt":      {"chargerDetailPaiements"},
		"idPaiement":     {paymentId},
		"naturePaiement": {paymentNature},
		"indexGroupe":    {groupIndex},
		"indexPaiement":  {paymentIndex},
	})
}

// FileURL resolves a statement link found on a detail page.
func FileURL(link string) string {
	return DefaultOrigin + link
}

// subtractMonths clamps to the last day of the target month, so the 31st of
// August minus 6 months is the 28th (or 29th) of February.
func subtractMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month-time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
