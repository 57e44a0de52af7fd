package fakeportal

import (
	"fmt"
	"html"
	"strings"
)

// Payment is one line of the payment list.
type Payment struct {
	Id     string
	Nature string
	Group  string
	Index  string
	// Day and Month are printed as is, ex. "3" and "janvier".
	Day   string
	Month string
	// Detail is served for the detail page of the payment.
	Detail Detail
}

// Month is a monthly block of the payment list, Label is ex. "Janvier 2023".
type Month struct {
	Label    string
	Payments []Payment
}

type CareLine struct {
	Label  string
	Date   string
	Billed string
	Base   string
	Rate   string
	Paid   string
}

type Participation struct {
	Label string
	Date  string
	Paid  string
}

// Container is rendered as a beneficiary name container when Beneficiary is
// set, as a care lines table when Lines is set, and as a participation table
// otherwise.
type Container struct {
	Beneficiary    string
	Lines          []CareLine
	Participations []Participation
}

type Detail struct {
	Link       string
	Containers []Container
}

func page(body string) string {
	return "<!DOCTYPE html><html><head><meta charset=\"utf-8\"></head><body>" + body + "</body></html>"
}

func esc(s string) string {
	return html.EscapeString(s)
}

// RenderList renders the payment list, line ids are numbered across the whole
// page like the portal does.
func RenderList(months []Month) string {
	var out strings.Builder
	row := 0
	for _, month := range months {
		out.WriteString(`<div class="blocParMois">`)
		fmt.Fprintf(&out, `<div class="rowdate"><span class="mois">%s</span></div>`, esc(month.Label))
		for _, p := range month.Payments {
			fmt.Fprintf(
				&out,
				`<div id="lignePaiement%d" class="lignePaiement" onclick="%s">`+
					`<div class="col-date"><span class="jour">%s</span><span class="mois">%s</span></div>`+
					`<div class="col-libelle">Remboursement</div>`+
					`</div>`,
				row,
				esc(Handler(p.Id, p.Nature, p.Group, p.Index)),
				esc(p.Day),
				esc(p.Month),
			)
			row++
		}
		out.WriteString(`</div>`)
	}
	return page(out.String())
}

// Handler renders the inline click handler of a payment line.
func Handler(id, nature, group, index string) string {
	return fmt.Sprintf("chargerDetailPaiement('%s','%s','%s','%s'); return false;", id, nature, group, index)
}

func RenderDetail(detail Detail) string {
	var out strings.Builder
	fmt.Fprintf(
		&out,
		`<div class="container entete"><h2>Détail du paiement</h2><a id="liendowndecompte0" href="%s">Télécharger le décompte</a></div>`,
		esc(detail.Link),
	)

	for i, c := range detail.Containers {
		out.WriteString(`<div class="container">`)
		switch {
		case c.Beneficiary != "":
			fmt.Fprintf(&out, `<h3 id="nomBeneficiaire%d"> %s </h3>`, i, esc(c.Beneficiary))
		case len(c.Lines) > 0:
			out.WriteString(`<table><tr><th>Nature</th><th>Montant payé</th><th>Base</th><th>Taux</th><th>Montant versé</th></tr>`)
			for j, l := range c.Lines {
				fmt.Fprintf(
					&out,
					`<tr><td id="Nature%[1]d_%[2]d"><span class="naturePrestation">%[3]s</span><br>%[4]s</td>`+
						`<td id="montantPaye%[1]d_%[2]d">%[5]s</td>`+
						`<td id="baseRemboursement%[1]d_%[2]d">%[6]s</td>`+
						`<td id="taux%[1]d_%[2]d">%[7]s</td>`+
						`<td id="montantVerse%[1]d_%[2]d">%[8]s</td></tr>`,
					i, j, esc(l.Label), esc(l.Date), esc(l.Billed), esc(l.Base), esc(l.Rate), esc(l.Paid),
				)
			}
			out.WriteString(`</table>`)
		default:
			out.WriteString(`<table><tr><th>Date</th><th>Nature</th><th>Montant</th></tr>`)
			for j, p := range c.Participations {
				fmt.Fprintf(
					&out,
					`<tr><td id="dateActePFF%[1]d_%[2]d">%[3]s</td>`+
						`<td id="naturePFF%[1]d_%[2]d">%[4]s</td>`+
						`<td id="montantVersePFF%[1]d_%[2]d">%[5]s</td></tr>`,
					i, j, esc(p.Date), esc(p.Label), esc(p.Paid),
				)
			}
			out.WriteString(`</table>`)
		}
		out.WriteString(`</div>`)
	}
	return page(out.String())
}

func RenderLoginPage() string {
	return page(`<form method="post"><input name="connexioncompte_2numSecuriteSociale"><input type="password" name="connexioncompte_2codeConfidentiel"><input type="submit" name="submit" value="Valider"></form>`)
}

func RenderLoginError(message string) string {
	return page(fmt.Sprintf(`<div id="r_errors"><p>%s</p></div>`, esc(message)))
}

func RenderTermsRedirect() string {
	return `<html><head><meta http-equiv="refresh" content="0;URL=/PortailAS/appmanager/PortailAS/assure?_nfpb=true&amp;_pageLabel=as_conditions_generales_page"></head><body></body></html>`
}

func RenderHome() string {
	return page(`<header><a href="/logout" title="Déconnexion du compte ameli">Se déconnecter</a></header><main>Bienvenue</main>`)
}

// RenderLanding renders the reimbursement page and its search form, endDate
// is printed as DD/MM/YYYY.
func RenderLanding(endDate string) string {
	return page(fmt.Sprintf(
		`<a href="/logout" title="Déconnexion du compte ameli">Se déconnecter</a><form id="paiements_1"><input type="text" id="paiements_1dateDebut" value=""><input type="text" id="paiements_1dateFin" value="%s"></form>`,
		esc(endDate),
	))
}
