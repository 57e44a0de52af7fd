package ameli

import (
	"strings"
	"testing"

	"ameli-konnector/internal/ameli/fakeportal"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func mustParse(t testing.TB, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

const logoutLink = `<a href="/logout" title="Déconnexion du compte ameli">Se déconnecter</a>`
const termsRefresh = `<meta http-equiv="refresh" content="0;URL=/PortailAS/appmanager/PortailAS/assure?_pageLabel=as_conditions_generales_page">`

func TestClassifyLogin(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected error
	}{
		{
			name:     "error region",
			body:     fakeportal.RenderLoginError("Identifiants incorrects"),
			expected: ErrLoginFailed,
		},
		{
			name: "error region wins over everything else",
			body: `<html><head>` + termsRefresh + `</head><body>` +
				`<div id="r_errors">Compte bloqué</div>` + logoutLink + `</body></html>`,
			expected: ErrLoginFailed,
		},
		{
			name:     "terms of use redirect",
			body:     fakeportal.RenderTermsRedirect(),
			expected: ErrUserActionNeeded,
		},
		{
			name:     "terms of use redirect with an empty error region",
			body:     `<html><head>` + termsRefresh + `</head><body><div id="r_errors">  </div></body></html>`,
			expected: ErrUserActionNeeded,
		},
		{
			name:     "unrelated refresh and no logout link",
			body:     `<html><head><meta http-equiv="refresh" content="0;URL=/maintenance"></head><body></body></html>`,
			expected: ErrLoginFailed,
		},
		{
			name:     "no logout link",
			body:     `<html><body><p>Bienvenue</p></body></html>`,
			expected: ErrLoginFailed,
		},
		{
			name:     "two logout links",
			body:     `<html><body>` + logoutLink + logoutLink + `</body></html>`,
			expected: ErrLoginFailed,
		},
		{
			name:     "exactly one logout link",
			body:     fakeportal.RenderHome(),
			expected: nil,
		},
		{
			name:     "empty error region and one logout link",
			body:     `<html><body><div id="r_errors"></div>` + logoutLink + `</body></html>`,
			expected: nil,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			err := ClassifyLogin(mustParse(t, test.body))
			if test.expected == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, test.expected)
		})
	}
}

func TestClassifyLoginCarriesErrorText(t *testing.T) {
	err := ClassifyLogin(mustParse(t, fakeportal.RenderLoginError("Le code personnel est incorrect.")))
	require.ErrorIs(t, err, ErrLoginFailed)
	require.NotErrorIs(t, err, ErrUserActionNeeded)
	require.Contains(t, err.Error(), "Le code personnel est incorrect.")
}
