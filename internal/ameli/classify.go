package ameli

import (
	"fmt"
	"strings"

	"ameli-konnector/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	termsOfUsePage = "as_conditions_generales_page"
	logoutTitle    = "Déconnexion du compte ameli"
)

// ClassifyLogin inspects the page returned by the login form. The checks run
// in order and the first one that matches wins:
//  1. a non empty error region means the credentials were rejected
//  2. a refresh to the general terms of use page needs the user to accept them
//  3. anything but exactly one logout link is an unexpected page
//
// The terms of use page has no logout link either, so 2 must come before 3.
func ClassifyLogin(doc *goquery.Document) error {
	errorRegion := doc.Find("#r_errors")
	if errorRegion.Length() > 0 {
		if detail := htmlutil.CleanText(errorRegion); detail != "" {
			return fmt.Errorf("%w: %s", ErrLoginFailed, detail)
		}
	}

	refresh := doc.Find("meta[http-equiv=refresh]")
	if refresh.Length() > 0 {
		content := refresh.First().AttrOr("content", "")
		if strings.Contains(content, termsOfUsePage) {
			return fmt.Errorf("%w: general terms of use must be accepted on the portal", ErrUserActionNeeded)
		}
	}

	logoutLinks := doc.Find(fmt.Sprintf(`[title="%s"]`, logoutTitle)).Length()
	if logoutLinks != 1 {
		return fmt.Errorf("%w: expected 1 logout link, found %d", ErrLoginFailed, logoutLinks)
	}

	return nil
}
