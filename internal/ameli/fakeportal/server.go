// Package fakeportal serves a minimal imitation of the ameli portal for tests.
package fakeportal

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
)

const (
	cookieName   = "JSESSIONID"
	cookieValue  = "fake-session"
	loginPath    = "/PortailAS/appmanager/PortailAS/assure"
	paymentsPath = "/PortailAS/paiements.do"
)

type Account struct {
	Login    string
	Password string
	// TermsPending makes a successful login redirect to the terms of use page.
	TermsPending bool
}

// Server is an httptest server imitating the portal for one account.
type Server struct {
	*httptest.Server

	Account Account
	// EndDate is the value of the end date field of the landing page.
	EndDate string
	Months  []Month

	mutex       sync.Mutex
	requests    []*http.Request
	forms       []map[string]string
	inFlight    int32
	maxInFlight int32
}

func New(account Account, endDate string, months []Month) *Server {
	s := &Server{
		Account: account,
		EndDate: endDate,
		Months:  months,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Requests returns every request received so far, in order.
func (s *Server) Requests() []*http.Request {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]*http.Request{}, s.requests...)
}

// LoginForms returns the forms posted to the login endpoint.
func (s *Server) LoginForms() []map[string]string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]map[string]string{}, s.forms...)
}

// MaxInFlight is the highest number of requests that were served at the same time.
func (s *Server) MaxInFlight() int {
	return int(atomic.LoadInt32(&s.maxInFlight))
}

func (s *Server) track(r *http.Request) func() {
	current := atomic.AddInt32(&s.inFlight, 1)
	for {
		highest := atomic.LoadInt32(&s.maxInFlight)
		if current <= highest || atomic.CompareAndSwapInt32(&s.maxInFlight, highest, current) {
			break
		}
	}

	s.mutex.Lock()
	s.requests = append(s.requests, r)
	s.mutex.Unlock()

	return func() {
		atomic.AddInt32(&s.inFlight, -1)
	}
}

func hasSession(r *http.Request) bool {
	cookie, err := r.Cookie(cookieName)
	return err == nil && cookie.Value == cookieValue
}

func write(w http.ResponseWriter, status int, body string) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	done := s.track(r)
	defer done()

	query := r.URL.Query()
	switch {
	case r.URL.Path == loginPath && r.Method == http.MethodGet && query.Get("_somtc") == "true":
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: cookieValue, Path: "/"})
		write(w, http.StatusOK, RenderLoginPage())
		return
	case !hasSession(r):
		write(w, http.StatusForbidden, page("session expirée"))
		return
	}

	switch {
	case r.URL.Path == loginPath && r.Method == http.MethodPost:
		s.login(w, r)
	case r.URL.Path == loginPath && query.Get("_pageLabel") == "as_paiements_page":
		write(w, http.StatusOK, RenderLanding(s.EndDate))
	case r.URL.Path == paymentsPath && query.Get("actionEvt") == "afficherPaiementsComplementaires":
		write(w, http.StatusOK, RenderList(s.Months))
	case r.URL.Path == paymentsPath && query.Get("actionEvt") == "chargerDetailPaiements":
		s.detail(w, query.Get("idPaiement"))
	default:
		write(w, http.StatusNotFound, page("introuvable"))
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		write(w, http.StatusBadRequest, page(err.Error()))
		return
	}
	form := map[string]string{}
	for key := range r.PostForm {
		form[key] = r.PostForm.Get(key)
	}
	s.mutex.Lock()
	s.forms = append(s.forms, form)
	s.mutex.Unlock()

	if form["connexioncompte_2numSecuriteSociale"] != s.Account.Login ||
		form["connexioncompte_2codeConfidentiel"] != s.Account.Password {
		write(w, http.StatusOK, RenderLoginError("Le numéro de sécurité sociale ou le code personnel est incorrect."))
		return
	}
	if s.Account.TermsPending {
		write(w, http.StatusOK, RenderTermsRedirect())
		return
	}
	write(w, http.StatusOK, RenderHome())
}

func (s *Server) detail(w http.ResponseWriter, id string) {
	for _, month := range s.Months {
		for _, p := range month.Payments {
			if p.Id == id {
				write(w, http.StatusOK, RenderDetail(p.Detail))
				return
			}
		}
	}
	write(w, http.StatusNotFound, page("paiement introuvable"))
}
