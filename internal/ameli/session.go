package ameli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"ameli-konnector/internal/components/assert"
	"ameli-konnector/internal/components/telemetry"
	"ameli-konnector/lib/calendar"
	"ameli-konnector/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("ameli-konnector/internal/ameli")

const (
	report_session_authenticate = "session.authenticate"
	report_session_fetch        = "session.fetch"
	report_session_fetch_list   = "session.fetch-list"
	report_session_fetch_detail = "session.fetch-details"
)

// loginMaxLength is the length of a social security number without its
// 2 digit key, the login field rejects anything longer.
const loginMaxLength = 13

type SessionOptions struct {
	Portal Portal
	// RequestsPerSecond paces requests made through the session, defaults to 2.
	RequestsPerSecond float64
	// DumpMessages reports every request/response pair as debug output.
	DumpMessages bool
	// DumpDir, when set, receives one file per request/response pair.
	DumpDir string
	// DisableCloudflareBypass keeps the default transport untouched.
	DisableCloudflareBypass bool
}

// Session is an http client bound to a single cookie jar. It is not safe for
// concurrent use: the portal ties its state to the session cookies, so every
// request made through it must complete before the next one starts.
type Session struct {
	portal Portal
	http   *resty.Client
	tel    telemetry.API
}

func NewSession(opts SessionOptions, tel telemetry.API) (*Session, error) {
	assert.NotNil(tel)
	if opts.Portal.Origin == "" {
		opts.Portal = DefaultPortal
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}

	tel = telemetry.NewScopedAPI("ameli", tel)

	origin, err := url.Parse(opts.Portal.Origin)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if !opts.DisableCloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(origin.Hostname()))
	httpClient.SetTimeout(time.Second * 30)

	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, opts.DumpMessages)
	restyutil.Trace(httpClient, tracer)
	if opts.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("dump directory: %w", err)
		}
		restyutil.Dump(httpClient, output)
	}

	return &Session{
		portal: opts.Portal,
		http:   httpClient,
		tel:    tel,
	}, nil
}

// Portal is the portal the session talks to.
func (s *Session) Portal() Portal {
	return s.portal
}

// NormalizeLogin drops the key that follows the 13 first characters of a
// social security number. The key is not validated.
func NormalizeLogin(login string) string {
	runes := []rune(login)
	if len(runes) <= loginMaxLength {
		return login
	}
	return string(runes[:loginMaxLength])
}

var errUnexpectedStatus = errors.New("unexpected status")

func checkStatus(res *resty.Response) error {
	if res.IsError() {
		return fmt.Errorf("%w %s", errUnexpectedStatus, res.Status())
	}
	return nil
}

func parseDocument(res *resty.Response) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
}

// Fetch requests a page of the portal and parses it.
func (s *Session) Fetch(ctx context.Context, endpoint string) (*goquery.Document, error) {
	res, err := s.http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		s.tel.ReportBroken(report_session_fetch, fmt.Errorf("fetch: %w", err), endpoint)
		return nil, err
	}
	err = checkStatus(res)
	if err != nil {
		s.tel.ReportBroken(report_session_fetch, fmt.Errorf("status: %w", err), endpoint)
		return nil, err
	}
	doc, err := parseDocument(res)
	if err != nil {
		s.tel.ReportBroken(report_session_fetch, fmt.Errorf("parse: %w", err), endpoint)
		return nil, err
	}
	return doc, nil
}

// Authenticate logs in and returns the reimbursement landing page. Every
// later request made through the session reuses the cookies set here.
func (s *Session) Authenticate(ctx context.Context, creds Credentials) (*goquery.Document, error) {
	loginError := func(err error) error {
		return fmt.Errorf("ameli: login: %w", err)
	}

	login := NormalizeLogin(creds.Login)
	if login != creds.Login {
		s.tel.ReportDebug("login shortened", len(creds.Login), loginMaxLength)
	}

	// the first request only collects the session cookie
	res, err := s.http.R().
		SetContext(ctx).
		Get(s.portal.LoginURL())
	if err != nil {
		s.tel.ReportBroken(
			report_session_authenticate,
			fmt.Errorf("login page request: %w", err),
		)
		return nil, loginError(err)
	}
	err = checkStatus(res)
	if err != nil {
		err = fmt.Errorf("login page request: %w", err)
		s.tel.ReportBroken(report_session_authenticate, err)
		return nil, loginError(err)
	}

	res, err = s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"connexioncompte_2numSecuriteSociale": login,
			"connexioncompte_2codeConfidentiel":   creds.Password,
			"connexioncompte_2actionEvt":          "connecter",
			"submit":                              "Valider",
		}).
		Post(s.portal.SubmitURL())
	if err != nil {
		s.tel.ReportBroken(
			report_session_authenticate,
			fmt.Errorf("login request: %w", err),
		)
		return nil, loginError(err)
	}
	err = checkStatus(res)
	if err != nil {
		err = fmt.Errorf("login request: %w", err)
		s.tel.ReportBroken(report_session_authenticate, err)
		return nil, loginError(err)
	}
	doc, err := parseDocument(res)
	if err != nil {
		s.tel.ReportBroken(
			report_session_authenticate,
			fmt.Errorf("parse login response: %w", err),
		)
		return nil, loginError(err)
	}

	err = s.classify(doc)
	if err != nil {
		return nil, err
	}
	s.tel.ReportDebug("logged in")

	landing, err := s.Fetch(ctx, s.portal.ReimbursementURL())
	if err != nil {
		return nil, fmt.Errorf("ameli: reimbursement page: %w", err)
	}
	return landing, nil
}

func (s *Session) classify(doc *goquery.Document) error {
	err := ClassifyLogin(doc)
	if err == nil {
		return nil
	}
	s.tel.ReportWarning(report_session_authenticate, err)
	if errors.Is(err, ErrLoginFailed) {
		body, htmlErr := doc.Find("body").Html()
		if htmlErr == nil {
			s.tel.ReportDebug("page after login", body)
		}
	}
	return err
}

// FetchList reads the end date of the landing page search form and requests
// the payments of the MonthsBack months before it.
func (s *Session) FetchList(ctx context.Context, landing *goquery.Document) (*goquery.Document, error) {
	value, ok := landing.Find("#paiements_1dateFin").Attr("value")
	if !ok {
		err := fmt.Errorf("%w: missing #paiements_1dateFin", ErrMarkupMismatch)
		s.tel.ReportBroken(report_session_fetch_list, err)
		return nil, err
	}
	endDate, err := calendar.ParseDayMonthYear(calendar.French, value)
	if err != nil {
		err = fmt.Errorf("%w: end date: %w", ErrMarkupMismatch, err)
		s.tel.ReportBroken(report_session_fetch_list, err)
		return nil, err
	}

	return s.Fetch(ctx, s.portal.BillListURL(endDate, MonthsBack))
}

// FetchDetails fetches and parses the detail page of every summary, one after
// the other.
func (s *Session) FetchDetails(ctx context.Context, summaries []ReimbursementSummary) ([]ReimbursementDetail, error) {
	details := make([]ReimbursementDetail, 0, len(summaries))
	for _, summary := range summaries {
		doc, err := s.Fetch(ctx, summary.DetailsURL)
		if err != nil {
			return nil, fmt.Errorf("ameli: details of line %s: %w", summary.LineId, err)
		}
		detail, err := ParseDetail(doc, summary, s.tel)
		if err != nil {
			s.tel.ReportBroken(report_session_fetch_detail, err, summary.DetailsURL)
			return nil, fmt.Errorf("ameli: details of line %s: %w", summary.LineId, err)
		}
		details = append(details, detail)
	}
	s.tel.ReportCount("session.details", int64(len(details)))
	return details, nil
}
