package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pennywise/finance-client/internal/core/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second, Attempts: 3, RetryDelay: time.Millisecond}, opts...)
}

func TestClient_ListProfiles_BareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profiles" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `[{"id":1,"name":"Personal","is_default":true},{"id":"b2","name":"Business"}]`)
	})

	got, err := c.ListProfiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "b2" || !got[0].IsDefault {
		t.Fatalf("unexpected profiles: %+v", got)
	}
}

func TestClient_ListProfiles_Envelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"profiles":[{"id":7,"name":"Side"}]}`)
	})

	got, err := c.ListProfiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "7" {
		t.Fatalf("unexpected profiles: %+v", got)
	}
}

func TestClient_SendsSessionHeaders(t *testing.T) {
	var gotAuth, gotProfile, gotReqID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotProfile = r.Header.Get(HeaderProfileID)
		gotReqID = r.Header.Get(HeaderRequestID)
		_, _ = io.WriteString(w, `[]`)
	},
		WithTokenSource(func() string { return "tok" }),
		WithProfileScope(func() domain.ProfileID { return "42" }),
	)

	if _, err := c.ListAccounts(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotProfile != "42" {
		t.Errorf("expected profile header 42, got %q", gotProfile)
	}
	if gotReqID == "" {
		t.Errorf("expected request id header")
	}
}

func TestClient_OmitsProfileHeaderWithoutSelection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header[HeaderProfileID]; ok {
			t.Errorf("profile header must be absent")
		}
		_, _ = io.WriteString(w, `[]`)
	})
	if _, err := c.ListProfiles(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_CreateProfile_WrapsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if body["profile"]["name"] != "Business" {
			t.Errorf("expected wrapped profile, got %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"profile":{"id":9,"name":"Business"}}`)
	})

	p, err := c.CreateProfile(context.Background(), domain.ProfileInput{Name: "Business"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "9" {
		t.Fatalf("expected id 9, got %q", p.ID)
	}
}

func TestClient_UpdateProfile_BareResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/profiles/3" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"id":3,"name":"Renamed"}`)
	})

	p, err := c.UpdateProfile(context.Background(), "3", domain.ProfileInput{Name: "Renamed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Renamed" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestClient_DeleteProfile_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"Profile not found"}`)
	})

	err := c.DeleteProfile(context.Background(), "99")
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if !errors.Is(err, domain.ErrNetworkFailure) {
		t.Fatalf("expected network failure in chain, got %v", err)
	}
}

func TestClient_SwitchProfile_Body(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/profiles/switch" || body["profile_id"] != "5" {
			t.Errorf("unexpected switch request %s %+v", r.URL.Path, body)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.SwitchProfile(context.Background(), "5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_ValidationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":{"name":["can't be blank"]}}`)
	})

	_, err := c.CreateProfile(context.Background(), domain.ProfileInput{})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if got := ve.Fields["name"]; len(got) != 1 || got[0] != "can't be blank" {
		t.Fatalf("unexpected fields: %+v", ve.Fields)
	}
}

func TestClient_UnauthorizedCallsHook(t *testing.T) {
	var hooked atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, WithUnauthorizedHandler(func(context.Context) { hooked.Add(1) }))

	_, err := c.ListProfiles(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if hooked.Load() != 1 {
		t.Fatalf("expected hook once, got %d", hooked.Load())
	}
}

func TestClient_RetriesServerErrorsOnGet(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"total_balance":"10.50"}`)
	})

	stats, err := c.TransactionStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if stats.TotalBalance.String() != "10.5" {
		t.Fatalf("unexpected total balance %s", stats.TotalBalance)
	}
}

func TestClient_DoesNotRetryWrites(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.SwitchProfile(context.Background(), "1")
	var ne *domain.NetworkError
	if !errors.As(err, &ne) || ne.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 network error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	if _, err := c.ListAccounts(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond, Attempts: 1})

	_, err := c.ListProfiles(context.Background())
	var ne *domain.NetworkError
	if !errors.As(err, &ne) || ne.Status != 0 {
		t.Fatalf("expected transport network error, got %v", err)
	}
}

func TestClient_ListTransactionsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "10" || q.Get("order") != "desc" || q.Get("q") != "coffee" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"transactions":[{"id":"t1","description":"Coffee","amount":"-3.20","date":"2026-01-02T00:00:00Z"}]}`)
	})

	txs, err := c.ListTransactions(context.Background(), domain.TransactionFilter{Limit: 10, Order: "desc", Search: "coffee"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 1 || txs[0].Amount.String() != "-3.2" {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
}

func TestClient_Login(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token":"abc","user":{"id":"u1","email":"a@example.com"}}`)
	})

	res, err := c.Login(context.Background(), domain.Credentials{Email: "a@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Token != "abc" || res.User.ID != "u1" {
		t.Fatalf("unexpected login result: %+v", res)
	}
}

func TestDecodeFieldErrors(t *testing.T) {
	cases := map[string]string{
		`{"name":["taken"]}`: "name",
		`{"color":"bad"}`:    "color",
		`["broken"]`:         "base",
	}
	for raw, field := range cases {
		got := decodeFieldErrors(json.RawMessage(raw))
		if len(got[field]) != 1 {
			t.Errorf("%s: expected one message under %q, got %+v", raw, field, got)
		}
	}
	if got := decodeFieldErrors(nil); got != nil {
		t.Errorf("expected nil for empty errors, got %+v", got)
	}
}

func TestClient_GetProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/profiles/4" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"profile":{"id":4,"name":"Family","color":"#10B981"}}`)
	})

	p, err := c.GetProfile(context.Background(), "4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "4" || p.Color != "#10B981" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestClient_CreateTransaction_WrapsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if r.Method != http.MethodPost || body["transaction"]["description"] != "Rent" {
			t.Errorf("unexpected request %s %+v", r.Method, body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"transaction":{"id":"t9","description":"Rent","amount":"-900.00","date":"2026-02-01T00:00:00Z"}}`)
	})

	tx, err := c.CreateTransaction(context.Background(), domain.TransactionInput{
		AccountID:   "chk",
		Description: "Rent",
		Date:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.ID != "t9" || tx.Amount.String() != "-900" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestClient_CreateTransaction_RejectsEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	_, err := c.CreateTransaction(context.Background(), domain.TransactionInput{Description: "x"})
	if !errors.Is(err, domain.ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
}

func TestClient_DeleteTransaction_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/transactions/t1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.DeleteTransaction(context.Background(), "t1")
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestClient_ReportQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/reports/projected_balance" || len(q["account_id[]"]) != 2 || q.Get("merged") != "false" || q.Get("start_date") != "2026-01-01" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"series":[]}`)
	})

	merged := false
	report, err := c.Report(context.Background(), domain.ReportProjectedBalance, domain.ReportQuery{
		AccountIDs: []string{"chk", "sav"},
		StartDate:  "2026-01-01",
		Merged:     &merged,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Kind != domain.ReportProjectedBalance || string(report.Data) != `{"series":[]}` {
		t.Fatalf("unexpected report: %+v", report)
	}
}
