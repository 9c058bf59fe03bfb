package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sparklive/rustmailerctl/accesstoken"
	"github.com/sparklive/rustmailerctl/mta"
	"github.com/sparklive/rustmailerctl/querycache"
)

func mtaRequest() mta.Request {
	return mta.Request{Host: "smtp.example.org", Port: 587, Encryption: mta.EncryptionStartTLS, Username: "u"}
}

func tcheck(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

func TestAuthInjection(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	creds := &MemStore{}
	c := &Client{BaseURL: srv.URL, Creds: creds}
	ctx := context.Background()

	_, err := c.AccessTokenList(ctx)
	tcheck(t, err, "list without token")
	if gotAuth != "" {
		t.Fatalf("got authorization %q, expected none", gotAuth)
	}

	creds.SetToken(ctx, "abc123")
	_, err = c.AccessTokenList(ctx)
	tcheck(t, err, "list with token")
	if gotAuth != "Bearer abc123" {
		t.Fatalf("got authorization %q, expected bearer token", gotAuth)
	}
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	creds := &MemStore{token: "stale"}
	var redirected string
	c := &Client{
		BaseURL:        srv.URL,
		Creds:          creds,
		Cache:          querycache.New(),
		OnUnauthorized: func(u string) { redirected = u },
	}

	_, err := c.MTAList(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got %v, expected ErrUnauthorized", err)
	}
	if creds.Token() != "" {
		t.Fatalf("got token %q, expected credential slot cleared", creds.Token())
	}
	if redirected != srv.URL+"/api/v1/list-mta" {
		t.Fatalf("got redirect url %q, expected request url", redirected)
	}
}

func TestDomainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":400,"message":"token description too long"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Creds: &MemStore{}}
	_, err := c.AccessTokenCreate(context.Background(), accesstoken.Request{})
	var xerr Error
	if !errors.As(err, &xerr) {
		t.Fatalf("got %v, expected client.Error", err)
	}
	if xerr.Message != "token description too long" {
		t.Fatalf("got message %q, expected server message verbatim", xerr.Message)
	}
	if xerr.Code != http.StatusBadRequest {
		t.Fatalf("got code %d, expected 400", xerr.Code)
	}
}

func TestStatusMapping(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Creds: &MemStore{}}
	ctx := context.Background()

	check := func(code int, expErr error) {
		t.Helper()
		status = code
		_, err := c.Overview(ctx)
		if !errors.Is(err, expErr) {
			t.Fatalf("status %d: got %v, expected %v", code, err, expErr)
		}
	}
	check(http.StatusNotModified, ErrNotModified)
	check(http.StatusForbidden, ErrForbidden)
	check(http.StatusInternalServerError, ErrServer)
	check(http.StatusBadGateway, ErrServer)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := &Client{BaseURL: srv.URL, Creds: &MemStore{}}
	_, err := c.Overview(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("got %v, expected ErrNetwork", err)
	}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" {
			t.Fatalf("got path %q, expected /api/login", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "text/plain" {
			t.Fatalf("got content-type %q, expected text/plain", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "sekret" {
			t.Fatalf("got body %q, expected password", body)
		}
		w.Write([]byte("newtoken\n"))
	}))
	defer srv.Close()

	creds := &MemStore{}
	c := &Client{BaseURL: srv.URL, Creds: creds}
	err := c.Login(context.Background(), "sekret")
	tcheck(t, err, "login")
	if creds.Token() != "newtoken" {
		t.Fatalf("got token %q, expected newtoken", creds.Token())
	}
}

func TestBlob(t *testing.T) {
	raw := "From: alice@example.org\r\n\r\nhi\r\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/full-message/test@example.org" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("mailbox") != "INBOX" || q.Get("uid") != "17" {
			t.Fatalf("unexpected query %q", r.URL.RawQuery)
		}
		w.Write([]byte(raw))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Creds: &MemStore{}}
	rc, err := c.FullMessage(context.Background(), "test@example.org", "INBOX", 17)
	tcheck(t, err, "full message")
	defer rc.Close()
	buf, err := io.ReadAll(rc)
	tcheck(t, err, "read blob")
	if string(buf) != raw {
		t.Fatalf("got %q, expected raw message", buf)
	}
}

func TestCacheInvalidation(t *testing.T) {
	var lists int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/list-mta":
			lists++
			w.Write([]byte("[]"))
		case "/api/v1/mta":
			w.Write([]byte("{}"))
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Creds: &MemStore{}, Cache: querycache.New()}
	ctx := context.Background()

	_, err := c.MTAList(ctx)
	tcheck(t, err, "first list")
	_, err = c.MTAList(ctx)
	tcheck(t, err, "cached list")
	if lists != 1 {
		t.Fatalf("got %d list requests, expected 1 (cached)", lists)
	}

	_, err = c.MTACreate(ctx, mtaRequest())
	tcheck(t, err, "create")
	_, err = c.MTAList(ctx)
	tcheck(t, err, "list after mutation")
	if lists != 2 {
		t.Fatalf("got %d list requests, expected 2 (invalidated)", lists)
	}
}
