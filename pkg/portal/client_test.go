package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func newPortalServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("id") == "20201234" && r.PostForm.Get("password") == "secret" {
			http.SetCookie(w, &http.Cookie{Name: "ssotoken", Value: "abc"})
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "xyz"})
		}
		http.Redirect(w, r, "/main", http.StatusFound)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("ssotoken"); err != nil || ck.Value != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, err := korean.EUCKR.NewEncoder().String(`<div class="user-info"><p class="user-name">홍길동</p></div>`)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/grades", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:       baseURL,
		LoginPath:     "/login",
		UserInfoPath:  "/user",
		GradePath:     "/grades",
		SessionCookie: "ssotoken",
		Charset:       "euc-kr",
		Timeout:       time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestAuthenticateCollectsSessionCookies(t *testing.T) {
	srv := newPortalServer(t)
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	session, err := client.Authenticate(context.Background(), "20201234", "secret")
	require.NoError(t, err)
	assert.Len(t, session.Cookies, 2)
}

func TestAuthenticateRejectsWrongCredentials(t *testing.T) {
	srv := newPortalServer(t)
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	_, err := client.Authenticate(context.Background(), "20201234", "wrong")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestFetchUserInfoDecodesCharset(t *testing.T) {
	srv := newPortalServer(t)
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	session, err := client.Authenticate(context.Background(), "20201234", "secret")
	require.NoError(t, err)

	body, err := client.FetchUserInfo(context.Background(), session)
	require.NoError(t, err)
	assert.Contains(t, string(body), "홍길동")
}

func TestFetchPageReportsStatusAsNetworkError(t *testing.T) {
	srv := newPortalServer(t)
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	_, err := client.FetchGrades(context.Background(), &Session{})
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestAuthenticateTransportFailure(t *testing.T) {
	srv := newPortalServer(t)
	client := newTestClient(t, srv.URL)
	srv.Close()

	_, err := client.Authenticate(context.Background(), "20201234", "secret")
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "://bad", SessionCookie: "s"})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://portal", SessionCookie: "s", Charset: "not-a-charset"})
	assert.Error(t, err)
}
