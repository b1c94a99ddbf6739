package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/forkful/marketplace/internal/core/domain"
	"github.com/forkful/marketplace/internal/core/service"
	redisdb "github.com/forkful/marketplace/internal/infrastructure/db/redis"
	"github.com/forkful/marketplace/internal/infrastructure/http/handlers"
	"github.com/forkful/marketplace/internal/infrastructure/token"
	"github.com/forkful/marketplace/pkg/apiclient"
)

// --- in-memory credential store ---

type memAccounts struct {
	mu   sync.Mutex
	now  func() time.Time
	byID map[string]*domain.Account
	seq  int
}

func newMemAccounts(now func() time.Time) *memAccounts {
	return &memAccounts{now: now, byID: make(map[string]*domain.Account)}
}

func (m *memAccounts) FindByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == domain.NormalizeEmail(email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *memAccounts) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == account.Email {
			return nil, domain.ErrAccountExists
		}
	}
	m.seq++
	cp := *account
	cp.ID = fmt.Sprintf("acc-%d", m.seq)
	cp.CreatedAt = cp.CreatedAt.Truncate(time.Millisecond)
	cp.UpdatedAt = cp.UpdatedAt.Truncate(time.Millisecond)
	m.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memAccounts) Update(_ context.Context, id string, u domain.AccountUpdate) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if u.Email != nil {
		for _, other := range m.byID {
			if other.ID != id && other.Email == *u.Email {
				return nil, domain.ErrAccountExists
			}
		}
		a.Email = *u.Email
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.Admin != nil {
		a.Admin = *u.Admin
	}
	next := m.now().UTC().Truncate(time.Millisecond)
	if !next.After(a.UpdatedAt) {
		next = a.UpdatedAt.Add(time.Millisecond)
	}
	a.UpdatedAt = next
	cp := *a
	return &cp, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- environment ---

type testEnv struct {
	srv      *httptest.Server
	clock    *testClock
	accounts *memAccounts

	mu    sync.Mutex
	calls []string
}

type envOptions struct {
	rateLimit float64
	readiness map[string]handlers.Check
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	env := &testEnv{clock: &testClock{t: time.Now().UTC()}}
	env.accounts = newMemAccounts(env.clock.Now)

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	}, token.WithClock(env.clock.Now))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	guard := redisdb.NewSignInGuard(rdb, 3, time.Minute)

	log := zerolog.Nop()
	router := NewRouter(Dependencies{
		AuthService:    service.NewAuthService(env.accounts, codec, guard, nil, log),
		AccountService: service.NewAccountService(env.accounts, codec, nil, log),
		Readiness:      opts.readiness,
		Log:            log,
		BasePath:       "/api",
		RateLimit:      opts.rateLimit,
		Registry:       prometheus.NewRegistry(),
	})

	env.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		env.calls = append(env.calls, r.Method+" "+r.URL.Path)
		env.mu.Unlock()
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(env.srv.Close)
	return env
}

// client returns an API client with its own cookie jar.
func (env *testEnv) client(t *testing.T) *apiclient.Client {
	t.Helper()
	jar, err := apiclient.NewCookieJar()
	if err != nil {
		t.Fatalf("NewCookieJar: %v", err)
	}
	hc := *env.srv.Client()
	hc.Jar = jar
	c, err := apiclient.New(env.srv.URL+"/api", apiclient.WithDoer(&hc))
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	return c
}

func (env *testEnv) count(call string) int {
	env.mu.Lock()
	defer env.mu.Unlock()
	n := 0
	for _, c := range env.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (env *testEnv) seedAdmin(t *testing.T, email, password string) *domain.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	now := env.clock.Now()
	acc, err := env.accounts.Create(context.Background(), &domain.Account{
		Name:         "Admin",
		Email:        email,
		PasswordHash: string(hash),
		Admin:        true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return acc
}

// bearerGet calls path directly with an explicit access token, bypassing the
// client and its cookies.
func (env *testEnv) bearerGet(t *testing.T, path, accessToken string) (int, errorResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, env.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := env.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	var body errorResponse
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("error body is not the envelope: %s", raw)
		}
	}
	return resp.StatusCode, body
}

func asAPIError(t *testing.T, err error) *apiclient.APIError {
	t.Helper()
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *apiclient.APIError, got %T (%v)", err, err)
	}
	return apiErr
}

// --- tests ---

func TestRouter_SessionLifecycle(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	client := env.client(t)
	ctx := context.Background()

	first, err := client.SignUp(ctx, "Dana", "Dana@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if first.TokenType != "Bearer" || first.ExpiresIn != 3600 || first.RefreshTokenExpiresIn != 86400 {
		t.Fatalf("unexpected auth response %+v", first)
	}

	self, err := client.Self(ctx)
	if err != nil {
		t.Fatalf("Self: %v", err)
	}
	if self.Email != "dana@example.com" || self.Name != "Dana" || self.Admin {
		t.Fatalf("unexpected account %+v", self)
	}

	// The access token expires while the refresh token is still good: the
	// client refreshes silently and the caller never sees the 401.
	env.clock.Advance(2 * time.Hour)
	if _, err := client.Self(ctx); err != nil {
		t.Fatalf("Self after access expiry: %v", err)
	}
	if got := env.count("POST /api/refresh"); got != 1 {
		t.Fatalf("expected one silent refresh, got %d", got)
	}

	// Updating the profile revokes every token issued before it.
	name := "Dana K"
	updated, err := client.UpdateSelf(ctx, apiclient.AccountUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateSelf: %v", err)
	}
	if code, body := env.bearerGet(t, "/api/accounts/self", first.AccessToken); code != http.StatusUnauthorized || body.Error.Message != domain.MsgInvalidToken {
		t.Fatalf("old access token must be revoked, got %d %+v", code, body)
	}
	if code, _ := env.bearerGet(t, "/api/accounts/self", updated.AccessToken); code != http.StatusOK {
		t.Fatalf("new access token must work, got %d", code)
	}
	self, err = client.Self(ctx)
	if err != nil || self.Name != "Dana K" {
		t.Fatalf("Self after update: %+v %v", self, err)
	}

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// No cookies left: the refresh attempt fails and the original 401 surfaces.
	refreshesBefore := env.count("POST /api/refresh")
	_, err = client.Self(ctx)
	apiErr := asAPIError(t, err)
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != domain.MsgNoToken {
		t.Fatalf("expected no-token 401, got %+v", apiErr)
	}
	if got := env.count("POST /api/refresh") - refreshesBefore; got != 1 {
		t.Fatalf("expected a single refresh attempt, got %d", got)
	}
}

func TestRouter_SignInDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	if _, err := env.client(t).SignUp(ctx, "Dana", "dana@example.com", "correct horse"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	_, errWrongPassword := env.client(t).SignIn(ctx, "dana@example.com", "wrong password")
	_, errUnknown := env.client(t).SignIn(ctx, "nobody@example.com", "wrong password")

	a, b := asAPIError(t, errWrongPassword), asAPIError(t, errUnknown)
	if a.Status != http.StatusUnauthorized || b.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401s, got %d and %d", a.Status, b.Status)
	}
	if a.Message != b.Message || a.Message != domain.MsgInvalidCredentials {
		t.Fatalf("messages must be identical, got %q and %q", a.Message, b.Message)
	}
	if env.count("POST /api/refresh") != 0 {
		t.Fatalf("a failed sign-in must not trigger a refresh")
	}
}

func TestRouter_SignInThrottled(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	client := env.client(t)

	for i := 0; i < 3; i++ {
		if _, err := client.SignIn(ctx, "dana@example.com", "wrong password"); err == nil {
			t.Fatalf("attempt %d: expected failure", i)
		}
	}

	_, err := client.SignIn(ctx, "dana@example.com", "wrong password")
	if apiErr := asAPIError(t, err); apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %+v", apiErr)
	}
}

func TestRouter_AdminUpdateRevokesTargetSession(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	env.seedAdmin(t, "admin@example.com", "admin password")
	admin := env.client(t)
	if _, err := admin.SignIn(ctx, "admin@example.com", "admin password"); err != nil {
		t.Fatalf("admin SignIn: %v", err)
	}

	diner := env.client(t)
	if _, err := diner.SignUp(ctx, "Dana", "dana@example.com", "correct horse"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	self, err := diner.Self(ctx)
	if err != nil {
		t.Fatalf("Self: %v", err)
	}

	// A regular account is turned away by the admin gate.
	_, err = diner.Request(ctx, "/accounts/"+self.ID, apiclient.RequestOptions{})
	if apiErr := asAPIError(t, err); apiErr.Status != http.StatusUnauthorized || apiErr.Message != domain.MsgNotAuthorized {
		t.Fatalf("expected not authorized, got %+v", apiErr)
	}

	resp, err := admin.Request(ctx, "/accounts/"+self.ID, apiclient.RequestOptions{
		Method: http.MethodPut,
		Body:   map[string]any{"name": "Dana (verified)"},
	})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	acc, err := apiclient.Decode[apiclient.Account](resp)
	if err != nil || acc.Name != "Dana (verified)" {
		t.Fatalf("unexpected admin update result %+v %v", acc, err)
	}

	// Both of the diner's tokens predate the update.
	_, err = diner.Self(ctx)
	if apiErr := asAPIError(t, err); apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected the diner's session to be revoked, got %+v", apiErr)
	}
	if _, err := diner.SignIn(ctx, "dana@example.com", "correct horse"); err != nil {
		t.Fatalf("re-sign-in: %v", err)
	}
	if _, err := diner.Self(ctx); err != nil {
		t.Fatalf("Self after re-sign-in: %v", err)
	}
}

func TestRouter_ErrorEnvelope(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, err := env.srv.Client().Post(env.srv.URL+"/api/signup", "application/json", strings.NewReader(`{"email":"bad"}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()

	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest || body.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 envelope, got %d %+v", resp.StatusCode, body)
	}
	if len(body.Error.Fields) != 3 {
		t.Fatalf("expected one message per invalid field, got %v", body.Error.Fields)
	}

	code, unauth := env.bearerGet(t, "/api/accounts/self", "not-a-jwt")
	if code != http.StatusUnauthorized || unauth.Status != http.StatusUnauthorized || unauth.Error.Message != domain.MsgInvalidToken {
		t.Fatalf("unexpected 401 envelope %d %+v", code, unauth)
	}
}

func TestRouter_RateLimitedAuthRoutes(t *testing.T) {
	env := newTestEnv(t, envOptions{rateLimit: 1})

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := env.srv.Client().Post(env.srv.URL+"/api/signin", "application/json", strings.NewReader(`{}`))
		if err != nil {
			t.Fatalf("Post: %v", err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}

	if codes[0] != http.StatusBadRequest || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected the burst to be exhausted, got %v", codes)
	}

	// Authenticated routes are not behind the limiter.
	if code, _ := env.bearerGet(t, "/api/accounts/self", "x"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 from the gate, got %d", code)
	}
}

func TestRouter_OpsEndpoints(t *testing.T) {
	env := newTestEnv(t, envOptions{readiness: map[string]handlers.Check{
		"mongo": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}})

	cases := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/health/ready", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
		{"/swagger/doc.json", http.StatusOK},
	}
	for _, tc := range cases {
		resp, err := env.srv.Client().Get(env.srv.URL + tc.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("GET %s: expected %d, got %d", tc.path, tc.want, resp.StatusCode)
		}
	}
}
