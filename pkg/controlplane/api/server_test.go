package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/accounts"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	ext "github.com/marmos91/postmaster/pkg/extensions"
	"github.com/marmos91/postmaster/pkg/extensions/autoreply"
)

const (
	testSecret        = "test-secret-key-for-testing-only-32chars"
	testAdminPassword = "initial-admin-password"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	rt      *runtime.Runtime
}

func newTestAPI(t *testing.T, mutate func(*APIConfig)) *testAPI {
	t.Helper()
	t.Setenv(accounts.EnvAdminInitialPassword, testAdminPassword)
	t.Setenv(EnvControlPlaneSecret, "")

	s, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rt, _, err := runtime.InitializeFromStore(context.Background(), s, runtime.Options{
		PasswordScheme: password.SchemeSHA256,
		MediaRoot:      t.TempDir(),
		Extensions:     []ext.Extension{autoreply.New()},
	})
	require.NoError(t, err)

	cfg := APIConfig{JWT: JWTConfig{Secret: testSecret}}
	if mutate != nil {
		mutate(&cfg)
	}
	server, err := NewServer(cfg, rt)
	require.NoError(t, err)

	return &testAPI{t: t, handler: server.Handler(), rt: rt}
}

// do sends a request and decodes the JSON response into out when not nil.
func (a *testAPI) do(method, path, token string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	if out != nil && rr.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
	}
	return rr.Code
}

func (a *testAPI) login(username, pw string) string {
	a.t.Helper()
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	code := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": pw}, &resp)
	require.Equal(a.t, http.StatusOK, code)
	require.NotEmpty(a.t, resp.AccessToken)
	return resp.AccessToken
}

type problem struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func TestNewServer_RequiresSecret(t *testing.T) {
	t.Setenv(EnvControlPlaneSecret, "")
	s, err := store.NewInMemory()
	require.NoError(t, err)
	rt, err := runtime.New(s, runtime.Options{})
	require.NoError(t, err)

	_, err = NewServer(APIConfig{JWT: JWTConfig{Secret: "short"}}, rt)
	assert.Error(t, err)

	_, err = NewServer(APIConfig{JWT: JWTConfig{Secret: testSecret}}, nil)
	assert.Error(t, err)

	t.Setenv(EnvControlPlaneSecret, testSecret)
	_, err = NewServer(APIConfig{}, rt)
	assert.NoError(t, err, "secret from the environment")
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)

	var live struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", "", nil, &live))
	assert.Equal(t, "healthy", live.Status)
	assert.Equal(t, "postmaster", live.Data["service"])

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health/ready", "", nil, nil))
}

func TestAuth(t *testing.T) {
	api := newTestAPI(t, nil)

	var p problem
	code := api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "wrong"}, &p)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid username or password", p.Detail)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{}, nil))

	var tokens struct {
		AccessToken  string          `json:"access_token"`
		RefreshToken string          `json:"refresh_token"`
		Account      *models.Account `json:"account"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "Admin", "password": testAdminPassword}, &tokens))
	assert.Equal(t, models.RoleSuperAdmin, tokens.Account.Role)

	var me models.Account
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/auth/me", tokens.AccessToken, nil, &me))
	assert.Equal(t, "admin", me.Username)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/v1/auth/me", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/v1/accounts", tokens.RefreshToken, nil, nil))

	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken}, &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": tokens.AccessToken}, nil))
}

func TestLoginRateLimit(t *testing.T) {
	api := newTestAPI(t, func(c *APIConfig) {
		c.LoginRateLimit = RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	})

	body := map[string]string{"username": "admin", "password": "wrong"}
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/v1/auth/login", "", body, nil))
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/v1/auth/login", "", body, nil))
	assert.Equal(t, http.StatusTooManyRequests, api.do(http.MethodPost, "/api/v1/auth/login", "", body, nil))
}

func TestMailAdministration(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.login("admin", testAdminPassword)

	var domain models.Domain
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/domains", admin, map[string]any{"name": "Example.com"}, &domain))
	assert.Equal(t, "example.com", domain.Name)
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/api/v1/domains", admin, map[string]any{"name": "example.com"}, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/v1/domains/missing.org", admin, nil, nil))

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/domain-aliases", admin, map[string]any{"name": "example.net", "target": "example.com"}, nil))

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/accounts", admin, map[string]any{
		"username": "user@example.com",
		"password": "user-password",
		"email":    "user@example.com",
	}, nil))
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/mailboxes", admin, map[string]any{
		"address": "user@example.com",
		"account": "user@example.com",
	}, nil))

	var alias models.Alias
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/aliases", admin, map[string]any{
		"address":    "info@example.com",
		"recipients": []string{"user@example.com", "ext@gmail.com"},
	}, &alias))
	assert.Len(t, alias.Recipients, 2)

	var p problem
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/api/v1/aliases", admin, map[string]any{
		"address":    "info@example.com",
		"recipients": []string{"user@example.com"},
	}, &p))
	assert.Equal(t, "Alias with this name already exists", p.Detail)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/aliases", admin, map[string]any{
		"address":    "empty@example.com",
		"recipients": []string{},
	}, nil))

	var mailboxes []models.Mailbox
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/mailboxes?domain=example.com", admin, nil, &mailboxes))
	assert.Len(t, mailboxes, 1)

	var grants []models.ObjectAccess
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/grants/domain/"+domain.ID, admin, nil, &grants))
	assert.NotEmpty(t, grants)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/v1/grants/bogus/x", admin, nil, nil))

	t.Run("simple user", func(t *testing.T) {
		user := api.login("user@example.com", "user-password")
		assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/v1/domains", user, nil, nil))
		assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/v1/aliases/info@example.com", user, nil, nil))

		var self models.Account
		assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/accounts/user@example.com", user, nil, &self))
		assert.Equal(t, models.RoleSimpleUser, self.Role)
	})

	t.Run("self deletion", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, api.do(http.MethodDelete, "/api/v1/accounts/admin", admin, nil, nil))
	})

	t.Run("disabled account", func(t *testing.T) {
		require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/accounts", admin, map[string]any{
			"username": "temp@example.com",
			"password": "temp-password",
		}, nil))
		temp := api.login("temp@example.com", "temp-password")
		require.Equal(t, http.StatusOK, api.do(http.MethodPut, "/api/v1/accounts/temp@example.com", admin, map[string]any{"enabled": false}, nil))
		assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/v1/auth/me", temp, nil, nil))

		require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/v1/accounts/temp@example.com", admin, nil, nil))
		assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/v1/auth/me", temp, nil, nil))
	})

	t.Run("roles", func(t *testing.T) {
		var updated models.Account
		require.Equal(t, http.StatusOK, api.do(http.MethodPut, "/api/v1/accounts/user@example.com/role", admin, map[string]any{"role": "DomainAdmins"}, &updated))
		assert.Equal(t, models.RoleDomainAdmin, updated.Role)
		assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPut, "/api/v1/accounts/user@example.com/role", admin, map[string]any{"role": "Nobody"}, nil))
	})
}

func TestDomainAdminGrant(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.login("admin", testAdminPassword)

	var domain models.Domain
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/domains", admin, map[string]any{"name": "example.com"}, &domain))
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/accounts", admin, map[string]any{
		"username": "da",
		"password": "da-password",
		"role":     "DomainAdmins",
	}, nil))
	da := api.login("da", "da-password")

	var domains []models.Domain
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/domains", da, nil, &domains))
	assert.Empty(t, domains)

	grantPath := "/api/v1/grants/domain/" + domain.ID
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, grantPath, da, map[string]any{"username": "da"}, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, grantPath, admin, map[string]any{}, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/api/v1/grants/domain/missing", admin, map[string]any{"username": "da"}, nil))

	var grants []models.ObjectAccess
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, grantPath, admin, map[string]any{"username": "da"}, &grants))
	assert.Len(t, grants, 2)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/domains", da, nil, &domains))
	require.Len(t, domains, 1)
	assert.Equal(t, "example.com", domains[0].Name)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/accounts", da, map[string]any{
		"username": "user@example.com",
		"password": "user-password",
	}, nil))
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/mailboxes", da, map[string]any{
		"address": "user@example.com",
		"account": "user@example.com",
	}, nil))

	require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, grantPath+"/da", admin, nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, grantPath+"/da", admin, nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/domains", da, nil, &domains))
	assert.Empty(t, domains)
}

func TestAutoreply(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.login("admin", testAdminPassword)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/domains", admin, map[string]any{"name": "example.com"}, nil))
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/accounts", admin, map[string]any{
		"username": "user@example.com",
		"password": "user-password",
	}, nil))
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/mailboxes", admin, map[string]any{
		"address": "user@example.com",
		"account": "user@example.com",
	}, nil))
	user := api.login("user@example.com", "user-password")

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/v1/mailboxes/user@example.com/autoreply", user, nil, nil),
		"unavailable while the extension is disabled")

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/v1/extensions/"+autoreply.Name+"/enable", user, nil, nil))
	require.Equal(t, http.StatusNoContent, api.do(http.MethodPost, "/api/v1/extensions/"+autoreply.Name+"/enable", admin, nil, nil))

	var infos []ext.Info
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/extensions", admin, nil, &infos))
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Enabled)

	var msg autoreply.Message
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/mailboxes/user@example.com/autoreply", user, nil, &msg))
	assert.False(t, msg.Enabled)

	require.Equal(t, http.StatusOK, api.do(http.MethodPut, "/api/v1/mailboxes/user@example.com/autoreply", user, map[string]any{
		"subject": "Away",
		"content": "Back on Monday",
		"enabled": true,
	}, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/mailboxes/user@example.com/autoreply", admin, nil, &msg))
	assert.Equal(t, "Away", msg.Subject)
	assert.True(t, msg.Enabled)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPut, "/api/v1/mailboxes/user@example.com/autoreply", user, map[string]any{"subject": ""}, nil))

	require.Equal(t, http.StatusNoContent, api.do(http.MethodPost, "/api/v1/extensions/"+autoreply.Name+"/disable", admin, nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/v1/mailboxes/user@example.com/autoreply", user, nil, nil))
}

func TestSettingsAndHistory(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.login("admin", testAdminPassword)
	path := "/api/v1/settings/" + models.SettingPasswordScheme

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, path, admin, nil, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPut, path, admin, map[string]string{"value": "rot13"}, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodPut, path, admin, map[string]string{"value": "sha512crypt"}, nil))
	assert.Equal(t, password.SchemeSHA512Crypt, api.rt.SettingsWatcher().PasswordScheme())

	var setting models.Setting
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, path, admin, nil, &setting))
	assert.Equal(t, "sha512crypt", setting.Value)

	require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, path, admin, nil, nil))

	var history []models.AuditLog
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/audit?limit=10", admin, nil, &history))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/v1/audit?limit=-1", admin, nil, nil))
}

func TestMustChangePassword(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.login("admin", testAdminPassword)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/accounts", admin, map[string]any{
		"username":             "boss",
		"password":             "first-password",
		"role":                 "DomainAdmins",
		"must_change_password": true,
	}, nil))
	boss := api.login("boss", "first-password")

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/v1/domains", boss, nil, nil))

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/accounts/me/password", boss, map[string]string{
		"current_password": "wrong",
		"new_password":     "second-password",
	}, nil))

	var pair struct {
		AccessToken string `json:"access_token"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/accounts/me/password", boss, map[string]string{
		"current_password": "first-password",
		"new_password":     "second-password",
	}, &pair))
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/domains", pair.AccessToken, nil, nil))
}

func TestAPIServer_Lifecycle(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	t.Setenv(accounts.EnvAdminInitialPassword, testAdminPassword)
	s, err := store.NewInMemory()
	require.NoError(t, err)
	rt, _, err := runtime.InitializeFromStore(context.Background(), s, runtime.Options{})
	require.NoError(t, err)

	server, err := NewServer(APIConfig{Port: port, JWT: JWTConfig{Secret: testSecret}}, rt)
	require.NoError(t, err)
	assert.Equal(t, port, server.Port())

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- server.Start(ctx) }()

	require.Eventually(t, func() bool { return server.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, server.Stop(context.Background()), "stop is idempotent")
}
