package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/internal/api"
	"github.com/clinicore/clinicore/internal/authz"
	"github.com/clinicore/clinicore/internal/identity"
	"github.com/clinicore/clinicore/internal/profile"
	"github.com/clinicore/clinicore/internal/provision"
	"github.com/clinicore/clinicore/internal/role"
)

const bootstrapEmail = "founder@clinic.test"

// --- Fakes ---

// tokenVerifier maps literal token strings to claims.
type tokenVerifier struct {
	tokens map[string]identity.Claims
}

func (v *tokenVerifier) VerifyToken(_ context.Context, token string) (*identity.Claims, error) {
	c, ok := v.tokens[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return &c, nil
}

type memStore struct {
	profiles map[string]profile.Profile
}

func (s *memStore) Get(_ context.Context, uid string) (*profile.Profile, error) {
	p, ok := s.profiles[uid]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return &p, nil
}

func (s *memStore) Put(_ context.Context, p *profile.Profile) error {
	if _, exists := s.profiles[p.UID]; exists {
		return profile.ErrDuplicateProfile
	}
	s.profiles[p.UID] = *p
	return nil
}

func (s *memStore) Delete(_ context.Context, uid string) error {
	if _, ok := s.profiles[uid]; !ok {
		return profile.ErrProfileNotFound
	}
	delete(s.profiles, uid)
	return nil
}

func (s *memStore) List(_ context.Context) ([]profile.Profile, error) {
	out := []profile.Profile{}
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out, nil
}

// --- Fixture ---

type fixture struct {
	router   http.Handler
	store    *memStore
	provider *identity.LocalProvider
}

func setup(t *testing.T) *fixture {
	t.Helper()

	store := &memStore{profiles: map[string]profile.Profile{}}
	provider := identity.NewLocalProvider(4, []byte("test-secret"), "")

	verifier := &tokenVerifier{tokens: map[string]identity.Claims{
		"super-token": {UID: "uid-super", Email: "chief@clinic.test"},
		"admin-token": {UID: "uid-admin", Email: "lead@clinic.test"},
		"staff-token": {UID: "uid-staff", Email: "nurse@clinic.test"},
		"boot-token":  {UID: "uid-boot", Email: bootstrapEmail},
	}}

	store.profiles["uid-super"] = profile.Profile{UID: "uid-super", Email: "chief@clinic.test", Role: role.RoleSuperadmin, CreatedAt: time.Now().UTC()}
	store.profiles["uid-admin"] = profile.Profile{UID: "uid-admin", Email: "lead@clinic.test", Role: role.RoleAdmin, CreatedAt: time.Now().UTC()}
	store.profiles["uid-staff"] = profile.Profile{UID: "uid-staff", Email: "nurse@clinic.test", Role: role.RoleStaff, CreatedAt: time.Now().UTC()}

	svc := provision.NewService(provider, store, authz.New(bootstrapEmail), nil)

	router := api.NewRouter(api.RouterDeps{
		Verifier:  verifier,
		Provision: svc,
		Version:   "test",
	})

	return &fixture{router: router, store: store, provider: provider}
}

type errorBody struct {
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
	Data json.RawMessage `json:"data"`
}

func (f *fixture) request(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var parsed errorBody
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &parsed)
	}
	return rec, parsed
}

func createPayload() map[string]string {
	return map[string]string{
		"email":     "new@x.com",
		"password":  "secret1",
		"firstName": "New",
		"lastName":  "User",
		"role":      "staff",
	}
}

// --- Create ---

func TestCreate_NoToken(t *testing.T) {
	f := setup(t)

	rec, body := f.request(t, http.MethodPost, "/users", "", createPayload())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "UNAUTHENTICATED", body.Error.Code)
	assert.Empty(t, f.store.profiles["uid-new"].UID, "no store may be touched")
}

func TestCreate_InvalidToken(t *testing.T) {
	f := setup(t)

	rec, body := f.request(t, http.MethodPost, "/users", "bogus", createPayload())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "UNAUTHENTICATED", body.Error.Code)
}

func TestCreate_MissingRequiredFields(t *testing.T) {
	f := setup(t)

	payload := map[string]string{"firstName": "X"}
	rec, body := f.request(t, http.MethodPost, "/users", "super-token", payload)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)

	var details []map[string]string
	require.NoError(t, json.Unmarshal(body.Error.Details, &details))
	fields := make([]string, 0, len(details))
	for _, d := range details {
		fields = append(fields, d["field"])
	}
	assert.ElementsMatch(t, []string{"email", "password", "role"}, fields)

	accounts, _ := f.provider.ListAccounts(context.Background())
	assert.Empty(t, accounts, "validation failure must precede any mutation")
}

func TestCreate_SuperadminSuccess(t *testing.T) {
	f := setup(t)

	rec, body := f.request(t, http.MethodPost, "/users", "super-token", createPayload())

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Nil(t, body.Error)

	var data map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, "new@x.com", data["email"])
	assert.Equal(t, "staff", data["role"])
	assert.Equal(t, "New", data["firstName"])
	assert.NotEmpty(t, data["uid"])

	// Both stores hold the principal.
	uid := data["uid"].(string)
	_, err := f.provider.GetAccount(context.Background(), uid)
	assert.NoError(t, err)
	_, exists := f.store.profiles[uid]
	assert.True(t, exists)
}

func TestCreate_AdminCreatingAdminForbidden(t *testing.T) {
	f := setup(t)

	payload := createPayload()
	payload["role"] = "admin"
	payload["email"] = "a@x.com"
	payload["password"] = "p1secret"

	rec, body := f.request(t, http.MethodPost, "/users", "admin-token", payload)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INSUFFICIENT_PRIVILEGE", body.Error.Code)

	accounts, _ := f.provider.ListAccounts(context.Background())
	assert.Empty(t, accounts, "denial must leave no identity-provider record")
}

func TestCreate_StaffForbidden(t *testing.T) {
	f := setup(t)

	rec, body := f.request(t, http.MethodPost, "/users", "staff-token", createPayload())

	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INSUFFICIENT_PRIVILEGE", body.Error.Code)
}

func TestCreate_BootstrapWithoutProfile(t *testing.T) {
	f := setup(t)

	payload := createPayload()
	payload["role"] = "admin"

	rec, body := f.request(t, http.MethodPost, "/users", "boot-token", payload)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Nil(t, body.Error)

	var data map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, "admin", data["role"])
}

func TestCreate_DuplicateEmailConflict(t *testing.T) {
	f := setup(t)

	rec, _ := f.request(t, http.MethodPost, "/users", "super-token", createPayload())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := f.request(t, http.MethodPost, "/users", "super-token", createPayload())
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "CONFLICT", body.Error.Code)
}

func TestCreate_MalformedJSON(t *testing.T) {
	f := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer super-token")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- List ---

func TestList_AdminSeesOnlyStaff(t *testing.T) {
	f := setup(t)

	rec, body := f.request(t, http.MethodGet, "/users", "admin-token", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, body.Error)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &items))
	for _, item := range items {
		assert.Equal(t, "staff", item["role"])
	}
}

func TestList_Unauthenticated(t *testing.T) {
	f := setup(t)

	rec, _ := f.request(t, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- Delete ---

func TestDelete_Success(t *testing.T) {
	f := setup(t)

	// Provision a staff member first, then remove it.
	rec, body := f.request(t, http.MethodPost, "/users", "super-token", createPayload())
	require.Equal(t, http.StatusCreated, rec.Code)
	var data map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &data))
	uid := data["uid"].(string)

	rec, _ = f.request(t, http.MethodDelete, "/users/"+uid, "super-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := f.provider.GetAccount(context.Background(), uid)
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
	_, exists := f.store.profiles[uid]
	assert.False(t, exists)
}

func TestDelete_NotFound(t *testing.T) {
	f := setup(t)

	rec, body := f.request(t, http.MethodDelete, "/users/uid-missing", "super-token", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestDelete_Unauthenticated(t *testing.T) {
	f := setup(t)

	rec, _ := f.request(t, http.MethodDelete, "/users/uid-staff", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, exists := f.store.profiles["uid-staff"]
	assert.True(t, exists, "no store may be touched")
}

func TestDelete_AdminCannotRemoveAdmin(t *testing.T) {
	f := setup(t)

	rec, body := f.request(t, http.MethodDelete, "/users/uid-admin", "admin-token", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INSUFFICIENT_PRIVILEGE", body.Error.Code)
}
