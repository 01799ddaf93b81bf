package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebrew/pos-backend/pkg/auth"
	"github.com/codebrew/pos-backend/pkg/config"
	"github.com/codebrew/pos-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "pos-identity"}

func mintTestToken(t *testing.T, role enums.Role, branchID *uuid.UUID) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := auth.MintAccessToken(testJWT, time.Now(), time.Hour, auth.AccessTokenPayload{
		UserID:   userID,
		Role:     role,
		BranchID: branchID,
	})
	require.NoError(t, err)
	return token, userID
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthSeedsActor(t *testing.T) {
	branchID := uuid.New()
	token, userID := mintTestToken(t, enums.RoleCashier, &branchID)

	var captured Actor
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		captured = actor
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID, captured.UserID)
	assert.Equal(t, enums.RoleCashier, captured.Role)
	require.NotNil(t, captured.BranchID)
	assert.Equal(t, branchID, *captured.BranchID)
}

func TestRequireRoles(t *testing.T) {
	branchID := uuid.New()
	cases := []struct {
		name  string
		actor *Actor
		want  int
	}{
		{"no actor", nil, http.StatusUnauthorized},
		{"cashier denied", &Actor{UserID: uuid.New(), Role: enums.RoleCashier, BranchID: &branchID}, http.StatusForbidden},
		{"officer allowed", &Actor{UserID: uuid.New(), Role: enums.RoleBranchOfficer, BranchID: &branchID}, http.StatusOK},
		{"admin allowed", &Actor{UserID: uuid.New(), Role: enums.RoleAdmin}, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.actor != nil {
				req = req.WithContext(WithActor(req.Context(), *tc.actor))
			}
			resp := httptest.NewRecorder()
			RequireRoles(nil, enums.RoleAdmin, enums.RoleBranchOfficer)(okHandler()).ServeHTTP(resp, req)
			assert.Equal(t, tc.want, resp.Code)
		})
	}
}

func TestRequireBranch(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithActor(req.Context(), Actor{UserID: uuid.New(), Role: enums.RoleCashier}))
	resp := httptest.NewRecorder()
	RequireBranch(nil)(okHandler()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	branchID := uuid.New()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithActor(req.Context(), Actor{UserID: uuid.New(), Role: enums.RoleCashier, BranchID: &branchID}))
	resp = httptest.NewRecorder()
	RequireBranch(nil)(okHandler()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestActorOwnsBranch(t *testing.T) {
	branchID := uuid.New()
	actor := Actor{Role: enums.RoleBranchOfficer, BranchID: &branchID}
	assert.True(t, actor.OwnsBranch(branchID))
	assert.False(t, actor.OwnsBranch(uuid.New()))
	assert.False(t, Actor{Role: enums.RoleAdmin}.OwnsBranch(branchID))
}
