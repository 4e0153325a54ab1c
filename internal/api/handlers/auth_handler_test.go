package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"idleassets/api/internal/api/handlers"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/auth"
	"idleassets/api/internal/models"
	"idleassets/api/internal/services"
	"idleassets/api/internal/tasks"
)

func newAuthRouter(profiles *MockProfileService, revoker *MockRevoker, enq *MockEnqueuer) http.Handler {
	cfg := testConfig()
	h := handlers.NewAuthHandler(cfg, profiles, revoker, enq)
	r := newRouter()
	r.POST("/v1/auth/signup", h.SignUp)
	r.POST("/v1/auth/signin", h.SignIn)
	authed := r.Group("/v1", middleware.AuthMiddleware(cfg.JwtSecret, revoker))
	authed.POST("/auth/signout", h.SignOut)
	authed.GET("/auth/user", h.CurrentUser)
	return r
}

func testProfile() *models.Profile {
	p := &models.Profile{Email: "ada@example.com", FullName: "Ada Lovelace"}
	p.ID = testUserID
	return p
}

func TestAuthHandler_SignUp(t *testing.T) {
	profiles := new(MockProfileService)
	enq := new(MockEnqueuer)
	r := newAuthRouter(profiles, new(MockRevoker), enq)

	profiles.On("CreateProfile", mock.Anything, "ada@example.com", "correct horse", "Ada Lovelace").Return(testProfile(), nil)
	enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var p tasks.EmailTaskPayload
		return task.Type() == tasks.TypeEmailDelivery &&
			json.Unmarshal(task.Payload(), &p) == nil &&
			p.TemplateID == services.TemplateWelcome && p.To == "ada@example.com"
	})).Return(&asynq.TaskInfo{ID: "t1"}, nil)

	w := doJSON(r, http.MethodPost, "/v1/auth/signup", handlers.SignUpRequest{
		Email: "ada@example.com", Password: "correct horse", FullName: "Ada Lovelace",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var resp handlers.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testUserID, resp.User.ID)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)

	claims, err := auth.ValidateJWT(resp.Token, testConfig().JwtSecret)
	require.NoError(t, err)
	assert.Equal(t, testUserID, claims.UserID)
	profiles.AssertExpectations(t)
	enq.AssertExpectations(t)
}

func TestAuthHandler_SignUp_QueueFailureStillSucceeds(t *testing.T) {
	profiles := new(MockProfileService)
	enq := new(MockEnqueuer)
	r := newAuthRouter(profiles, new(MockRevoker), enq)

	profiles.On("CreateProfile", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testProfile(), nil)
	enq.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	w := doJSON(r, http.MethodPost, "/v1/auth/signup", handlers.SignUpRequest{
		Email: "ada@example.com", Password: "correct horse", FullName: "Ada Lovelace",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuthHandler_SignUp_Errors(t *testing.T) {
	profiles := new(MockProfileService)
	r := newAuthRouter(profiles, new(MockRevoker), new(MockEnqueuer))

	w := doJSON(r, http.MethodPost, "/v1/auth/signup", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	profiles.On("CreateProfile", mock.Anything, "taken@example.com", mock.Anything, mock.Anything).Return(nil, services.ErrEmailTaken)
	w = doJSON(r, http.MethodPost, "/v1/auth/signup", handlers.SignUpRequest{
		Email: "taken@example.com", Password: "correct horse", FullName: "Someone",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.ErrEmailTaken.Error(), errorOf(t, w))
}

func TestAuthHandler_SignIn(t *testing.T) {
	profiles := new(MockProfileService)
	r := newAuthRouter(profiles, new(MockRevoker), new(MockEnqueuer))

	profiles.On("Authenticate", mock.Anything, "ada@example.com", "correct horse").Return(testProfile(), nil)
	profiles.On("Authenticate", mock.Anything, "ada@example.com", "wrong").Return(nil, services.ErrInvalidCredentials)

	w := doJSON(r, http.MethodPost, "/v1/auth/signin", handlers.SignInRequest{Email: "ada@example.com", Password: "correct horse"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/auth/signin", handlers.SignInRequest{Email: "ada@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, services.ErrInvalidCredentials.Error(), errorOf(t, w))
}

func TestAuthHandler_SignOutRevokesToken(t *testing.T) {
	revoker := new(MockRevoker)
	r := newAuthRouter(new(MockProfileService), revoker, new(MockEnqueuer))

	token, claims, err := auth.GenerateJWT(testUserID, "ada@example.com", testConfig().JwtSecret, time.Hour)
	require.NoError(t, err)

	revoker.On("IsRevoked", mock.Anything, claims.ID).Return(false, nil)
	revoker.On("Revoke", mock.Anything, claims.ID, mock.MatchedBy(func(until time.Time) bool {
		return until.Equal(claims.ExpiresAt.Time)
	})).Return(nil)

	req, _ := http.NewRequest(http.MethodPost, "/v1/auth/signout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	revoker.AssertExpectations(t)
}

func TestAuthHandler_CurrentUser(t *testing.T) {
	revoker := new(MockRevoker)
	r := newAuthRouter(new(MockProfileService), revoker, new(MockEnqueuer))

	token, claims, err := auth.GenerateJWT(testUserID, "ada@example.com", testConfig().JwtSecret, time.Hour)
	require.NoError(t, err)
	revoker.On("IsRevoked", mock.Anything, claims.ID).Return(false, nil)

	req, _ := http.NewRequest(http.MethodGet, "/v1/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, models.User{ID: testUserID, Email: "ada@example.com"}, user)
}
