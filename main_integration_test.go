package main_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"idleassets/api/internal/models"
	"idleassets/api/internal/services"
)

const (
	testAppBinary         = "./idleassets_test_app"
	testAppPort           = "8089"
	testServiceApiPortApi = "8091"
	testServiceApiPortBg  = "8092"
	testAppURL            = "http://localhost:" + testAppPort
	testServiceApiURL     = "http://localhost:" + testServiceApiPortApi
	startupTimeout        = 15 * time.Second
	pingEndpoint          = testAppURL + "/v1/ping"
)

// TestMain builds the binary and runs an API process and a background worker
// against the MongoDB and Redis configured in the environment. Set
// RUN_INTEGRATION=1 to enable it.
func TestMain(m *testing.M) {
	if os.Getenv("RUN_INTEGRATION") != "1" {
		log.Println("RUN_INTEGRATION not set, skipping integration tests.")
		return
	}
	defer func() {
		log.Println("Integration Test Teardown: Cleaning up test binary...")
		_ = os.Remove(testAppBinary)
	}()

	_ = godotenv.Load()
	log.Println("Integration Test Setup: Building application...")
	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		log.Printf("Failed to build application: %v\nOutput:\n%s", err, string(out))
		os.Exit(1)
	}

	commonEnv := []string{
		"JWT_SECRET=integration-test-secret",
		"GIN_MODE=release",
		"MOCK_SERVICES=true",
		"SMTP_FROM_ADDRESS=test@example.com",
		"MONGO_DB_NAME=idleassets_integration",
	}

	apiCmd := exec.Command(testAppBinary, "-m", "api")
	apiCmd.Env = append(append(os.Environ(), commonEnv...),
		"API_PORT="+testAppPort,
		"SERVICE_API_PORT="+testServiceApiPortApi,
		"RATE_LIMIT_SOFT_BUCKET_SIZE=50",
		"RATE_LIMIT_SOFT_REFILL_RATE=50",
		"RATE_LIMIT_HARD_BUCKET_SIZE=100",
		"RATE_LIMIT_HARD_REFILL_RATE=100",
	)
	apiCmd.Stdout, apiCmd.Stderr = os.Stdout, os.Stderr

	bgCmd := exec.Command(testAppBinary, "-m", "bg")
	bgCmd.Env = append(append(os.Environ(), commonEnv...),
		"SERVICE_API_PORT="+testServiceApiPortBg,
	)
	bgCmd.Stdout, bgCmd.Stderr = os.Stdout, os.Stderr

	if err := apiCmd.Start(); err != nil {
		log.Printf("Failed to start API process: %v", err)
		os.Exit(1)
	}
	if err := bgCmd.Start(); err != nil {
		_ = apiCmd.Process.Kill()
		log.Printf("Failed to start Background Worker process: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Println("Integration Test Teardown: Shutting down application processes...")
		for _, cmd := range []*exec.Cmd{bgCmd, apiCmd} {
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				_ = cmd.Process.Kill()
				continue
			}
			_, _ = cmd.Process.Wait()
		}
	}()

	if !waitForPing() {
		log.Printf("Application failed to start within %v", startupTimeout)
		return
	}
	// The worker has no health endpoint.
	time.Sleep(2 * time.Second)

	exitCode := m.Run()
	log.Printf("Integration Test Teardown: Tests finished with exit code %d.", exitCode)
}

func waitForPing() bool {
	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(pingEndpoint)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK && string(body) == "pong" {
				return true
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

// apiRequest sends a JSON request to the main API and decodes the response
// into out when it is non-nil.
func apiRequest(t *testing.T, method, path, token string, body, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, testAppURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "%s %s failed", method, path)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(raw) > 0 && resp.StatusCode < 300 {
		require.NoError(t, json.Unmarshal(raw, out), "decoding %s %s: %s", method, path, raw)
	}
	return resp.StatusCode
}

// getEmailFromServiceAPI fetches the last email of a template sent to to.
func getEmailFromServiceAPI(t *testing.T, templateID, to string) map[string]interface{} {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"method":    "getTestEmail",
		"arguments": []string{templateID, to},
	})
	require.NoError(t, err)

	var body struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
		Error   string                 `json:"error"`
	}
	require.Eventually(t, func() bool {
		resp, err := http.Post(testServiceApiURL+"/api", "application/json", bytes.NewReader(payload))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		return json.NewDecoder(resp.Body).Decode(&body) == nil && body.Success
	}, 15*time.Second, 500*time.Millisecond, "email %s to %s never arrived", templateID, to)
	return body.Data
}

type authResponse struct {
	Token   string         `json:"token"`
	User    models.User    `json:"user"`
	Profile models.Profile `json:"profile"`
}

func signUp(t *testing.T, name string) authResponse {
	t.Helper()
	email := fmt.Sprintf("%s_%d@example.com", strings.ToLower(name), time.Now().UnixNano())
	var auth authResponse
	status := apiRequest(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email":     email,
		"password":  "StrongP@ssw0rd123",
		"full_name": name,
	}, &auth)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, auth.Token)
	return auth
}

func TestIntegration_Ping(t *testing.T) {
	resp, err := http.Get(pingEndpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

func TestIntegration_SignUpSendsWelcomeEmail(t *testing.T) {
	auth := signUp(t, "Ada")

	emailData := getEmailFromServiceAPI(t, services.TemplateWelcome, auth.User.Email)
	assert.Equal(t, "Welcome to IdleAssets", emailData["subject"])
	assert.Contains(t, emailData["body"], "Ada")

	var me models.User
	require.Equal(t, http.StatusOK, apiRequest(t, http.MethodGet, "/v1/auth/user", auth.Token, nil, &me))
	assert.Equal(t, auth.User.ID, me.ID)

	require.Equal(t, http.StatusNoContent, apiRequest(t, http.MethodPost, "/v1/auth/signout", auth.Token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, apiRequest(t, http.MethodGet, "/v1/auth/user", auth.Token, nil, nil))
}

func TestIntegration_RentalLifecycle(t *testing.T) {
	owner := signUp(t, "Owner")
	renter := signUp(t, "Renter")

	var listing models.Listing
	require.Equal(t, http.StatusCreated, apiRequest(t, http.MethodPost, "/v1/listings", owner.Token, map[string]interface{}{
		"title":          "Cordless drill",
		"category_id":    "tools-equipment",
		"price_per_day":  12.5,
		"deposit_amount": 40,
	}, &listing))
	require.NotEmpty(t, listing.ID)

	var found []models.Listing
	require.Equal(t, http.StatusOK, apiRequest(t, http.MethodGet, "/v1/listings?owner_id="+owner.User.ID, "", nil, &found))
	require.Len(t, found, 1)

	start := time.Now().AddDate(0, 0, 3).Format("2006-01-02")
	end := time.Now().AddDate(0, 0, 5).Format("2006-01-02")

	assert.Equal(t, http.StatusUnprocessableEntity, apiRequest(t, http.MethodPost, "/v1/rentals", owner.Token, map[string]string{
		"listing_id": listing.ID, "start_date": start, "end_date": end,
	}, nil), "owners cannot rent their own listing")

	var rental models.Rental
	require.Equal(t, http.StatusCreated, apiRequest(t, http.MethodPost, "/v1/rentals", renter.Token, map[string]string{
		"listing_id": listing.ID, "start_date": start, "end_date": end,
	}, &rental))
	assert.Equal(t, models.RentalRequested, rental.Status)

	statusPath := "/v1/rentals/" + rental.ID + "/status"
	assert.Equal(t, http.StatusUnprocessableEntity,
		apiRequest(t, http.MethodPatch, statusPath, renter.Token, map[string]string{"status": "approved"}, nil),
		"the renter cannot approve")

	var approved models.Rental
	require.Equal(t, http.StatusOK,
		apiRequest(t, http.MethodPatch, statusPath, owner.Token, map[string]string{"status": "approved"}, &approved))
	assert.Equal(t, models.RentalApproved, approved.Status)

	assert.Equal(t, http.StatusUnprocessableEntity,
		apiRequest(t, http.MethodPatch, statusPath, owner.Token, map[string]string{"status": "approved"}, nil),
		"approved is not reachable from approved")

	emailData := getEmailFromServiceAPI(t, services.TemplateRentalStatusChanged, renter.User.Email)
	assert.Contains(t, emailData["subject"], "Cordless drill")

	assert.Eventually(t, func() bool {
		var list []models.Notification
		if apiRequest(t, http.MethodGet, "/v1/notifications", renter.Token, nil, &list) != http.StatusOK {
			return false
		}
		for _, n := range list {
			if !n.IsRead && n.Type == models.NotificationRentalUpdated && n.Title == "Rental approved" {
				return true
			}
		}
		return false
	}, 10*time.Second, 250*time.Millisecond, "renter never got the approval notification")

	var lending []models.Rental
	require.Equal(t, http.StatusOK, apiRequest(t, http.MethodGet, "/v1/rentals?role=lending", owner.Token, nil, &lending))
	require.Len(t, lending, 1)
	assert.Equal(t, rental.ID, lending[0].ID)
}

func TestIntegration_Messaging(t *testing.T) {
	owner := signUp(t, "Lender")
	renter := signUp(t, "Borrower")

	var listing models.Listing
	require.Equal(t, http.StatusCreated, apiRequest(t, http.MethodPost, "/v1/listings", owner.Token, map[string]interface{}{
		"title":         "Camping tent",
		"category_id":   "outdoor-sports",
		"price_per_day": 20,
	}, &listing))

	var conv models.Conversation
	require.Equal(t, http.StatusCreated, apiRequest(t, http.MethodPost, "/v1/conversations", renter.Token, map[string]string{
		"listing_id":   listing.ID,
		"recipient_id": owner.User.ID,
		"content":      "Is it free next weekend?",
	}, &conv))

	var messages []models.Message
	require.Equal(t, http.StatusOK, apiRequest(t, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages", owner.Token, nil, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "Is it free next weekend?", messages[0].Content)

	outsider := signUp(t, "Outsider")
	assert.Equal(t, http.StatusForbidden,
		apiRequest(t, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages", outsider.Token, nil, nil))

	var marked map[string]int
	require.Equal(t, http.StatusOK, apiRequest(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/read", owner.Token, nil, &marked))
	assert.Equal(t, 1, marked["marked"])
}
