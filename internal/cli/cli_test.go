package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/config"
	"github.com/phrazzld/dayplan-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestTokenIssue(t *testing.T) {
	t.Setenv("DAYPLAN_AUTH_JWT_SECRET", testSecret)
	userID := uuid.New()

	out, _, err := runCLI(t, "token", "issue", "--user", userID.String())
	require.NoError(t, err)

	svc, err := auth.NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestTokenIssue_Errors(t *testing.T) {
	t.Setenv("DAYPLAN_AUTH_JWT_SECRET", "")

	_, _, err := runCLI(t, "token", "issue", "--user", uuid.NewString())
	assert.ErrorContains(t, err, "no JWT secret")

	_, _, err = runCLI(t, "token", "issue", "--user", "nope", "--secret", testSecret)
	assert.ErrorContains(t, err, "invalid --user")

	_, _, err = runCLI(t, "token", "issue", "--user", uuid.NewString(), "--secret", "short")
	assert.ErrorIs(t, err, auth.ErrWeakSecret)
}

func planJSON(date, text string, placeholder bool) string {
	return fmt.Sprintf(`{"id":%q,"date":%q,"plan":%q,"is_placeholder":%t,"created_at":%q,"updated_at":%q}`,
		uuid.NewString(), date, text, placeholder,
		time.Now().UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339))
}

func TestPlanShow(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(planJSON("2025-03-09", "09:00 Write report", false)))
	}))
	defer server.Close()

	out, _, err := runCLI(t, "plan", "show", "--plain", "--server", server.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, "09:00 Write report\n", out)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/api/plans/current", gotPath)

	out, _, err = runCLI(t, "plan", "show", "2025-03-09", "--server", server.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, "/api/plans/2025-03-09", gotPath)
	assert.Contains(t, out, "Write")
	assert.Contains(t, out, "report")

	_, _, err = runCLI(t, "plan", "show", "03/09/2025", "--server", server.URL)
	assert.Error(t, err)
}

func TestPlanShow_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Trace-ID", "abc123")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Plan not found"}`))
	}))
	defer server.Close()

	_, _, err := runCLI(t, "plan", "show", "--server", server.URL, "--token", "tok")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Plan not found", apiErr.Message)
	assert.Equal(t, "abc123", apiErr.TraceID)
}

func TestPlanRegenerate(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer server.Close()

	out, _, err := runCLI(t, "plan", "regenerate", "--server", server.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Contains(t, out, "Regeneration scheduled.")
}

func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/plans/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(body))
	}))
}

func TestPlanRegenerate_Wait(t *testing.T) {
	planID := uuid.New()
	server := sseServer(t, fmt.Sprintf(
		"event: started\ndata: {\"plan_id\":%q}\n\n"+
			"event: fragment\ndata: {\"text\":\"09:00 \"}\n\n"+
			"event: fragment\ndata: {\"text\":\"Write\\nreport\"}\n\n"+
			"event: done\ndata: {}\n\n", planID))
	defer server.Close()

	out, errOut, err := runCLI(t, "plan", "regenerate", "--wait", "--server", server.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, "09:00 Write\nreport\n", out)
	assert.Contains(t, errOut, planID.String())
}

func TestClient_StreamRegeneration(t *testing.T) {
	t.Run("error event", func(t *testing.T) {
		planID := uuid.New()
		server := sseServer(t, fmt.Sprintf(
			"event: started\ndata: {\"plan_id\":%q}\n\n"+
				"event: fragment\ndata: {\"text\":\"partial\"}\n\n"+
				"event: error\ndata: {\"error\":\"Plan generation failed\"}\n\n", planID))
		defer server.Close()

		var fragments []string
		got, err := NewClient(server.URL, "tok", nil).StreamRegeneration(context.Background(), func(s string) {
			fragments = append(fragments, s)
		})

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Plan generation failed", apiErr.Message)
		assert.Equal(t, planID, got)
		assert.Equal(t, []string{"partial"}, fragments)
	})

	t.Run("truncated stream", func(t *testing.T) {
		server := sseServer(t, "event: fragment\ndata: {\"text\":\"a\"}\n\n")
		defer server.Close()

		_, err := NewClient(server.URL, "tok", nil).StreamRegeneration(context.Background(), func(string) {})
		assert.ErrorIs(t, err, ErrStreamIncomplete)
	})
}

func TestMigrate_Validation(t *testing.T) {
	t.Setenv("DAYPLAN_DATABASE_URL", "")

	_, _, err := runCLI(t, "migrate", "sideways")
	assert.ErrorContains(t, err, "unknown migration command")

	_, _, err = runCLI(t, "migrate", "up")
	assert.ErrorContains(t, err, "no database")

	_, _, err = runCLI(t, "migrate")
	assert.Error(t, err)
}
