package generation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/planix/backend/internal/compliance"
	"github.com/planix/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpec = domain.PlanSpec{
	Description: "Two bedroom apartment with balcony",
	Area:        1200,
	Rooms:       2,
	Bathrooms:   2,
	Location:    "Pune",
	Features:    []string{"balcony", "swimming_pool"},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// provider returns a fake chat completions server answering with the given
// statuses in order; the last status repeats.
func provider(t *testing.T, content string, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		status := http.StatusOK
		if len(statuses) > 0 {
			status = statuses[min(int(n)-1, len(statuses)-1)]
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newGateway(url string, mode compliance.Mode, retries int) *Gateway {
	return NewGateway(Config{
		APIKey:    "test-key",
		BaseURL:   url,
		Timeout:   time.Second,
		Retries:   retries,
		RetryBase: time.Millisecond,
	}, compliance.NewEvaluator(mode), discardLogger())
}

func TestGenerate_Unconfigured(t *testing.T) {
	for _, key := range []string{"", PlaceholderKey, "  "} {
		g := NewGateway(Config{APIKey: key, BaseURL: "http://127.0.0.1:1"}, compliance.NewEvaluator(compliance.ModeText), discardLogger())
		assert.False(t, g.Configured())

		text, err := g.Generate(context.Background(), testSpec, Strict)
		require.NoError(t, err)
		assert.Equal(t, CannedPlan(testSpec), text)
	}
}

func TestGenerate_Success(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"A fine plan"}}]}`)
	}))
	defer srv.Close()

	g := newGateway(srv.URL, compliance.ModeText, 0)
	text, err := g.Generate(context.Background(), testSpec, Strict)
	require.NoError(t, err)
	assert.Equal(t, "A fine plan", text)

	assert.Equal(t, "deepseek-chat", got.Model)
	assert.Equal(t, 3000, got.MaxTokens)
	assert.Equal(t, 0.7, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "Two bedroom apartment with balcony")
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	srv, calls := provider(t, "recovered", http.StatusBadGateway, http.StatusTooManyRequests, http.StatusOK)
	g := newGateway(srv.URL, compliance.ModeText, 2)

	text, err := g.Generate(context.Background(), testSpec, Strict)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestGenerate_StrictPropagates(t *testing.T) {
	srv, calls := provider(t, "", http.StatusInternalServerError)
	g := newGateway(srv.URL, compliance.ModeText, 1)

	_, err := g.Generate(context.Background(), testSpec, Strict)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestGenerate_ClientErrorIsNotRetried(t *testing.T) {
	srv, calls := provider(t, "", http.StatusUnauthorized)
	g := newGateway(srv.URL, compliance.ModeText, 3)

	_, err := g.Generate(context.Background(), testSpec, Strict)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestGenerate_EmptyContentFails(t *testing.T) {
	srv, _ := provider(t, "   ")
	g := newGateway(srv.URL, compliance.ModeText, 0)

	_, err := g.Generate(context.Background(), testSpec, Strict)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerate_FallbackUsesCannedPlan(t *testing.T) {
	srv, _ := provider(t, "", http.StatusServiceUnavailable)
	g := newGateway(srv.URL, compliance.ModeText, 0)

	text, err := g.Generate(context.Background(), testSpec, Fallback)
	require.NoError(t, err)
	assert.Equal(t, CannedPlan(testSpec), text)
}

func TestGenerate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	g := newGateway(srv.URL, compliance.ModeText, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, testSpec, Strict)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestCheckCompliance(t *testing.T) {
	t.Run("text mode parses review", func(t *testing.T) {
		srv, _ := provider(t, "IS 456 reviewed.\nViolation: setback too small.")
		g := newGateway(srv.URL, compliance.ModeText, 0)

		r := g.CheckCompliance(context.Background(), "plan", testSpec)
		assert.False(t, r.OverallCompliance)
		assert.Equal(t, 75, r.ComplianceScore)
		assert.Equal(t, domain.CheckPassed, r.Checks["structuralSafety"].Status)
	})

	t.Run("offline mode skips provider", func(t *testing.T) {
		srv, calls := provider(t, "violation")
		g := newGateway(srv.URL, compliance.ModeOffline, 0)

		r := g.CheckCompliance(context.Background(), "plan", testSpec)
		assert.Equal(t, 95, r.ComplianceScore)
		assert.Zero(t, atomic.LoadInt32(calls))
	})

	t.Run("provider failure yields failure report", func(t *testing.T) {
		srv, _ := provider(t, "", http.StatusInternalServerError)
		g := newGateway(srv.URL, compliance.ModeText, 0)

		assert.Equal(t, compliance.Failure(), g.CheckCompliance(context.Background(), "plan", testSpec))
	})
}

func TestCannedPlan(t *testing.T) {
	text := CannedPlan(testSpec)
	assert.Contains(t, text, "FLOOR PLAN DESIGN - Two bedroom apartment with balcony")
	assert.Contains(t, text, "This 1200 sq ft floor plan features 2 bedrooms and 2 bathrooms, designed for Pune conditions.")
	assert.Contains(t, text, "- swimming pool\n")
	assert.Contains(t, text, "Additional Bedroom(s)")

	def := CannedPlan(domain.PlanSpec{Description: "Tiny studio flat"})
	assert.Contains(t, def, "This 1000 sq ft floor plan features 2 bedrooms and 1 bathrooms, designed for Indian urban conditions.")
	assert.Contains(t, def, "- Standard fixtures and fittings")
	assert.Equal(t, def, CannedPlan(domain.PlanSpec{Description: "Tiny studio flat"}))
}
