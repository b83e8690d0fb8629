package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, resp
}

func ok(context.Context) error { return nil }

func TestLiveness(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("redis", func(context.Context) error { return errors.New("down") })

	code, resp := serve(t, h.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name        string
		redis       error
		kafka       error
		wantCode    int
		wantOverall Status
	}{
		{"all up", nil, nil, http.StatusOK, StatusUp},
		{"non-critical down", nil, errors.New("broker unreachable"), http.StatusOK, StatusDegraded},
		{"critical down", errors.New("connection refused"), nil, http.StatusServiceUnavailable, StatusDown},
		{"both down", errors.New("connection refused"), errors.New("broker unreachable"), http.StatusServiceUnavailable, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			h.RegisterCritical("redis", func(context.Context) error { return tt.redis })
			h.RegisterNonCritical("kafka", func(context.Context) error { return tt.kafka })

			code, resp := serve(t, h.ReadinessHandler())
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantOverall, resp.Status)
			assert.True(t, resp.Checks["redis"].Critical)
			assert.False(t, resp.Checks["kafka"].Critical)
			if tt.redis != nil {
				assert.Equal(t, tt.redis.Error(), resp.Checks["redis"].Error)
			}
		})
	}
}

func TestReadiness_NoChecks(t *testing.T) {
	code, resp := serve(t, NewHandler().ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestRegister_Overwrites(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("redis", func(context.Context) error { return errors.New("fail") })
	h.RegisterCritical("redis", ok)

	assert.Equal(t, []string{"redis"}, h.Names())
	assert.Equal(t, StatusUp, h.Check(context.Background()).Status)
}

func TestCheck_TimesOut(t *testing.T) {
	h := NewHandler()
	h.timeout = 20 * time.Millisecond
	h.RegisterCritical("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	resp := h.Check(context.Background())
	assert.Equal(t, StatusDown, resp.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["slow"].Error)
}
