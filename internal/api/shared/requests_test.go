package shared

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodeTarget struct {
	Title   string `json:"title"`
	Minutes int    `json:"minutes"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     bool
		errIs       error
		errContains string
	}{
		{
			name: "valid json",
			body: `{"title": "write report", "minutes": 30}`,
		},
		{
			name:        "invalid json",
			body:        `{"title": "x",}`,
			wantErr:     true,
			errContains: "invalid character",
		},
		{
			name:    "empty body",
			body:    "",
			wantErr: true,
			errIs:   ErrEmptyBody,
		},
		{
			name:        "unknown field",
			body:        `{"title": "x", "priority": 1}`,
			wantErr:     true,
			errContains: "unknown field",
		},
		{
			name:        "trailing object",
			body:        `{"title": "x"}{"title": "y"}`,
			wantErr:     true,
			errContains: "single JSON object",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tc.body))
			w := httptest.NewRecorder()

			var target decodeTarget
			err := DecodeJSON(w, req, &target)

			if !tc.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "write report", target.Title)
				assert.Equal(t, 30, target.Minutes)
				return
			}
			require.Error(t, err)
			if tc.errIs != nil {
				assert.ErrorIs(t, err, tc.errIs)
			}
			if tc.errContains != "" {
				assert.Contains(t, err.Error(), tc.errContains)
			}
		})
	}
}

func TestDecodeJSONBodyTooLarge(t *testing.T) {
	body := `{"title": "` + strings.Repeat("a", MaxRequestBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	w := httptest.NewRecorder()

	var target decodeTarget
	err := DecodeJSON(w, req, &target)

	var maxErr *http.MaxBytesError
	assert.True(t, errors.As(err, &maxErr), "expected MaxBytesError, got %v", err)
}

type selfValidating struct {
	err error
}

func (s selfValidating) Validate() error { return s.err }

type taggedRequest struct {
	Title            string `json:"title"             validate:"required,max=10"`
	EstimatedMinutes *int   `json:"estimated_minutes" validate:"omitempty,min=1"`
}

func TestValidateRequest(t *testing.T) {
	t.Run("self validating", func(t *testing.T) {
		sentinel := errors.New("custom")
		assert.ErrorIs(t, ValidateRequest(selfValidating{err: sentinel}), sentinel)
		assert.NoError(t, ValidateRequest(selfValidating{}))
	})

	t.Run("valid tags", func(t *testing.T) {
		minutes := 15
		assert.NoError(t, ValidateRequest(&taggedRequest{Title: "short", EstimatedMinutes: &minutes}))
		assert.NoError(t, ValidateRequest(&taggedRequest{Title: "short"}))
	})

	t.Run("field errors use json names", func(t *testing.T) {
		zero := 0
		err := ValidateRequest(&taggedRequest{Title: "", EstimatedMinutes: &zero})
		require.Error(t, err)

		var fieldErrs validator.ValidationErrors
		require.True(t, errors.As(err, &fieldErrs))
		require.Len(t, fieldErrs, 2)
		assert.Equal(t, "title", fieldErrs[0].Field())
		assert.Equal(t, "required", fieldErrs[0].Tag())
		assert.Equal(t, "estimated_minutes", fieldErrs[1].Field())
		assert.Equal(t, "min", fieldErrs[1].Tag())
	})
}
