package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
)

type amountBody struct {
	Amount decimal.Decimal  `json:"amount" validate:"money"`
	Rate   *decimal.Decimal `json:"rate,omitempty" validate:"omitempty,rate"`
	Method string           `json:"method" validate:"required,oneof=card bank"`
}

func TestDecodeJSONBodyValidatesMoney(t *testing.T) {
	cases := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid string amount", `{"amount":"100.50","method":"card"}`, true},
		{"valid number amount", `{"amount":2500,"method":"bank"}`, true},
		{"three decimals", `{"amount":"1.005","method":"card"}`, false},
		{"zero", `{"amount":"0","method":"card"}`, false},
		{"negative", `{"amount":"-10","method":"card"}`, false},
		{"bad rate", `{"amount":"10","rate":"1.2","method":"card"}`, false},
		{"bad method", `{"amount":"10","method":"cash"}`, false},
		{"unknown field", `{"amount":"10","method":"card","extra":1}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dest amountBody
			err := DecodeJSONBody(req, &dest)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestDecodeOptionalJSONBody(t *testing.T) {
	type notes struct {
		Notes string `json:"notes" validate:"max=5"`
	}

	var empty notes
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.NoError(t, DecodeOptionalJSONBody(req, &empty))
	assert.Empty(t, empty.Notes)

	var long notes
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"notes":"too long"}`))
	err := DecodeOptionalJSONBody(req, &long)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.Error(t, DecodeJSONBody(req, &empty))
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&cursor=abc", nil)
	params, err := ParsePagination(req)
	require.NoError(t, err)
	assert.Equal(t, 10, params.Limit)
	assert.Equal(t, "abc", params.Cursor)

	req = httptest.NewRequest(http.MethodGet, "/?limit=1000", nil)
	_, err = ParsePagination(req)
	assert.Error(t, err)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("id", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseUUIDParam(req, "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "missing")
	assert.Error(t, err)
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"trims", "  refund please  ", 0, "refund please"},
		{"drops control chars", "bad\x00 input\x07", 0, "bad input"},
		{"keeps newlines", "line one\nline two", 0, "line one\nline two"},
		{"cuts on rune boundary", "Loyiha ishlamayapti", 6, "Loyiha"},
		{"cyrillic", "Проект не работает", 6, "Проект"},
	}
	for _, tt := range tests {
		if got := SanitizeString(tt.input, tt.max); got != tt.want {
			t.Fatalf("%s: got %q want %q", tt.name, got, tt.want)
		}
	}
}
