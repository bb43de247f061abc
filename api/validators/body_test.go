package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/wilffren/libronova/pkg/errors"
)

type loanBody struct {
	BookID string `json:"book_id" validate:"required,uuid"`
	Days   *int   `json:"loan_period_days" validate:"omitempty,min=1"`
}

func decode(t *testing.T, body string) (loanBody, *pkgerrors.Error) {
	t.Helper()
	var dest loanBody
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(body))
	err := DecodeJSONBody(req, &dest)
	return dest, pkgerrors.As(err)
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	dest, err := decode(t, `{"book_id":"1b4e28ba-2fa1-11d2-883f-0016d3cca427","loan_period_days":7}`)
	require.Nil(t, err)
	require.NotNil(t, dest.Days)
	assert.Equal(t, 7, *dest.Days)
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"empty", ``, "request body is required"},
		{"unknown field", `{"book_id":"1b4e28ba-2fa1-11d2-883f-0016d3cca427","extra":1}`, "invalid request body"},
		{"trailing object", `{"book_id":"1b4e28ba-2fa1-11d2-883f-0016d3cca427"}{}`, "invalid request body"},
		{"too large", `{"book_id":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, "request body too large"},
		{"failed tags", `{"book_id":"nope","loan_period_days":0}`, "validation failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decode(t, tc.body)
			require.NotNil(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, err.Code())
			assert.Equal(t, tc.message, err.Message())
		})
	}
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	_, err := decode(t, `{"book_id":"nope","loan_period_days":0}`)
	require.NotNil(t, err)
	details, ok := err.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a uuid", details["book_id"])
	assert.Equal(t, "must be at least 1", details["loan_period_days"])
}
