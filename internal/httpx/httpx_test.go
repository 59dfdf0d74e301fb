package httpx

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	var v struct {
		Role string `json:"role"`
	}
	require.NoError(t, DecodeJSON(strings.NewReader(`{"role":"Admin"}`), &v))
	assert.Equal(t, "Admin", v.Role)

	assert.ErrorIs(t, DecodeJSON(strings.NewReader(`{"role":"Admin"}{}`), &v), ErrTrailingData)
	assert.Error(t, DecodeJSON(strings.NewReader(`{"other":1}`), &v))
}

func TestReadBodyLimit(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader("12345"))
	_, err := ReadBody(r, 4)
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	r = httptest.NewRequest("POST", "/", strings.NewReader("1234"))
	data, err := ReadBody(r, 4)
	require.NoError(t, err)
	assert.Equal(t, "1234", string(data))
}

func TestConfirmed(t *testing.T) {
	assert.True(t, Confirmed(httptest.NewRequest("POST", "/?confirm=true", nil)))
	assert.True(t, Confirmed(httptest.NewRequest("POST", "/?confirm=1", nil)))
	assert.False(t, Confirmed(httptest.NewRequest("POST", "/?confirm=no", nil)))
	assert.False(t, Confirmed(httptest.NewRequest("POST", "/", nil)))
}

func TestParseLimitOffset(t *testing.T) {
	limit, offset, err := ParseLimitOffset(url.Values{}, 50, 200)
	require.NoError(t, err)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)

	limit, offset, err = ParseLimitOffset(url.Values{"limit": {"500"}, "offset": {"10"}}, 50, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, limit)
	assert.Equal(t, 10, offset)

	_, _, err = ParseLimitOffset(url.Values{"limit": {"0"}}, 50, 200)
	assert.Error(t, err)
	_, _, err = ParseLimitOffset(url.Values{"offset": {"-1"}}, 50, 200)
	assert.Error(t, err)
}
