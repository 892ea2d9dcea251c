package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/domain"
)

func testCtx() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWriteErrStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.Validationf("bad input"), http.StatusBadRequest},
		{domain.NotFoundf("zone"), http.StatusNotFound},
		{domain.Conflictf("seat taken"), http.StatusConflict},
		{domain.AccessDeniedf("wrong tenant"), http.StatusForbidden},
		{domain.Timeoutf("payment"), http.StatusGatewayTimeout},
		{errors.New("driver broke"), http.StatusInternalServerError},
		{domain.Internalf("invariant"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		c, rec := testCtx()
		require.NoError(t, writeErr(c, tc.err))
		assert.Equal(t, tc.code, rec.Code, "error %v", tc.err)
	}
}

func TestWriteErrHidesInternalDetail(t *testing.T) {
	c, rec := testCtx()
	require.NoError(t, writeErr(c, errors.New("password for db is hunter2")))
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestPathID(t *testing.T) {
	c, _ := testCtx()
	c.SetParamNames("id")
	c.SetParamValues("42")
	id, err := pathID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	c.SetParamValues("not-a-number")
	_, err = pathID(c, "id")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
