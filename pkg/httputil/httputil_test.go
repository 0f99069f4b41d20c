package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/i18n"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]int{"count": 3})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestError_Localized(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(i18n.WithLocale(req.Context(), i18n.LocaleEnglish))
	rec := httptest.NewRecorder()

	Error(rec, req, errors.NotFound("order"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "Order not found", resp.Error.Message)
}

func TestError_PlainErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, rec).Error.Code)
}

type itemReq struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type batchReq struct {
	Supplier string    `json:"supplier" validate:"required"`
	Items    []itemReq `json:"items" validate:"min=1,dive"`
}

func TestValidate(t *testing.T) {
	err := Validate(batchReq{Items: []itemReq{{Name: "", Quantity: 0}}})

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "this field is required", appErr.Details["supplier"])
	assert.Equal(t, "this field is required", appErr.Details["items[0].name"])
	assert.Equal(t, "must be greater than 0", appErr.Details["items[0].quantity"])

	assert.NoError(t, Validate(batchReq{Supplier: "CHIFAPHARM", Items: []itemReq{{Name: "X", Quantity: 1}}}))
}

func TestDecodeJSON(t *testing.T) {
	var v batchReq
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"supplier":`))
	err := DecodeJSON(req, &v)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(0.001, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRequestIDAndRecoverer(t *testing.T) {
	h := RequestID(Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r.Context()))
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	Attachment(rec, "BKP01022025.json", "application/json", []byte(`{}`))

	assert.Equal(t, `attachment; filename="BKP01022025.json"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "{}", rec.Body.String())
}
