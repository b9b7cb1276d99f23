package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOutOfStock = errors.New("out of stock")

func respond(t *testing.T, r *Responder, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	r.RespondError(c, err)
	return rec
}

func TestResponder_MapperWins(t *testing.T) {
	r := NewChainedResponder("https://backoffice.example", func(err error) (ProblemDetail, bool) {
		if errors.Is(err, errOutOfStock) {
			return ErrInsufficientStock.WithExtension("kind", "insufficient_stock"), true
		}
		return ProblemDetail{}, false
	})

	rec := respond(t, r, errOutOfStock)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Retry-After"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://backoffice.example"+TypeInsufficientStock, body.Type)
	assert.Equal(t, "/api/orders", body.Instance)
	assert.Equal(t, "insufficient_stock", body.Extensions["kind"])
}

func TestResponder_RetryableSetsRetryAfter(t *testing.T) {
	r := NewChainedResponder("")
	rec := respond(t, r, ErrStockRaceLost.WithExtension(ExtensionRetryable, true))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestResponder_UnknownErrorIsInternal(t *testing.T) {
	rec := respond(t, NewChainedResponder(""), errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWithExtension_LeavesTemplateUntouched(t *testing.T) {
	first := ErrConflict.WithExtension("kind", "a")
	second := first.WithExtension("kind", "b")
	assert.Nil(t, ErrConflict.Extensions)
	assert.Equal(t, "a", first.Extensions["kind"])
	assert.Equal(t, "b", second.Extensions["kind"])
}
