package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ctp/internal/apierr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestParsePositiveIDAcceptsValidID(t *testing.T) {
	c, w := newTestContext()
	id, ok := ParsePositiveID(c, "42", "course_id")
	assert.True(t, ok)
	assert.Equal(t, 42, id)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParsePositiveIDRejectsNonNumeric(t *testing.T) {
	c, w := newTestContext()
	_, ok := ParsePositiveID(c, "abc", "course_id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePositiveIDRejectsZeroAndNegative(t *testing.T) {
	for _, raw := range []string{"0", "-1"} {
		c, w := newTestContext()
		_, ok := ParsePositiveID(c, raw, "course_id")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestRenderErrorWritesStatusAndAborts(t *testing.T) {
	c, w := newTestContext()
	RenderError(c, false, apierr.New(apierr.AuthzForbidden, nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, c.IsAborted())
}
