package back

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsPulse/pkg/xerr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func run(data interface{}, err error) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Result(c, data, err)
	return w
}

func TestResultSuccessWritesDataVerbatim(t *testing.T) {
	w := run(gin.H{"sessionId": "abc"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessionId":"abc"}`, w.Body.String())
}

func TestResultMapsCodeErrorToStatus(t *testing.T) {
	w := run(nil, fmt.Errorf("wrapped: %w", xerr.ErrClientInput))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, xerr.ErrClientInput.Message, body.Error)
}

func TestResultHidesUnknownErrors(t *testing.T) {
	w := run(nil, errors.New("dial tcp: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
