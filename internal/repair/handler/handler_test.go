package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfantasy/nimo-repair/internal/shared/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func run(fn func(c *gin.Context), target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	fn(c)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func TestFail_MapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
		msg    string
	}{
		{apperr.Validationf("bad input"), 400, 40000, "bad input"},
		{apperr.Operationf("not allowed"), 409, 40900, "not allowed"},
		{apperr.NotFoundf("missing"), 404, 40400, "missing"},
		{apperr.External("smtp down", errors.New("dial tcp")), 502, 50200, "smtp down"},
		{errors.New("pq: connection reset"), 500, 50000, "Internal server error"},
	}
	for _, tc := range cases {
		w := run(func(c *gin.Context) { Fail(c, tc.err) }, "/")
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		r := decode(t, w)
		assert.Equal(t, tc.code, r.Code)
		assert.Equal(t, tc.msg, r.Message)
	}
}

func TestFail_WrappedErrorKeepsKind(t *testing.T) {
	err := errors.Join(errors.New("context"), apperr.Operationf("locked"))
	w := run(func(c *gin.Context) { Fail(c, err) }, "/")
	assert.Equal(t, 409, w.Code)
}

func TestBindFailed_ListsFields(t *testing.T) {
	type body struct {
		Name   string `json:"name" binding:"required"`
		Serial string `json:"serial" binding:"required"`
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	c.Request.Header.Set("Content-Type", "application/json")

	var b body
	err := c.ShouldBindJSON(&b)
	require.Error(t, err)
	BindFailed(c, err)

	assert.Equal(t, 400, w.Code)
	r := decode(t, w)
	assert.Equal(t, 40001, r.Code)
	assert.Contains(t, r.Message, "Name")
	assert.Contains(t, r.Message, "Serial")
}

func TestBindFailed_MalformedJSON(t *testing.T) {
	w := run(func(c *gin.Context) { BindFailed(c, errors.New("unexpected EOF")) }, "/")
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, 40000, decode(t, w).Code)
}

func TestGetPagination(t *testing.T) {
	tests := []struct {
		query    string
		page     int
		pageSize int
	}{
		{"", 1, 20},
		{"?page=3&page_size=50", 3, 50},
		{"?page=0&page_size=1000", 1, 20},
		{"?page=x&page_size=y", 1, 20},
	}
	for _, tt := range tests {
		var page, size int
		run(func(c *gin.Context) { page, size = GetPagination(c) }, "/"+tt.query)
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.pageSize, size, tt.query)
	}
}

func TestList_TotalPages(t *testing.T) {
	w := run(func(c *gin.Context) { List(c, []string{"a"}, 41, 2, 20) }, "/")
	var r struct {
		Data ListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	require.NotNil(t, r.Data.Pagination)
	assert.Equal(t, 3, r.Data.Pagination.TotalPages)
	assert.Equal(t, 41, r.Data.Pagination.Total)
}
