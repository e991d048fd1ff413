package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteHandlerCreateUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNoteHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/notes", nil)
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNoteFilterFromQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/notes?subject=Math&grade=10&tag=algebra&search=%20basics%20&page=2&limit=5&sort=download_count&order=asc", nil)
	c.Request = req

	filter := noteFilterFromQuery(c)
	assert.Equal(t, "Math", filter.Subject)
	assert.Equal(t, "10", filter.Grade)
	assert.Equal(t, "algebra", filter.Tag)
	assert.Equal(t, "basics", filter.Search)
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, 5, filter.PageSize)
	assert.Equal(t, "download_count", filter.SortBy)
	assert.Equal(t, "asc", filter.SortOrder)
}

func TestPaginationForClampsBounds(t *testing.T) {
	p := paginationFor(0, 500, 42)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
	assert.Equal(t, 42, p.TotalCount)

	p = paginationFor(3, 25, 42)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.PageSize)
}
