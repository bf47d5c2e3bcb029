package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int
	}{
		{0, 10, 1},
		{1, 10, 1},
		{7, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{100, 1, 100},
		{5, 0, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.limit), "total=%d limit=%d", tt.total, tt.limit)
	}
}

func TestNormalize(t *testing.T) {
	p := Normalize(0, 0)
	assert.Equal(t, Params{Page: 1, Limit: DefaultLimit, Offset: 0}, p)

	p = Normalize(3, 500)
	assert.Equal(t, Params{Page: 3, Limit: MaxLimit, Offset: 200}, p)
}

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 10, Offset: 0}},
		{"?page=2", Params{Page: 2, Limit: 10, Offset: 10}},
		{"?page=2&limit=5", Params{Page: 2, Limit: 5, Offset: 5}},
		{"?page=-4&limit=abc", Params{Page: 1, Limit: 10, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/api/approvals"+tt.query, nil)
			assert.Equal(t, tt.want, Parse(c, 10))
		})
	}
}
