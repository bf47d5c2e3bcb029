package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse extracts and validates page/limit from query parameters, using
// defaultLimit when the caller sends no limit.
func Parse(c *gin.Context, defaultLimit int) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		limit = defaultLimit
	}
	return Normalize(page, limit)
}

// Normalize clamps page to >= 1 and limit to [MinLimit, MaxLimit].
func Normalize(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// TotalPages returns ceil(total/limit), never less than 1.
func TotalPages(total int64, limit int) int {
	if limit < 1 || total <= 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
