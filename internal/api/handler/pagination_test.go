package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func pageCtx(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/aml/alerts?"+rawQuery, nil)
	return c
}

func TestPageParams(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"absent", "", 0, 0},
		{"valid", "limit=25&offset=100", 25, 100},
		{"negative clamped", "limit=-5&offset=-3", 0, 0},
		{"non-numeric", "limit=abc&offset=1e3", 0, 0},
		{"offset only", "offset=40", 0, 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			limit, offset := pageParams(pageCtx(t, tc.query))
			if limit != tc.wantLimit || offset != tc.wantOffset {
				t.Errorf("pageParams(%q) = (%d, %d), want (%d, %d)",
					tc.query, limit, offset, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}
