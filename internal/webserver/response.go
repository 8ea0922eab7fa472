package webserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ok wraps a successful payload in the standard envelope.
func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, echo.Map{
		"code": 0,
		"data": data,
	})
}

// fail returns an error envelope with a machine-readable code.
func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, echo.Map{
		"code":    code,
		"message": message,
		"detail":  detail,
	})
}

// paged wraps a list payload with pagination metadata.
func paged(c echo.Context, rows interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, echo.Map{
		"code":      0,
		"data":      rows,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
