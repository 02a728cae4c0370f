package middleware

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

const bodyLimitKey = "body_limit"

// BodyLimit rejects request bodies larger than limit bytes with a 400 and
// {success:false, error:message}. Content-Length is checked up front; the
// body is also wrapped so that chunked uploads stop at the limit.
func BodyLimit(limit int64, message string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			if req.ContentLength > limit {
				return tooLarge(c, message)
			}

			lr := &limitedReadCloser{ReadCloser: req.Body, remaining: limit}
			req.Body = lr
			c.Set(bodyLimitKey, lr)

			err := next(c)
			if lr.exceeded && !c.Response().Committed {
				return tooLarge(c, message)
			}
			return err
		}
	}
}

// BodyLimitExceeded reports whether the request body was cut off by BodyLimit.
func BodyLimitExceeded(c echo.Context) bool {
	lr, ok := c.Get(bodyLimitKey).(*limitedReadCloser)
	return ok && lr.exceeded
}

// limitedReadCloser wraps an io.ReadCloser and returns an error once the
// read limit is exceeded.
type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (n int, err error) {
	if r.exceeded {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "request body too large")
	}

	// Only read up to the remaining allowed bytes + 1 (to detect overflow)
	toRead := int64(len(p))
	if toRead > r.remaining+1 {
		toRead = r.remaining + 1
	}

	n, err = r.ReadCloser.Read(p[:toRead])
	r.remaining -= int64(n)

	if r.remaining < 0 {
		r.exceeded = true
		return 0, echo.NewHTTPError(http.StatusBadRequest, "request body too large")
	}

	return n, err
}

func tooLarge(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
