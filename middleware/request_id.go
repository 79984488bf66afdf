package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"venue-indexer/logger"
)

const HeaderRequestID = echo.HeaderXRequestID

// RequestID reuses the caller's X-Request-ID or generates one, echoes it on
// the response and stores it in the request context for logging.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, id)
			c.SetRequest(req.WithContext(logger.WithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}

// AccessLog logs one line per request once the handler has returned.
func AccessLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			logger.GlobalContext.WithContext(req.Context()).Info("http request",
				"method", req.Method,
				"route", c.Path(),
				"status", c.Response().Status,
			)
			return nil
		}
	}
}
