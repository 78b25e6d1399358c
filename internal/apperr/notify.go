package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Notification is the transient message shown to the user for a failure.
type Notification struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notify describes err by its failure category.
func Notify(err error) Notification {
	k := Classify(err)
	n := Notification{Kind: k.String()}
	switch k {
	case KindNotFound:
		n.Title = "Not found"
		n.Message = "The requested data could not be found."
	case KindRateLimited:
		n.Title = "Too many requests"
		n.Message = "The service is busy. Please try again in a moment."
	case KindServer:
		n.Title = "Server error"
		n.Message = "The upstream service failed to respond. Please try again later."
	case KindAuth:
		n.Title = "Access denied"
		n.Message = "The service rejected the request credentials."
	case KindConfig:
		n.Title = "Not configured"
		n.Message = "This feature is not configured on the server."
	case KindBadInput, KindMalformed:
		n.Title = "Invalid request"
		n.Message = "The request could not be processed."
		var ae *Error
		if errors.As(err, &ae) && ae.Message != "" {
			n.Message = ae.Message
		}
	case KindCanceled:
		n.Title = "Canceled"
		n.Message = "The request was canceled."
	default:
		n.Title = "Something went wrong"
		n.Message = "An unexpected error occurred."
	}
	return n
}

// ErrorBody is the JSON shape of every error answer.
type ErrorBody struct {
	Error Notification `json:"error"`
}

// HTTPErrorHandler renders errors returned by handlers as notifications.
// echo's own HTTPErrors keep their status code.
func HTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok {
				msg = s
			}
			_ = c.JSON(he.Code, ErrorBody{Error: Notification{
				Kind:    kindForStatus(he.Code).String(),
				Title:   http.StatusText(he.Code),
				Message: msg,
			}})
			return
		}

		status := HTTPStatus(Classify(err))
		if status >= 500 {
			logger.Error("request failed", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		} else {
			logger.Debug("request rejected", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		}
		_ = c.JSON(status, ErrorBody{Error: Notify(err)})
	}
}
