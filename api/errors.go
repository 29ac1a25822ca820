package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"auction-api/domain"
	"auction-api/storage"
)

// statusFor maps an error kind to the HTTP status reported to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyActiveForItem),
		errors.Is(err, domain.ErrAlreadyClosed),
		errors.Is(err, domain.ErrAuctionNotActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBidTooLow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status of its kind. The error is also handed to
// the request metrics under stage.
func fail(c echo.Context, stage string, err error) error {
	status := statusFor(err)
	m := metricsFrom(c)
	m.SetErrorStage(stage)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
		msg = http.StatusText(status)
	}
	return c.JSON(status, errorResponse{Error: msg})
}

func badRequest(c echo.Context, stage, msg string) error {
	metricsFrom(c).SetErrorStage(stage)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}
