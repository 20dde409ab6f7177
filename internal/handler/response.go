package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
)

type dataEnvelope struct {
	Data any `json:"data"`
}

type messageBody struct {
	Message string `json:"message"`
}

// respondData writes the success envelope.
func respondData(c echo.Context, status int, data any) error {
	return c.JSON(status, dataEnvelope{Data: data})
}

// bindAndValidate decodes the request into dst and runs the struct tags
// through the registered validator.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperror.BadRequest(msgInvalidRequest, nil).WithCause(err)
	}
	if err := c.Validate(dst); err != nil {
		return err
	}
	return nil
}
