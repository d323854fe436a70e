package common

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type sampleLine struct {
	Description string  `json:"description" validate:"required"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
	Discount    float64 `json:"discountPercent" validate:"gte=0,lte=100"`
}

type sampleDoc struct {
	Items []sampleLine `json:"items" validate:"min=1,dive"`
}

func TestValidateReportsJSONFieldPaths(t *testing.T) {
	err := Validate(sampleDoc{Items: []sampleLine{{Description: "", Quantity: 0, Discount: 120}}})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrValidation))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	details := appErr.Details.(map[string]string)
	require.Equal(t, "required", details["items[0].description"])
	require.Equal(t, "gte=1", details["items[0].quantity"])
	require.Equal(t, "lte=100", details["items[0].discountPercent"])
}

func TestValidateAcceptsValidPayload(t *testing.T) {
	require.NoError(t, Validate(sampleDoc{Items: []sampleLine{{Description: "ok", Quantity: 1}}}))
	require.Error(t, Validate(sampleDoc{}))
}
