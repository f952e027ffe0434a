package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tbernier/docroute/internal/model"
)

func TestFormatRoute(t *testing.T) {
	assert.Contains(t, FormatRoute(model.RouteClassified), SuccessIcon)
	assert.Contains(t, FormatRoute(model.RouteNeedsReview), WarningIcon)
	assert.Contains(t, FormatRoute(model.RouteFailed), ErrorIcon)
	assert.Equal(t, "other", FormatRoute(model.Route("other")))
}

func TestFormatMessages(t *testing.T) {
	assert.Contains(t, FormatSuccess("12 files routed"), "12 files routed")
	assert.Contains(t, FormatError("config not found"), "config not found")
	assert.Contains(t, FormatError("config not found"), ErrorIcon)
	assert.Contains(t, Subtle("details"), "details")
}
