package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulatedCheckoutURL(t *testing.T) {
	assert.Equal(t,
		"http://localhost:8080/checkout/simulated?kind=subscription&ref=premium&detail=month",
		simulatedCheckoutURL("subscription", "premium", "month"))

	t.Setenv("PUBLIC_URL", "https://pixmart.example")
	assert.Equal(t,
		"https://pixmart.example/checkout/simulated?kind=purchase&ref=abc-123&detail=standard",
		simulatedCheckoutURL("purchase", "abc-123", "standard"))
}
