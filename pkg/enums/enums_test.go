package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("cancelled")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, status)
	assert.Equal(t, "paid", OrderStatusPaid.String())
	assert.Equal(t, "status(9)", OrderStatus(9).String())
	assert.False(t, OrderStatus(9).IsValid())

	_, err = ParseOrderStatus("lost")
	assert.Error(t, err)
}

func TestFreightType(t *testing.T) {
	freight, err := ParseFreightType("")
	require.NoError(t, err)
	assert.Equal(t, FreightTypeStandard, freight)
	assert.True(t, FreightTypeExpress.IsValid())

	_, err = ParseFreightType("drone")
	assert.Error(t, err)
}
