package whaleorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/pkg/errors"
)

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{}.Validate())
	assert.NoError(t, Filter{
		Exchange:  "binance",
		Direction: DirectionLong,
		Market:    MarketSpot,
		Status:    StatusActive,
	}.Validate())

	for name, f := range map[string]Filter{
		"direction": {Direction: "sideways"},
		"market":    {Market: "options"},
		"status":    {Status: "pending"},
	} {
		err := f.Validate()
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput), name)
	}
}
