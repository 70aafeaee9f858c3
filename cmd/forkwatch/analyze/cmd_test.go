package analyze

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateThresholds(t *testing.T) {
	require.NoError(t, validateThresholds([]float64{0.05, 1.0 / 3}, []float64{0, 0.1}))
	require.NotNil(t, validateThresholds(nil, nil))
	require.NotNil(t, validateThresholds([]float64{0}, nil))
	require.NotNil(t, validateThresholds([]float64{0.4}, nil))
	require.NotNil(t, validateThresholds([]float64{0.1}, []float64{-0.01}))
	require.NotNil(t, validateThresholds([]float64{0.1}, []float64{0.34}))
}
