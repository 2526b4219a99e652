package ml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{1, "Spruce/Fir"},
		{2, "Lodgepole Pine"},
		{3, "Ponderosa Pine"},
		{4, "Cottonwood/Willow"},
		{5, "Aspen"},
		{6, "Douglas-fir"},
		{7, "Krummholz"},
	}

	for _, tt := range tests {
		got, err := ResolveLabel(tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want, CoverType(tt.code).String())
	}
}

func TestResolveLabel_OutOfRange(t *testing.T) {
	for _, code := range []int{0, -1, 8, 100} {
		label, err := ResolveLabel(code)
		assert.Empty(t, label)
		assert.True(t, errors.Is(err, ErrUnexpectedClass), "code %d: %v", code, err)
	}
	assert.Equal(t, "CoverType(9)", CoverType(9).String())
}

func TestLabels(t *testing.T) {
	labels := Labels()
	require.Len(t, labels, 7)
	for i, l := range labels {
		assert.Equal(t, i+1, l.Code)
		name, err := ResolveLabel(l.Code)
		require.NoError(t, err)
		assert.Equal(t, name, l.Name)
	}
}
