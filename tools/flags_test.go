package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsForCommandBuild(t *testing.T) {
	flags, err := ParseFlagsForCommandBuild([]string{"-n", "500", "-N", "30", "-I", "-compress", "zstd", "-o", ".", "bunny.off"})
	require.NoError(t, err)
	assert.Equal(t, "bunny.off", *flags.Input)
	assert.Equal(t, 500, *flags.MaxCollapses)
	assert.Equal(t, 30.0, *flags.NormalDeviation)
	assert.True(t, *flags.IndependentSets)
	assert.Equal(t, "zstd", *flags.Compression)
	assert.Equal(t, ".", *flags.Output)
	assert.Equal(t, 60.0, *flags.FeatureAngle)
	assert.Equal(t, "localhost:9000", *flags.S3Endpoint)
}

func TestParseFlagsLongAndShortNames(t *testing.T) {
	flags, err := ParseFlagsForCommandRefine([]string{"--input", "bunny.pm", "-eye", "1,2,3", "-b", "10", "-tolerance", "0.5"})
	require.NoError(t, err)
	assert.Equal(t, "bunny.pm", *flags.Input)
	assert.Equal(t, "1,2,3", *flags.Eye)
	assert.Equal(t, 10, *flags.NodeBudget)
	assert.Equal(t, 0.5, *flags.Tolerance)
	assert.Empty(t, *flags.Target)

	verify, err := ParseFlagsForCommandVerify([]string{"-i", "bunny.off", "-pm", "bunny.pm"})
	require.NoError(t, err)
	assert.Equal(t, "bunny.off", *verify.Input)
	assert.Equal(t, "bunny.pm", *verify.ProgMesh)
}

func TestParseFlagsErrors(t *testing.T) {
	_, err := ParseFlagsForCommandBuild([]string{"-n", "many"})
	assert.Error(t, err)

	verify, err := ParseFlagsForCommandVerify([]string{"-h"})
	require.NoError(t, err)
	assert.True(t, *verify.Help)
}
