package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, valid := range []UpdateMode{ModeSmart, ModeDiffsOnly, ModeFullContent, ModeChangedFilesOnly} {
		mode, err := ParseMode(string(valid), ModeSmart)
		require.NoError(t, err)
		assert.Equal(t, valid, mode)
	}
}

func TestParseMode_EmptyUsesFallback(t *testing.T) {
	t.Parallel()

	mode, err := ParseMode("", ModeDiffsOnly)
	require.NoError(t, err)
	assert.Equal(t, ModeDiffsOnly, mode)
}

func TestParseMode_UnknownIsError(t *testing.T) {
	t.Parallel()

	_, err := ParseMode("telepathic", ModeSmart)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "update_mode", cfgErr.Field)
	assert.Contains(t, err.Error(), "telepathic")
}
