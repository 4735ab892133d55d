package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionRefAcceptsLettersAndIndexes(t *testing.T) {
	var answers []struct {
		SelectedOption OptionRef `json:"selectedOption"`
	}
	err := json.Unmarshal([]byte(`[{"selectedOption":"B"},{"selectedOption":2},{"selectedOption":"d"},{"selectedOption":"0"}]`), &answers)
	require.NoError(t, err)
	assert.Equal(t, OptionRef(1), answers[0].SelectedOption)
	assert.Equal(t, OptionRef(2), answers[1].SelectedOption)
	assert.Equal(t, OptionRef(3), answers[2].SelectedOption)
	assert.Equal(t, OptionRef(0), answers[3].SelectedOption)

	out, err := json.Marshal(OptionRef(1))
	require.NoError(t, err)
	assert.Equal(t, "1", string(out))
	assert.Equal(t, "B", OptionRef(1).Letter())
}

func TestParseOptionRefRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "AB", "?"} {
		_, err := ParseOptionRef(s)
		assert.Error(t, err, s)
	}
	assert.False(t, OptionRef(3).InRange([]string{"a", "b", "c"}))
	assert.True(t, OptionRef(2).InRange([]string{"a", "b", "c"}))
}
