package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationship_Names(t *testing.T) {
	tests := []struct {
		rel     Relationship
		display string
		long    string
	}{
		{Uses, "uses", "Uses"},
		{Owns, "owns", "Owns"},
	}
	for _, tt := range tests {
		t.Run(tt.long, func(t *testing.T) {
			assert.Equal(t, tt.display, tt.rel.DisplayName())
			assert.Equal(t, tt.long, tt.rel.String())
			assert.True(t, tt.rel.Valid())
		})
	}
	assert.False(t, Relationship(7).Valid())
	assert.Len(t, Relationships, 2)
}

func TestParseRelationship(t *testing.T) {
	for _, in := range []string{"uses", "Uses", " USES "} {
		r, err := ParseRelationship(in)
		require.NoError(t, err, in)
		assert.Equal(t, Uses, r)
	}
	r, err := ParseRelationship("Owns")
	require.NoError(t, err)
	assert.Equal(t, Owns, r)

	_, err = ParseRelationship("contains")
	assert.Error(t, err)
}

func TestRelationship_JSON(t *testing.T) {
	data, err := json.Marshal(Triple{Source: "a", Target: "b", Kind: Owns})
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"a","target":"b","kind":"owns"}`, string(data))

	var tr Triple
	require.NoError(t, json.Unmarshal([]byte(`{"source":"x","target":"y","kind":"Uses"}`), &tr))
	assert.Equal(t, Uses, tr.Kind)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"calls"}`), &tr))
}
