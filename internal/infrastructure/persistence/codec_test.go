package persistence

import (
	"testing"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeState_Layout(t *testing.T) {
	data, err := EncodeState(progress.State{XP: 120})
	require.NoError(t, err)
	assert.JSONEq(t, `{"xp":120,"badges":[]}`, string(data))

	data, err = EncodeState(progress.State{
		XP:     7,
		Badges: []progress.Badge{{ID: "b", Title: "B", Icon: "*"}, {ID: "a", Title: "A"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"xp":7,"badges":[{"id":"b","title":"B","icon":"*"},{"id":"a","title":"A"}]}`,
		string(data))
}

func TestDecodeState_RoundTripPreservesOrder(t *testing.T) {
	in := progress.State{
		XP: 340,
		Badges: []progress.Badge{
			{ID: "module_2", Title: "Completed: Graphs", Description: "second"},
			{ID: "module_1", Title: "Completed: Trees"},
		},
	}

	data, err := EncodeState(in)
	require.NoError(t, err)

	out, err := DecodeState(data)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
}

func TestDecodeState_PartialRecords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		xp     progress.XP
		badges int
	}{
		{"missing badges", `{"xp":120}`, 120, 0},
		{"missing xp", `{"badges":[{"id":"a","title":"A"}]}`, 0, 1},
		{"empty object", `{}`, 0, 0},
		{"null fields", `{"xp":null,"badges":null}`, 0, 0},
		{"unknown fields ignored", `{"xp":5,"badges":[],"streak":3}`, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := DecodeState([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.xp, state.XP)
			assert.Len(t, state.Badges, tt.badges)
			assert.NotNil(t, state.Badges)
		})
	}
}

func TestDecodeState_Rejects(t *testing.T) {
	inputs := map[string]string{
		"not json":          `{{{`,
		"array document":    `[1,2]`,
		"string xp":         `{"xp":"100"}`,
		"fractional xp":     `{"xp":1.5}`,
		"negative xp":       `{"xp":-10}`,
		"badges not a list": `{"badges":{"id":"a"}}`,
		"badge wrong type":  `{"badges":[{"id":1,"title":"A"}]}`,
		"badge without id":  `{"badges":[{"title":"A"}]}`,
		"badge no title":    `{"badges":[{"id":"a"}]}`,
		"duplicate badges":  `{"badges":[{"id":"a","title":"A"},{"id":"a","title":"B"}]}`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeState([]byte(input))
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrSnapshotMalformed)
		})
	}
}

func TestDecodeState_NullIsAbsent(t *testing.T) {
	for _, input := range []string{"null", "", "  "} {
		_, err := DecodeState([]byte(input))
		assert.True(t, shared.IsNotFound(err), "input %q", input)
	}
}
