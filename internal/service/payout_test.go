package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stake(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestOddsLookupLongestMatch(t *testing.T) {
	odds := DefaultOdds()
	tests := []struct {
		modality string
		key      string
		mult     int64
	}{
		{"Milhar", ModMilhar, 4000},
		{"centena invertida", ModCentena, 400},
		{"DEZENA", ModDezena, 60},
		{"DUQUE DE DEZENA", ModDuqueDezena, 300},
		{"duque  dezena", ModDuqueDezena, 300},
		{"Duque de Grupo", ModDuqueGrupo, 18},
		{"terno-de-grupo", ModTernoGrupo, 150},
		{"TERNO GRUPO", ModTernoGrupo, 150},
		{"Grupo", ModGrupo, 18},
		{"PASSE", "", 0},
	}
	for _, tt := range tests {
		key, mult := odds.Lookup(tt.modality)
		assert.Equal(t, tt.key, key, tt.modality)
		assert.True(t, mult.Equal(decimal.NewFromInt(tt.mult)), tt.modality)
	}
}

func TestComputePayoutCombinationBetsAreNotScored(t *testing.T) {
	lines := []WagerLine{{Modality: "DUQUE DE GRUPO", Placement: "1", Guesses: []string{"10", "11"}, StakeMode: StakeFlat, Stake: stake("2.00")}}
	p := ComputePayout(lines, decimal.RequireFromString("2.00"), []string{"1440"}, DefaultOdds())
	require.Len(t, p.Lines, 1)
	assert.Equal(t, ModDuqueGrupo, p.Lines[0].Key)
	assert.False(t, p.Lines[0].Scored)
	assert.Equal(t, "0.00", p.Prize.StringFixed(2))
}

func TestOddsOverrides(t *testing.T) {
	odds := DefaultOdds().WithOverrides(map[string]int64{"grupo": 20})
	_, mult := odds.Lookup("GRUPO")
	assert.Equal(t, "20", mult.String())
	_, mult = DefaultOdds().Lookup("GRUPO")
	assert.Equal(t, "18", mult.String())
}

func TestGroupOf(t *testing.T) {
	tests := map[string]int{"1400": 25, "1401": 1, "1404": 1, "1405": 2, "1497": 25, "1440": 10, "7": 2, "": 0}
	for in, want := range tests {
		assert.Equal(t, want, GroupOf(in), in)
	}
}

func TestComputePayoutCentenaExtendedTier(t *testing.T) {
	lines := []WagerLine{{Modality: "CENTENA", Placement: "1-5", Guesses: []string{"440"}, StakeMode: StakePerGuess, Stake: stake("2.00")}}
	p := ComputePayout(lines, decimal.RequireFromString("2.00"), []string{"1440", "2222", "3333", "4444", "5555"}, DefaultOdds())
	assert.Equal(t, "400.00", p.Prize.StringFixed(2))
	assert.True(t, p.Win())
	require.Len(t, p.Lines, 1)
	assert.Equal(t, "200", p.Lines[0].Multiplier)
	assert.Equal(t, 1, p.Lines[0].Hits)
}

func TestComputePayoutFirstPlace(t *testing.T) {
	numbers := []string{"0440", "1234"}
	tests := []struct {
		name  string
		line  WagerLine
		prize string
	}{
		{"milhar hit", WagerLine{Modality: "MILHAR", Guesses: []string{"440"}, StakeMode: StakePerGuess, Stake: stake("1")}, "4000.00"},
		{"milhar miss on second place", WagerLine{Modality: "MILHAR", Guesses: []string{"1234"}, StakeMode: StakePerGuess, Stake: stake("1")}, "0.00"},
		{"centena hit", WagerLine{Modality: "CENTENA", Placement: "1", Guesses: []string{"440", "999"}, StakeMode: StakePerGuess, Stake: stake("0.50")}, "200.00"},
		{"grupo hit", WagerLine{Modality: "GRUPO", Guesses: []string{"10"}, StakeMode: StakePerGuess, Stake: stake("5")}, "90.00"},
		{"grupo flat split", WagerLine{Modality: "GRUPO", Guesses: []string{"10", "11"}, StakeMode: StakeFlat, Stake: stake("5")}, "45.00"},
		{"dezena priced but unscored", WagerLine{Modality: "DEZENA", Guesses: []string{"40"}, StakeMode: StakePerGuess, Stake: stake("1")}, "0.00"},
		{"duque grupo unscored", WagerLine{Modality: "DUQUE GRUPO", Guesses: []string{"10", "9"}, StakeMode: StakeFlat, Stake: stake("1")}, "0.00"},
		{"unknown modality", WagerLine{Modality: "PASSE", Guesses: []string{"440"}, StakeMode: StakePerGuess, Stake: stake("1")}, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputePayout([]WagerLine{tt.line}, tt.line.Cost(), numbers, DefaultOdds())
			assert.Equal(t, tt.prize, p.Prize.StringFixed(2))
		})
	}
}

func TestComputePayoutTotalSplitAcrossLines(t *testing.T) {
	lines := []WagerLine{
		{Modality: "CENTENA", Guesses: []string{"440"}},
		{Modality: "GRUPO", Guesses: []string{"1"}},
	}
	p := ComputePayout(lines, decimal.RequireFromString("3.00"), []string{"1440"}, DefaultOdds())
	assert.Equal(t, "1.50", p.Lines[0].UnitStake)
	assert.Equal(t, "600.00", p.Prize.StringFixed(2))
}

func TestComputePayoutRoundsAtTheEnd(t *testing.T) {
	lines := []WagerLine{
		{Modality: "GRUPO", Guesses: []string{"10"}},
		{Modality: "GRUPO", Guesses: []string{"10"}},
		{Modality: "GRUPO", Guesses: []string{"10"}},
	}
	p := ComputePayout(lines, decimal.RequireFromString("1.00"), []string{"1440"}, DefaultOdds())
	assert.Equal(t, "18.00", p.Prize.StringFixed(2))
}

func TestComputePayoutNoNumbers(t *testing.T) {
	lines := []WagerLine{{Modality: "MILHAR", Guesses: []string{"0000"}, StakeMode: StakePerGuess, Stake: stake("1")}}
	p := ComputePayout(lines, decimal.NewFromInt(1), nil, DefaultOdds())
	assert.False(t, p.Win())
}
