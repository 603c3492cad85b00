package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextBetStatus(t *testing.T) {
	tests := []struct {
		cur, evt, want string
		ok             bool
	}{
		{BetOpen, EvtWin, BetWon, true},
		{BetOpen, EvtLose, BetNotWon, true},
		{BetWon, EvtPay, BetPaid, true},
		{BetNotWon, EvtWin, BetWon, true},
		{BetLost, EvtPay, BetPaid, true},
		{BetPaid, EvtPay, BetPaid, false},
		{BetWon, EvtLose, BetWon, false},
		{"unknown", EvtWin, "unknown", false},
	}
	for _, tt := range tests {
		got, err := NextBetStatus(tt.cur, tt.evt)
		assert.Equal(t, tt.want, got, "%s --%s-->", tt.cur, tt.evt)
		assert.Equal(t, tt.ok, err == nil, "%s --%s-->", tt.cur, tt.evt)
	}
}

func TestSourcesOf(t *testing.T) {
	assert.Equal(t, []string{BetOpen}, SourcesOf(EvtLose))
	assert.Equal(t, []string{BetNotWon, BetOpen, BetWon}, SourcesOf(EvtWin))
	assert.Equal(t, []string{BetLost, BetNotWon, BetOpen, BetWon}, SourcesOf(EvtPay))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(BetPaid))
	assert.False(t, IsTerminal(BetOpen))
}
