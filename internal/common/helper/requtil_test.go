package helper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexStringAcceptsNumbersAndStrings(t *testing.T) {
	var req BetRequest
	body := `{"lottery":"PT RIO","timeSlotCode":"14h","lines":[{"modality":"CENTENA","placement":5,"guesses":["0440",123],"stake":"2,00"}]}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, FlexString("5"), req.Lines[0].Placement)
	assert.Equal(t, []string{"0440", "123"}, FlexStrings(req.Lines[0].Guesses))
	assert.Equal(t, "2,00", req.Lines[0].Stake.String())

	ok, msg := Validate(&req)
	assert.True(t, ok, msg)
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"missing lines", &BetRequest{Lottery: "PT", TimeSlotCode: "14h"}, "lines failed on required"},
		{"empty guesses", &BetRequest{Lottery: "PT", TimeSlotCode: "14h", Lines: []BetLineRequest{{Modality: "GRUPO", Stake: "1"}}}, "lines[0].guesses failed on required"},
		{"bad action", &ManualSettleRequest{ResultID: 1, Action: "VOID"}, "action failed on oneof=PAY REJECT pay reject"},
		{"negative result", &RecheckRequest{ResultID: -1}, "resultId failed on gt=0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, msg := Validate(tc.in)
			assert.False(t, ok)
			assert.Equal(t, tc.want, msg)
		})
	}
}
