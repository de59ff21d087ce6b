package call_test

import (
	"strings"
	"testing"

	"github.com/myrjola/surveycall/internal/call"
	"github.com/stretchr/testify/require"
)

func TestParseEndReason(t *testing.T) {
	tests := []struct {
		input   string
		want    call.EndReason
		wantErr bool
	}{
		{input: "completed", want: call.Completed},
		{input: " Wrong_Person ", want: call.WrongPerson},
		{input: "link_sent", want: call.LinkSent},
		{input: "time_limit", want: call.TimeLimit},
		{input: "hung up", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := call.ParseEndReason(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, call.ErrUnknownEndReason)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFarewells(t *testing.T) {
	defaults := call.DefaultFarewells()
	seen := map[string]call.EndReason{}
	for _, reason := range call.EndReasons() {
		text := defaults.Render(reason, call.Caller{Number: "+1555"})
		require.NotEmpty(t, text)
		require.NotContains(t, text, "{{", reason)
		other, dup := seen[text]
		require.False(t, dup, "%s and %s share a farewell", reason, other)
		seen[text] = reason
	}

	require.Equal(t,
		"Thanks so much for sharing your thoughts, Sam! I really appreciate your time, "+
			"and I hope you have a great rest of your day! Goodbye!",
		defaults.Render(call.Completed, call.Caller{Name: " Sam "}))
	require.True(t, strings.HasPrefix(defaults.Render(call.Completed, call.Caller{}),
		"Thanks so much for sharing your thoughts!"))

	custom, err := call.DecodeFarewells(strings.NewReader(`{"declined": "Bye {{.Name}}."}`))
	require.NoError(t, err)
	require.Equal(t, "Bye Kim.", custom.Render(call.Declined, call.Caller{Name: "Kim"}))
	require.Equal(t, defaults.Render(call.LinkSent, call.Caller{}), custom.Render(call.LinkSent, call.Caller{}))

	_, err = call.DecodeFarewells(strings.NewReader(`{"hung_up": "Bye."}`))
	require.ErrorIs(t, err, call.ErrUnknownEndReason)
	_, err = call.NewFarewells(map[call.EndReason]string{call.Declined: "{{.Broken"})
	require.Error(t, err)
}
