package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/plugmesh/core"
)

func named(name string, similes ...string) core.Action {
	return core.NewAction(name, nil, func(o *core.ActionOptions) { o.Similes = similes })
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "sendmessage", Normalize("SEND_MESSAGE"))
	assert.Equal(t, "sendmessage", Normalize("send__Message"))
	assert.Equal(t, "", Normalize("___"))
}

func TestResolve(t *testing.T) {
	respond := named("RESPOND", "send_message")
	send := named("SEND_MESSAGE", "reply")
	follow := named("FOLLOW_ROOM", "SEND_MSG")
	actions := []core.Action{respond, send, follow}

	tests := []struct {
		requested string
		want      core.Action
	}{
		// name pass wins over an earlier action's alias
		{"send_message", send},
		{"SEND_MESSAGE", send},
		// requested contained in registered name
		{"send", send},
		// registered name contained in requested
		{"send_message_now", send},
		{"please_respond", respond},
		// alias pass
		{"reply", send},
		// "sendmsg" is not a substring of "sendmessage" in either direction
		{"sendmsg", follow},
	}

	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			got, ok := Resolve(actions, tt.requested)
			require.True(t, ok)
			assert.Equal(t, tt.want.Name(), got.Name())
		})
	}
}

func TestResolve_Unresolved(t *testing.T) {
	actions := []core.Action{named("SEND_MESSAGE"), named("___", "__")}

	for _, requested := range []string{"", "_", "sendmsg", "mute"} {
		_, ok := Resolve(actions, requested)
		assert.False(t, ok, requested)
	}
}

func TestResolve_FirstRegistrationWins(t *testing.T) {
	first := named("REPLY")
	second := named("REPLY")

	got, ok := Resolve([]core.Action{first, second}, "reply")
	require.True(t, ok)
	assert.Same(t, first, got)
}
