package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yllada/claw-manager/common"
)

func TestCleanAgentOutput(t *testing.T) {
	raw := "◓ Waiting for agent reply\n◑ Waiting for agent reply\nHello there!\n"
	assert.Equal(t, "Hello there!", CleanAgentOutput(raw))
	assert.Equal(t, "", CleanAgentOutput("◐◒"))
}

func TestAgentArgsAndSession(t *testing.T) {
	assert.Equal(t,
		[]string{"openclaw", "agent", "--session-id", "gui-session", "--message", "hi"},
		AgentArgs("gui-session", "hi"))

	a, b := NewSessionID(), NewSessionID()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^session-[0-9a-f-]{36}$`, a)
}

func TestRunAgentRejectsEmptyMessage(t *testing.T) {
	_, err := RunAgent(context.Background(), AgentRequest{Message: "   "})
	assert.ErrorIs(t, err, common.ErrEmptyMessage)
}
