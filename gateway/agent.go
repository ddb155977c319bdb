package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yllada/claw-manager/common"
)

// AgentRequest is a single message for the gateway's agent.
type AgentRequest struct {
	PnpmPath  string
	WorkDir   string
	SessionID string
	Message   string
}

// AgentReply is the cleaned output of one agent run.
type AgentReply struct {
	SessionID string
	Output    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
}

var spinnerNoise = strings.NewReplacer(
	"◓", "", "◑", "", "◒", "", "◐", "",
	"Waiting for agent reply", "",
)

// CleanAgentOutput strips spinner frames and progress text from agent stdout.
func CleanAgentOutput(s string) string {
	return strings.TrimSpace(spinnerNoise.Replace(s))
}

// NewSessionID returns a fresh agent session id.
func NewSessionID() string {
	return "session-" + uuid.NewString()
}

// AgentArgs are the pnpm arguments for one agent message.
func AgentArgs(sessionID, message string) []string {
	return []string{"openclaw", "agent", "--session-id", sessionID, "--message", message}
}

// RunAgent runs `pnpm openclaw agent` once and waits for it. Unlike the
// gateway launch, the child is bound to ctx.
func RunAgent(ctx context.Context, req AgentRequest) (AgentReply, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return AgentReply{}, common.ErrEmptyMessage
	}
	if req.SessionID == "" {
		req.SessionID = common.DefaultSessionID
	}
	if req.PnpmPath == "" {
		req.PnpmPath = "pnpm"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, lookPathOrSelf(req.PnpmPath), AgentArgs(req.SessionID, msg)...)
	cmd.Dir = req.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	reply := AgentReply{
		SessionID: req.SessionID,
		Output:    CleanAgentOutput(stdout.String()),
		Stderr:    strings.TrimSpace(stderr.String()),
		Duration:  time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			reply.ExitCode = exitErr.ExitCode()
			return reply, fmt.Errorf("agent exited with code %d: %s", reply.ExitCode, reply.Stderr)
		}
		return reply, fmt.Errorf("running agent: %w", err)
	}
	return reply, nil
}
