package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yllada/claw-manager/common"
)

// DefaultSessionLimit is how many saved sessions ListSessions shows.
const DefaultSessionLimit = 20

// ErrActiveSession is returned when deleting the session the app talks to.
var ErrActiveSession = errors.New("the active session cannot be deleted")

// Session is one agent conversation saved under ~/.openclaw/sessions.
type Session struct {
	ID       string
	Created  time.Time
	Messages int
	Model    string
	// Active marks the session the app sends agent messages to.
	Active bool
}

// SessionDir is ~/.openclaw/sessions.
func SessionDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, common.GatewayConfigDirName, "sessions")
}

// ListSessions returns the active session followed by the newest saved
// sessions in dir, at most limit of them. A missing dir is not an error.
func ListSessions(dir string, limit int) ([]Session, error) {
	out := []Session{{ID: common.DefaultSessionID, Created: time.Now(), Model: "Active session", Active: true}}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, common.WrapError(err, "reading sessions")
	}

	var saved []Session
	for _, e := range entries {
		if !e.IsDir() || e.Name() == common.DefaultSessionID {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		s := Session{ID: e.Name(), Created: info.ModTime(), Model: "Unknown"}
		s.Messages, s.Model = readMessages(filepath.Join(dir, e.Name(), "messages.json"), s.Model)
		saved = append(saved, s)
	}

	sort.Slice(saved, func(i, j int) bool { return saved[i].Created.After(saved[j].Created) })
	if limit > 0 && len(saved) > limit {
		saved = saved[:limit]
	}
	return append(out, saved...), nil
}

// readMessages counts the messages in a session file and picks the model
// from the first message that names one. Unreadable files count as empty.
func readMessages(path, fallback string) (int, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fallback
	}
	var msgs []map[string]any
	if err := json.Unmarshal(data, &msgs); err != nil {
		common.LogDebug("Skipping malformed session file %s: %v", path, err)
		return 0, fallback
	}
	model := fallback
	for _, m := range msgs {
		if v, ok := m["model"]; ok && v != nil {
			model = fmt.Sprint(v)
			break
		}
	}
	return len(msgs), model
}

// DeleteSession removes a saved session. The active session is refused.
func DeleteSession(dir, id string) error {
	if id == common.DefaultSessionID {
		return ErrActiveSession
	}
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid session id %q", id)
	}
	path := filepath.Join(dir, id)
	if _, err := os.Stat(path); err != nil {
		return common.WrapError(err, "session "+id)
	}
	return os.RemoveAll(path)
}
