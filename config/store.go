package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/yllada/claw-manager/common"
)

// Document is the gateway's openclaw.json. Unknown keys are preserved
// across a load/save round trip.
type Document struct {
	raw map[string]any
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{raw: map[string]any{}}
}

// Raw exposes the underlying tree for display.
func (d *Document) Raw() map[string]any {
	return d.raw
}

// GatewayPort returns gateway.port and whether it was present and valid.
func (d *Document) GatewayPort() (int, bool) {
	v, ok := d.lookup("gateway", "port")
	if !ok {
		return 0, false
	}
	var port int
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		port = int(n)
	case int:
		port = n
	case int64:
		port = int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		port = int(i)
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		port = i
	default:
		return 0, false
	}
	if port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

// Port returns gateway.port, or the default when absent.
func (d *Document) Port() int {
	if p, ok := d.GatewayPort(); ok {
		return p
	}
	return common.DefaultGatewayPort
}

// SetGatewayPort sets gateway.port.
func (d *Document) SetGatewayPort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: %d", common.ErrInvalidPort, port)
	}
	d.section("gateway")["port"] = port
	return nil
}

// GatewayToken returns gateway.auth.token, or "" when absent.
func (d *Document) GatewayToken() string {
	v, ok := d.lookup("gateway", "auth", "token")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// SetGatewayToken sets gateway.auth.token. An empty token removes it.
func (d *Document) SetGatewayToken(token string) {
	auth := d.section("gateway", "auth")
	if token == "" {
		delete(auth, "token")
		return
	}
	auth["token"] = token
}

// PrimaryModel returns agents.defaults.model.primary.
func (d *Document) PrimaryModel() string {
	v, _ := d.lookup("agents", "defaults", "model", "primary")
	s, _ := v.(string)
	return s
}

// FallbackModel returns the first of agents.defaults.model.fallback.
func (d *Document) FallbackModel() string {
	v, _ := d.lookup("agents", "defaults", "model", "fallback")
	switch fb := v.(type) {
	case []any:
		if len(fb) > 0 {
			s, _ := fb[0].(string)
			return s
		}
	case string:
		return fb
	}
	return ""
}

func (d *Document) lookup(keys ...string) (any, bool) {
	var cur any = d.raw
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// section returns the nested object at keys, creating it as needed.
func (d *Document) section(keys ...string) map[string]any {
	if d.raw == nil {
		d.raw = map[string]any{}
	}
	cur := d.raw
	for _, k := range keys {
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
	return cur
}

// Store reads and writes the gateway config document.
// The file is parsed as JSON5 so hand-edited comments and trailing commas load.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a Store for path. An empty path uses ~/.openclaw/openclaw.json.
func NewStore(path string) *Store {
	if path == "" {
		path = common.DefaultGatewayConfigPath()
	}
	return &Store{path: common.ExpandHome(path)}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// LoadConfig reads the document. A missing file yields an empty document.
func (s *Store) LoadConfig() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}

	var raw map[string]any
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", common.ErrConfigLoad, s.path, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return &Document{raw: raw}, nil
}

// SaveConfig writes the document as indented JSON, replacing the file atomically.
func (s *Store) SaveConfig(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc == nil {
		doc = NewDocument()
	}
	data, err := json.MarshalIndent(doc.raw, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	tmp, err := os.CreateTemp(dir, ".openclaw-*.json")
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}
	return nil
}
