package history

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// GatewayLogDir is ~/.openclaw/logs.
func GatewayLogDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".openclaw", "logs")
}

var levelToken = regexp.MustCompile(`(?i)\[(trace|debug|info|warn|warning|error|fatal)\]`)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ReadGatewayLogs returns the last tail lines of the newest maxFiles *.log
// and *.jsonl files in dir, parsed into entries. A missing dir yields nothing.
func ReadGatewayLogs(dir string, maxFiles, tail int) ([]Entry, error) {
	var files []string
	for _, pattern := range []string{"*.log", "*.jsonl"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}

	type fileInfo struct {
		path string
		mod  time.Time
	}
	var infos []fileInfo
	for _, f := range files {
		st, err := os.Stat(f)
		if err != nil || st.IsDir() {
			continue
		}
		infos = append(infos, fileInfo{f, st.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].mod.After(infos[j].mod) })
	if maxFiles > 0 && len(infos) > maxFiles {
		infos = infos[:maxFiles]
	}

	var out []Entry
	for _, fi := range infos {
		lines, err := tailLines(fi.path, tail)
		if err != nil {
			continue
		}
		source := filepath.Base(fi.path)
		for _, line := range lines {
			if e, ok := ParseLogLine(line, fi.mod); ok {
				e.Source = source
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}

// ParseLogLine understands JSON lines ({"level","message"|"msg","timestamp"|"time"}),
// bracketed "[time] [LEVEL] message" lines and plain text. fallback is used
// when no timestamp can be read.
func ParseLogLine(line string, fallback time.Time) (Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Entry{}, false
	}

	if strings.HasPrefix(line, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			e := Entry{Kind: "gateway", Level: "INFO", Message: line, Time: fallback}
			if lvl, ok := obj["level"].(string); ok && lvl != "" {
				e.Level = normalizeLevel(lvl)
			}
			for _, k := range []string{"message", "msg"} {
				if m, ok := obj[k].(string); ok && m != "" {
					e.Message = m
					break
				}
			}
			for _, k := range []string{"timestamp", "time"} {
				if ts, ok := obj[k].(string); ok {
					if t, ok := parseTime(ts); ok {
						e.Time = t
						break
					}
				}
			}
			return e, true
		}
	}

	if loc := levelToken.FindStringSubmatchIndex(line); loc != nil {
		prefix := strings.Trim(strings.TrimSpace(line[:loc[0]]), "[]")
		e := Entry{
			Kind:    "gateway",
			Level:   normalizeLevel(line[loc[2]:loc[3]]),
			Message: strings.TrimSpace(line[loc[1]:]),
			Time:    fallback,
		}
		if t, ok := parseTime(prefix); ok {
			e.Time = t
		}
		return e, true
	}

	return Entry{Kind: "gateway", Level: "INFO", Message: line, Time: fallback}, true
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
