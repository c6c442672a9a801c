// Package parser reads the Nagios status.dat snapshot file into typed
// host, service, comment and program status records.
//
// The format is a sequence of named blocks:
//
//	hoststatus {
//		host_name=webserver01
//		current_state=0
//		}
//
// interleaved with blank lines and '#' comment lines. Values are loosely
// typed strings; a small per-field table coerces the known numeric fields.
package parser

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Record is one decoded block. Values are string, int or float64 depending
// on the coercion table; unknown keys stay strings.
type Record map[string]interface{}

// Str returns the string value for key, or "" when absent or non-string.
func (r Record) Str(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int returns the int value for key. A soft-failed numeric (kept as its raw
// string) or a missing key reports false.
func (r Record) Int(key string) (int, bool) {
	n, ok := r[key].(int)
	return n, ok
}

// Fields coerced to int. Everything Nagios writes as a counter, flag,
// state code or epoch timestamp.
var intFields = map[string]struct{}{
	"current_state":                 {},
	"last_check":                    {},
	"last_state_change":             {},
	"last_hard_state":               {},
	"last_hard_state_change":        {},
	"last_time_up":                  {},
	"last_time_down":                {},
	"last_time_ok":                  {},
	"last_time_warning":             {},
	"last_time_critical":            {},
	"max_attempts":                  {},
	"current_attempt":               {},
	"state_type":                    {},
	"has_been_checked":              {},
	"should_be_scheduled":           {},
	"problem_has_been_acknowledged": {},
	"scheduled_downtime_depth":      {},
	"active_checks_enabled":         {},
	"passive_checks_enabled":        {},
	"notifications_enabled":         {},
	"entry_time":                    {},
	"entry_type":                    {},
	"comment_id":                    {},
	"persistent":                    {},
	"expires":                       {},
	"source":                        {},
	"daemon_mode":                   {},
	"enable_notifications":          {},
	"nagios_pid":                    {},
	"program_start":                 {},
	"last_command_check":            {},
}

// Fields coerced to float64.
var floatFields = map[string]struct{}{
	"check_interval":       {},
	"retry_interval":       {},
	"check_execution_time": {},
	"check_latency":        {},
	"percent_state_change": {},
}

// HostStatus is the typed view of one hoststatus block.
type HostStatus struct {
	HostName     string
	CurrentState int
	PluginOutput string
	LastCheck    int64
	HostGroups   []string
}

// ServiceKey identifies a service by host and description.
type ServiceKey struct {
	HostName           string
	ServiceDescription string
}

// ServiceStatus is the typed view of one servicestatus block.
type ServiceStatus struct {
	HostName           string
	ServiceDescription string
	CurrentState       int
	PluginOutput       string
	LastCheck          int64
	ServiceGroups      []string
}

// CommentRecord is the typed view of one hostcomment or servicecomment
// block. ServiceDescription is empty for host comments.
type CommentRecord struct {
	HostName           string
	ServiceDescription string
	Author             string
	CommentData        string
	EntryTime          int64
}

// Parser decodes a status.dat file. Accessors operate on the last
// successful Parse call.
type Parser struct {
	path      string
	data      map[string][]Record
	fileMtime *time.Time
}

func New(path string) *Parser {
	return &Parser{
		path: path,
		data: make(map[string][]Record),
	}
}

// Parse reads and decodes the whole file. The returned error wraps the
// underlying open/stat error, so fs.ErrNotExist and fs.ErrPermission stay
// detectable with errors.Is. Malformed lines inside the file never fail
// the parse; they are skipped or kept as raw strings.
func (p *Parser) Parse() error {
	info, err := os.Stat(p.path)
	if err != nil {
		return fmt.Errorf("stat status file: %w", err)
	}

	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("open status file: %w", err)
	}
	defer f.Close()

	data := make(map[string][]Record)

	var section string
	var current Record

	scanner := bufio.NewScanner(f)
	// Plugin output lines can far exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, "{") {
			section = strings.TrimSpace(strings.TrimSuffix(line, "{"))
			current = Record{}
			continue
		}

		if line == "}" {
			if section != "" && current != nil {
				data[section] = append(data[section], current)
			}
			section = ""
			current = nil
			continue
		}

		if current == nil {
			continue // stray line outside any block
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		current[strings.TrimSpace(key)] = coerce(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read status file: %w", err)
	}

	mtime := info.ModTime()
	p.data = data
	p.fileMtime = &mtime
	return nil
}

// coerce applies the per-field type table. Unparseable numerics keep the
// raw string rather than failing the record.
func coerce(key, value string) interface{} {
	if _, ok := intFields[key]; ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		return value
	}
	if _, ok := floatFields[key]; ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		return value
	}
	return value
}

// Section returns the raw decoded records for a named block type.
func (p *Parser) Section(name string) []Record {
	return p.data[name]
}

// Hosts returns all host records, optionally filtered. When both selectors
// are given, a host is kept if it matches either one (union): membership in
// any named hostgroup, or its name in explicitHosts.
func (p *Parser) Hosts(hostgroups, explicitHosts []string) []HostStatus {
	var out []HostStatus
	for _, rec := range p.data["hoststatus"] {
		h := HostStatus{
			HostName:     rec.Str("host_name"),
			CurrentState: intOrZero(rec, "current_state"),
			PluginOutput: rec.Str("plugin_output"),
			LastCheck:    int64(intOrZero(rec, "last_check")),
			HostGroups:   splitGroups(rec.Str("hostgroups")),
		}
		if !selected(h.HostName, h.HostGroups, explicitHosts, hostgroups) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Services returns all service records, optionally filtered; same union
// semantics as Hosts, with explicit entries matching on (host, description).
func (p *Parser) Services(servicegroups []string, explicit []ServiceKey) []ServiceStatus {
	var out []ServiceStatus
	for _, rec := range p.data["servicestatus"] {
		s := ServiceStatus{
			HostName:           rec.Str("host_name"),
			ServiceDescription: rec.Str("service_description"),
			CurrentState:       intOrZero(rec, "current_state"),
			PluginOutput:       rec.Str("plugin_output"),
			LastCheck:          int64(intOrZero(rec, "last_check")),
			ServiceGroups:      splitGroups(rec.Str("servicegroups")),
		}
		if !serviceSelected(s, explicit, servicegroups) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Comments returns host and service comments from the snapshot.
func (p *Parser) Comments() []CommentRecord {
	var out []CommentRecord
	for _, section := range []string{"hostcomment", "servicecomment"} {
		for _, rec := range p.data[section] {
			out = append(out, CommentRecord{
				HostName:           rec.Str("host_name"),
				ServiceDescription: rec.Str("service_description"),
				Author:             rec.Str("author"),
				CommentData:        rec.Str("comment_data"),
				EntryTime:          int64(intOrZero(rec, "entry_time")),
			})
		}
	}
	return out
}

// ProgramStatus returns the daemon-level metadata block, if present.
func (p *Parser) ProgramStatus() (Record, bool) {
	recs := p.data["programstatus"]
	if len(recs) == 0 {
		return nil, false
	}
	return recs[0], true
}

// FileMtime is the source file's modification time captured at parse time,
// or nil when no parse has succeeded yet.
func (p *Parser) FileMtime() *time.Time {
	return p.fileMtime
}

// DataAge returns wall-clock time since the file mtime. ok is false when
// the file was never parsed.
func (p *Parser) DataAge() (time.Duration, bool) {
	if p.fileMtime == nil {
		return 0, false
	}
	return time.Since(*p.fileMtime), true
}

// IsStale reports whether the parsed data is older than threshold, or was
// never parsed at all.
func (p *Parser) IsStale(threshold time.Duration) bool {
	age, ok := p.DataAge()
	if !ok {
		return true
	}
	return age > threshold
}

func intOrZero(rec Record, key string) int {
	n, _ := rec.Int(key)
	return n
}

func splitGroups(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	groups := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			groups = append(groups, trimmed)
		}
	}
	return groups
}

func selected(name string, groups, wantNames, wantGroups []string) bool {
	if len(wantNames) == 0 && len(wantGroups) == 0 {
		return true
	}
	for _, g := range wantGroups {
		for _, member := range groups {
			if member == g {
				return true
			}
		}
	}
	for _, n := range wantNames {
		if n == name {
			return true
		}
	}
	return false
}

func serviceSelected(s ServiceStatus, explicit []ServiceKey, wantGroups []string) bool {
	if len(explicit) == 0 && len(wantGroups) == 0 {
		return true
	}
	for _, g := range wantGroups {
		for _, member := range s.ServiceGroups {
			if member == g {
				return true
			}
		}
	}
	for _, key := range explicit {
		if key.HostName == s.HostName && key.ServiceDescription == s.ServiceDescription {
			return true
		}
	}
	return false
}
