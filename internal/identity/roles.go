package identity

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
)

// RoleTable maps an upper-case role code to its display name.
type RoleTable map[string]string

var defaultRoles = RoleTable{
	"A":   "Assistant",
	"SA":  "Senior Assistant",
	"SME": "Subject Matter Expert",
	"SE":  "Senior Engineer",
	"TL":  "Team Lead",
	"PM":  "Project Manager",
	"SM":  "Senior Manager",
	"D":   "Director",
	"E":   "Engineer",
	"SD":  "Senior Director",
	"VP":  "Vice President",
	"CEO": "CEO",
}

// DefaultRoles returns a copy of the built-in role table.
func DefaultRoles() RoleTable {
	out := make(RoleTable, len(defaultRoles))
	for k, v := range defaultRoles {
		out[k] = v
	}
	return out
}

// NewRoleTable normalizes codes to upper case and drops empty entries.
func NewRoleTable(m map[string]string) RoleTable {
	out := make(RoleTable, len(m))
	for k, v := range m {
		code := strings.ToUpper(strings.TrimSpace(k))
		display := strings.TrimSpace(v)
		if code == "" || display == "" {
			continue
		}
		out[code] = display
	}
	return out
}

// Resolve looks a role segment up by code, case-insensitively. A segment that
// spells out a display name is accepted as well and resolves to the lowest
// code carrying it.
func (t RoleTable) Resolve(segment string) (code, display string, ok bool) {
	key := strings.ToUpper(strings.TrimSpace(segment))
	if key == "" {
		return "", "", false
	}
	if d, found := t[key]; found && d != "" {
		return key, d, true
	}
	for _, c := range t.Codes() {
		if d := t[c]; d != "" && strings.ToUpper(d) == key {
			return c, d, true
		}
	}
	return "", "", false
}

// Codes returns the known codes in sorted order.
func (t RoleTable) Codes() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseRoleList parses "SE=Senior Engineer,TL=Team Lead".
func ParseRoleList(s string) (RoleTable, error) {
	m := map[string]string{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		code, display, found := strings.Cut(item, "=")
		if !found || strings.TrimSpace(code) == "" || strings.TrimSpace(display) == "" {
			return nil, fmt.Errorf("role entry %q: expected CODE=Display", item)
		}
		m[code] = display
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("role list is empty")
	}
	return NewRoleTable(m), nil
}

// LoadRoleTableCSV reads a two-column (code, display) CSV. A header row whose
// first cell is "code" is skipped.
func LoadRoleTableCSV(path string) (RoleTable, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	r := csv.NewReader(fp)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	m := map[string]string{}
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "code") {
			continue
		}
		m[row[0]] = row[1]
	}
	t := NewRoleTable(m)
	if len(t) == 0 {
		return nil, fmt.Errorf("csv %s has no role rows", path)
	}
	return t, nil
}
