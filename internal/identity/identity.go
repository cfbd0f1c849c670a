package identity

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Separator splits the filename stem into its identity segments.
const Separator = "_"

// DefaultSequence is used when the filename carries no fourth segment.
const DefaultSequence = "1"

var (
	nameRE = regexp.MustCompile(`^[\p{L}\p{N}_.\- ]+$`)
	idRE   = regexp.MustCompile(`^\p{L}?\d+$`)
)

// Employee is the identity encoded in a source photo filename:
// {name}_{identifier}_{role}[_{sequence}].
type Employee struct {
	FullName    string `json:"full_name"`
	Identifier  string `json:"identifier"`
	RoleCode    string `json:"role_code"`
	RoleDisplay string `json:"role_display"`
	Sequence    string `json:"sequence"`
}

// Reason classifies why a filename was rejected.
type Reason string

const (
	ReasonFormat            Reason = "InvalidIdentityFormat"
	ReasonMissingName       Reason = "MissingName"
	ReasonMissingIdentifier Reason = "MissingIdentifier"
	ReasonUnknownRole       Reason = "UnknownRole"
)

// ParseError reports why a source filename could not be parsed.
type ParseError struct {
	Reason Reason
	Input  string
	Value  string
	Valid  []string
}

func (e *ParseError) Error() string {
	switch e.Reason {
	case ReasonFormat:
		return fmt.Sprintf("filename %q: expected name_identifier_role[_sequence]", e.Input)
	case ReasonMissingName:
		return fmt.Sprintf("filename %q: user name not found (got %q)", e.Input, e.Value)
	case ReasonMissingIdentifier:
		return fmt.Sprintf("filename %q: user id not found (got %q)", e.Input, e.Value)
	case ReasonUnknownRole:
		return fmt.Sprintf("filename %q: role %q not in %v", e.Input, e.Value, e.Valid)
	}
	return fmt.Sprintf("filename %q: %s", e.Input, e.Reason)
}

// Stem strips the directory and the final extension from a filename.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseFilename parses a full filename (directory and extension are ignored).
func ParseFilename(filename string, roles RoleTable) (Employee, error) {
	return Parse(Stem(filename), roles)
}

// Parse validates a filename stem and resolves its role code through roles.
func Parse(stem string, roles RoleTable) (Employee, error) {
	parts := strings.Split(stem, Separator)
	if len(parts) < 3 {
		return Employee{}, &ParseError{Reason: ReasonFormat, Input: stem}
	}

	name := strings.TrimSpace(parts[0])
	if name == "" || !nameRE.MatchString(name) {
		return Employee{}, &ParseError{Reason: ReasonMissingName, Input: stem, Value: parts[0]}
	}

	id := strings.TrimSpace(parts[1])
	if id == "" || !idRE.MatchString(id) {
		return Employee{}, &ParseError{Reason: ReasonMissingIdentifier, Input: stem, Value: parts[1]}
	}

	code, display, ok := roles.Resolve(parts[2])
	if !ok {
		return Employee{}, &ParseError{
			Reason: ReasonUnknownRole,
			Input:  stem,
			Value:  strings.TrimSpace(parts[2]),
			Valid:  roles.Codes(),
		}
	}

	seq := DefaultSequence
	if len(parts) >= 4 {
		if s := strings.TrimSpace(parts[3]); s != "" {
			seq = s
		}
	}

	return Employee{
		FullName:    name,
		Identifier:  id,
		RoleCode:    code,
		RoleDisplay: display,
		Sequence:    seq,
	}, nil
}

// OutputName derives the badge filename. Distinct (name, id, role, sequence)
// tuples give distinct names; collisions are left to the caller.
func OutputName(prefix string, e Employee) string {
	return fmt.Sprintf("%s-%s_%s_%s_%s.png",
		prefix,
		strings.ToUpper(e.FullName),
		strings.ToUpper(e.RoleDisplay),
		strings.ToUpper(e.Identifier),
		e.Sequence,
	)
}
