// Package variables implements the shell's string-keyed variable
// environment: a name→value table with typed accessors layered over a
// single string representation, plus a debug dump used by the shell's
// "vars" command.
//
// Entries are created on first assignment, mutated in place on
// reassignment, and never removed — reassigning to unset just marks the
// value absent while the name stays known, so Show keeps rendering it in
// its original position.
package variables

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrEmptyName is returned by SetString/SetInt when name is empty.
var ErrEmptyName = errors.New("variables: name must not be empty")

// ErrNotSet is returned by GetInt when the variable is unknown or unset.
var ErrNotSet = errors.New("variables: not set")

// ErrNotInt is returned by GetInt when the value is not a strict base-10
// signed integer.
var ErrNotInt = errors.New("variables: not an integer")

type entry struct {
	name  string
	value string
	isSet bool
}

// Store is a string-keyed variable table. The zero value is ready to use.
// Store is not safe for concurrent use without external synchronization.
type Store struct {
	order  []*entry
	byName map[string]*entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{byName: make(map[string]*entry)}
}

func (s *Store) ensureMap() {
	if s.byName == nil {
		s.byName = make(map[string]*entry)
	}
}

// GetString returns the current value of name and true, or ("", false) if
// the name is unknown or currently unset. The returned string is a copy;
// callers may retain it across further mutation of the store.
func (s *Store) GetString(name string) (string, bool) {
	s.ensureMap()
	e, ok := s.byName[name]
	if !ok || !e.isSet {
		return "", false
	}
	return e.value, true
}

// GetInt parses the named variable as a strict base-10 signed integer and
// writes it to out. It fails if the variable is unknown, unset, empty, or
// contains anything beyond an optional leading '-' and decimal digits
// (no leading '+', no surrounding whitespace, no partial match), or if the
// digits carry a redundant leading zero ("01").
func (s *Store) GetInt(name string, out *int64) error {
	val, ok := s.GetString(name)
	if !ok {
		return fmt.Errorf("get int %q: %w", name, ErrNotSet)
	}
	if val == "" {
		return fmt.Errorf("get int %q: %w", name, ErrNotInt)
	}
	if !isStrictInt(val) {
		return fmt.Errorf("get int %q: %w", name, ErrNotInt)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fmt.Errorf("get int %q: %w", name, ErrNotInt)
	}
	*out = n
	return nil
}

// isStrictInt rejects anything ParseInt would otherwise tolerate that the
// shell's grammar does not: a leading '+' or a redundant leading zero
// ahead of further digits. It also rejects any non-digit character.
func isStrictInt(s string) bool {
	i := 0
	if s[i] == '-' {
		i++
	}
	if i == len(s) {
		return false
	}
	digits := s[i:]
	if len(digits) > 1 && digits[0] == '0' {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SetString creates or updates name to hold value. The store takes its own
// copy of value. Returns ErrEmptyName if name is empty.
func (s *Store) SetString(name, value string) error {
	return s.set(name, value, true)
}

// Unset marks name's entry as unset without forgetting the name. Returns
// ErrEmptyName if name is empty.
func (s *Store) Unset(name string) error {
	return s.set(name, "", false)
}

func (s *Store) set(name, value string, isSet bool) error {
	if name == "" {
		return ErrEmptyName
	}
	s.ensureMap()
	if e, ok := s.byName[name]; ok {
		e.value = value
		e.isSet = isSet
		return nil
	}
	e := &entry{name: name, value: value, isSet: isSet}
	s.byName[name] = e
	s.order = append(s.order, e)
	return nil
}

// SetInt stores the canonical base-10 text of v: a leading '-' for
// negatives, no leading zeros beyond the single digit "0".
func (s *Store) SetInt(name string, v int64) error {
	return s.SetString(name, strconv.FormatInt(v, 10))
}

// Show writes a brace-delimited debug rendering of every known variable in
// the order each was first defined: "{}" when empty, otherwise "{" +
// entries joined by ", " + "}", where a set entry renders as "name=value"
// and an unset entry renders as "name " (name followed by one space, no
// trailing newline). The trailing-space rendering for unset entries is
// kept for output-format compatibility even though it reads as ambiguous
// next to a value that happens to be empty.
func (s *Store) Show(w io.Writer) error {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range s.order {
		if i > 0 {
			b.WriteString(", ")
		}
		if e.isSet {
			fmt.Fprintf(&b, "%s=%s", e.name, e.value)
		} else {
			fmt.Fprintf(&b, "%s ", e.name)
		}
	}
	b.WriteByte('}')
	_, err := io.WriteString(w, b.String())
	return err
}
