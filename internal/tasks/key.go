package tasks

import (
	"fmt"
	"strings"
)

const keySep = ":"

// Key identifies a task (and its deed ledger) by group and user.
type Key struct {
	GroupID string
	UserID  string
}

// NewKey validates and builds a key. Group ids name per-group files, so they
// may not contain ':', path separators or "..".
func NewKey(groupID, userID string) (Key, error) {
	groupID = strings.TrimSpace(groupID)
	userID = strings.TrimSpace(userID)
	if groupID == "" {
		return Key{}, &ValidationError{Field: "group_id", Reason: "required"}
	}
	if userID == "" {
		return Key{}, &ValidationError{Field: "user_id", Reason: "required"}
	}
	if strings.Contains(groupID, keySep) {
		return Key{}, &ValidationError{Field: "group_id", Value: groupID, Reason: "must not contain ':'"}
	}
	if strings.ContainsAny(groupID, `/\`) || strings.Contains(groupID, "..") {
		return Key{}, &ValidationError{Field: "group_id", Value: groupID, Reason: "must not contain path elements"}
	}
	return Key{GroupID: groupID, UserID: userID}, nil
}

// ParseKey parses the "group:user" form produced by String.
func ParseKey(s string) (Key, error) {
	g, u, ok := strings.Cut(s, keySep)
	if !ok {
		return Key{}, fmt.Errorf("parse task key %q: missing separator", s)
	}
	return NewKey(g, u)
}

func (k Key) String() string {
	return k.GroupID + keySep + k.UserID
}

// IsZero reports whether k is the empty key used by global jobs.
func (k Key) IsZero() bool {
	return k.GroupID == "" && k.UserID == ""
}

func (k Key) MarshalText() ([]byte, error) {
	if k.IsZero() {
		return []byte{}, nil
	}
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = Key{}
		return nil
	}
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Compare orders keys by group then user.
func (k Key) Compare(o Key) int {
	if c := strings.Compare(k.GroupID, o.GroupID); c != 0 {
		return c
	}
	return strings.Compare(k.UserID, o.UserID)
}
