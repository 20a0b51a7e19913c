package defect

import "strings"

type Type string

const (
	TypeNormal     Type = "normal"
	TypeUrgent     Type = "urgent"
	TypeHazardous  Type = "hazardous"
	TypeRecyclable Type = "recyclable"
)

var Types = []Type{TypeNormal, TypeUrgent, TypeHazardous, TypeRecyclable}

func (t Type) IsValid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// ParseType maps an empty value to the default type.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TypeNormal, nil
	}
	t := Type(s)
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	return t, nil
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusVerified   Status = "verified"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

var Statuses = []Status{StatusPending, StatusVerified, StatusInProgress, StatusResolved, StatusRejected}

func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus has no default: a status change must name its target.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// CanTransition reports whether from -> to is an allowed status change.
// Every pair of known statuses is allowed, including reopening resolved or
// rejected reports; only the caller's role gates the change.
func CanTransition(from, to Status) bool {
	return from.IsValid() && to.IsValid()
}
