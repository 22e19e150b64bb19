package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SORT STATE
// ══════════════════════════════════════════════════════════════════════════════

// SortKey names a column a collection can be ordered by.
type SortKey string

const (
	KeyName       SortKey = "name"
	KeyDepartment SortKey = "department"
	KeyEmail      SortKey = "email"
	KeyDate       SortKey = "date"
	KeyTotal      SortKey = "total"
)

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func (d Direction) flip() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// SortState is the active column and direction of a view.
type SortState struct {
	Key       SortKey   `json:"key"`
	Direction Direction `json:"direction"`
}

// Toggle returns the state after the operator selects key: the same key flips
// direction, a new key starts ascending.
func (s SortState) Toggle(key SortKey) SortState {
	if s.Key == key {
		return SortState{Key: key, Direction: s.Direction.flip()}
	}
	return SortState{Key: key, Direction: Asc}
}

var (
	ErrUnsupportedSortKey = shared.NewDomainError("ranking", "SortBy", shared.ErrInvalidInput, "unsupported sort key")
	ErrInvalidDirection   = shared.NewDomainError("ranking", "SortBy", shared.ErrInvalidInput, "direction must be asc or desc")
)

// ParseSortState reads a key and direction from request input. An empty key
// yields the fallback state. An empty direction means ascending.
func ParseSortState(key, direction string, fallback SortState) (SortState, error) {
	if key == "" {
		return fallback, nil
	}
	st := SortState{Key: SortKey(strings.ToLower(key)), Direction: Asc}
	switch Direction(strings.ToLower(direction)) {
	case "", Asc:
	case Desc:
		st.Direction = Desc
	default:
		return SortState{}, ErrInvalidDirection
	}
	return st, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SORT VALUES
// ══════════════════════════════════════════════════════════════════════════════

type valueKind int

const (
	kindText valueKind = iota
	kindDate
	kindNumber
)

// Value is the comparable projection of an item under one key.
type Value struct {
	kind valueKind
	text string
	date timeutil.Date
	num  float64
}

// Text compares case-insensitively.
func Text(s string) Value { return Value{kind: kindText, text: strings.ToLower(s)} }

// Day compares as a calendar day. The zero date sorts first.
func Day(d timeutil.Date) Value { return Value{kind: kindDate, date: d} }

// Number compares numerically.
func Number(f float64) Value { return Value{kind: kindNumber, num: f} }

func (v Value) compare(o Value) int {
	if v.kind != o.kind {
		return cmp.Compare(v.kind, o.kind)
	}
	switch v.kind {
	case kindDate:
		return v.date.Compare(o.date)
	case kindNumber:
		return cmp.Compare(v.num, o.num)
	default:
		return strings.Compare(v.text, o.text)
	}
}

// Keys maps every sort key a collection supports to its projection.
type Keys[T any] map[SortKey]func(T) Value

// Supports reports whether key is defined.
func (k Keys[T]) Supports(key SortKey) bool {
	_, ok := k[key]
	return ok
}

// SortBy returns a stably sorted copy of items. Sorting an already sorted
// slice with the same state returns it unchanged.
func SortBy[T any](items []T, state SortState, keys Keys[T]) ([]T, error) {
	project, ok := keys[state.Key]
	if !ok {
		return nil, shared.WrapError("ranking", "SortBy", shared.ErrInvalidInput,
			fmt.Sprintf("key %q", state.Key), ErrUnsupportedSortKey)
	}

	sign := 1
	if state.Direction == Desc {
		sign = -1
	}

	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		return sign * project(a).compare(project(b))
	})
	return out, nil
}
