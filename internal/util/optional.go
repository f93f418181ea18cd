// Package util holds the small generic helpers shared across the engine:
// the Optional wrapper used for nullable columns and patch-style params, and
// the random-token generator for invites.
package util

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Optional is a present/absent wrapper. It backs three distinct uses here:
// nullable database columns (owner_user_id vs owner_group_id), partial-update
// params where absent means "leave unchanged", and JSON fields where null and
// missing both decode to None.
type Optional[T any] struct {
	Val   T
	IsSet bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Val: v, IsSet: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Unwrap returns the value and panics on None. Reserved for call sites that
// have already checked IsSet; everything else goes through UnwrapOr.
func (o Optional[T]) Unwrap() T {
	if !o.IsSet {
		panic("util: Unwrap of a None value")
	}
	return o.Val
}

func (o Optional[T]) UnwrapOr(fallback T) T {
	if !o.IsSet {
		return fallback
	}
	return o.Val
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.IsSet {
		return []byte("null"), nil
	}
	return json.Marshal(o.Val)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Scan maps SQL NULL to None. pgx falls back to this scanner for the wrapper
// type; the element type carries the column codec.
func (o *Optional[T]) Scan(value any) error {
	if value == nil {
		*o = None[T]()
		return nil
	}

	var v T
	switch inner := any(&v).(type) {
	case interface{ Scan(any) error }:
		if err := inner.Scan(value); err != nil {
			return err
		}
	default:
		typed, ok := value.(T)
		if !ok {
			return fmt.Errorf("util: cannot scan %T into Optional[%T]", value, v)
		}
		v = typed
	}

	*o = Some(v)
	return nil
}

// Value maps None to SQL NULL.
func (o Optional[T]) Value() (driver.Value, error) {
	if !o.IsSet {
		return nil, nil
	}
	switch inner := any(o.Val).(type) {
	case interface{ Value() (any, error) }:
		return inner.Value()
	default:
		return o.Val, nil
	}
}

func (o Optional[T]) String() string {
	if !o.IsSet {
		return ""
	}
	return fmt.Sprintf("%v", o.Val)
}
