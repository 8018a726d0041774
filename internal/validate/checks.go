package validate

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Required fails when the string is empty after trimming.
func Required[T any](get func(T) string, msg string) Check[T] {
	return func(v T, _ time.Time) string {
		if strings.TrimSpace(get(v)) == "" {
			return msg
		}
		return ""
	}
}

// MaxRunes fails when the string is longer than max characters.
func MaxRunes[T any](get func(T) string, max int, msg string) Check[T] {
	return func(v T, _ time.Time) string {
		if utf8.RuneCountInString(get(v)) > max {
			return msg
		}
		return ""
	}
}

// OneOf fails unless the predicate accepts the value.
// Use it for closed sets such as enums and catalogs.
func OneOf[T any](ok func(T) bool, msg string) Check[T] {
	return func(v T, _ time.Time) string {
		if !ok(v) {
			return msg
		}
		return ""
	}
}

// Set fails when the time is the zero value.
func Set[T any](get func(T) time.Time, msg string) Check[T] {
	return func(v T, _ time.Time) string {
		if get(v).IsZero() {
			return msg
		}
		return ""
	}
}

// After fails unless the time is strictly later than now.
// now is supplied per call, so the check never goes stale.
func After[T any](get func(T) time.Time, msg string) Check[T] {
	return func(v T, now time.Time) string {
		if !get(v).After(now) {
			return msg
		}
		return ""
	}
}

// NonEmpty fails when the collection has no elements.
func NonEmpty[T any](count func(T) int, msg string) Check[T] {
	return func(v T, _ time.Time) string {
		if count(v) == 0 {
			return msg
		}
		return ""
	}
}

// UniqueStrings fails when any element is blank or repeated.
func UniqueStrings[T any](get func(T) []string, msg string) Check[T] {
	return func(v T, _ time.Time) string {
		seen := make(map[string]bool)
		for _, s := range get(v) {
			if strings.TrimSpace(s) == "" || seen[s] {
				return msg
			}
			seen[s] = true
		}
		return ""
	}
}

// Each runs fn over every element and reports the first non-empty message.
func Each[T, E any](get func(T) []E, fn func(i int, e E) string) Check[T] {
	return func(v T, _ time.Time) string {
		for i, e := range get(v) {
			if msg := fn(i, e); msg != "" {
				return msg
			}
		}
		return ""
	}
}
