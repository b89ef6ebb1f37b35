// Package utils holds small generic helpers shared by the services.
//
// Functional Programming Utilities:
//   - Map, Filter: generic implementations for slice processing.
//
// Slices:
//   - Contains, Uniq
//
// Validation Helpers:
//   - IsAlphanumericPlus: checks a string against letters, digits and a given set of extras.
package utils

import (
	"fmt"
	"regexp"
	"strings"
)

/* some Functional Programming in Go */
// map
type mapFunc[E any, R any] func(E) R

// Map function definition of a functional programming "function"
func Map[S ~[]E, E any, R any](s S, f mapFunc[E, R]) []R {
	result := make([]R, len(s))
	for i, e := range s {
		result[i] = f(e)
	}

	return result
}

// filter
type keepFunc[E any] func(E) bool

// Filter function definition of a functional programming "function"
func Filter[S ~[]E, E any](s S, f keepFunc[E]) S {
	result := S{}
	for _, v := range s {
		if f(v) {
			result = append(result, v)
		}
	}

	return result
}

// Contains function iterates over a slice of strings and checks if the given string is there
func Contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}

	return false
}

// Uniq trims every entry, drops the empty ones and keeps the first
// occurrence of each value. The result is never nil.
func Uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}

// IsAlphanumericPlus function checks if the given string matches the regex of numericals
// and letter characters plus some special characters given
func IsAlphanumericPlus(s, plus string) bool {
	re := regexp.MustCompile(fmt.Sprintf(`^[a-zA-Z0-9%s]+$`, regexp.QuoteMeta(plus)))

	return re.MatchString(s)
}
