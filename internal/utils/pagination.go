// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Paginate returns the zero-based page of items together with whether a
// previous and a next page exist.
//
// A negative page is treated as 0 and a non-positive pageSize as 1. A page
// past the end yields an empty slice with hasPrev set (when page > 0). The
// returned slice aliases items.
//
// Example:
//
//	items, prev, next := utils.Paginate(users, 1, 5) // users[5:10]
func Paginate[T any](items []T, page, pageSize int) (pageItems []T, hasPrev, hasNext bool) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	hasPrev = page > 0

	// Compare by division so huge pages cannot overflow page*pageSize.
	if len(items) == 0 || page > (len(items)-1)/pageSize {
		return items[:0:0], hasPrev, false
	}
	start := page * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	hasNext = end < len(items)
	return items[start:end], hasPrev, hasNext
}
