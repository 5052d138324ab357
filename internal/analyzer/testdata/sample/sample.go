// Package sample is the root of the analyzer fixture.
package sample

// Version is the release.
const Version = "1"

// Store reads values by key.
type Store interface {
	Get(key string) string
}
