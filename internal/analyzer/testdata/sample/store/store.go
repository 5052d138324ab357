package store

import "strings"

// Memory is an in-memory Store.
type Memory struct {
	data map[string]string
}

func (m *Memory) Get(key string) string {
	return m.data[strings.ToLower(key)]
}

func New() *Memory {
	return &Memory{data: map[string]string{}}
}

var Default = New()

func unused() {}
