package app

import (
	"example.com/sample"
	"example.com/sample/store"
)

func Run(s sample.Store) string {
	return s.Get(sample.Version)
}

func Main() string {
	return Run(store.New())
}
