package kida

import "github.com/kida-lang/kida/loader"

type Loader = loader.Loader

type FilterFunc func(value interface{}, args ...interface{}) (interface{}, error)

type TestFunc func(value interface{}, args ...interface{}) (bool, error)
