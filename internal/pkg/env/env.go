// Package env wraps environment variables with a map abstraction, for easy mocking in tests.
package env

import (
	"os"
	"sort"
	"strings"

	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

type Map struct {
	data map[string]string
}

func Empty() *Map {
	return &Map{data: make(map[string]string)}
}

func FromMap(data map[string]string) *Map {
	m := Empty()
	for k, v := range data {
		m.Set(k, v)
	}
	return m
}

func FromOs() (*Map, error) {
	m := Empty()
	for _, pair := range os.Environ() {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, errors.Errorf(`unexpected environment variable format "%s"`, pair)
		}
		m.Set(key, value)
	}
	return m, nil
}

func (m *Map) Keys() []string {
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Map) Lookup(key string) (string, bool) {
	value, found := m.data[strings.ToUpper(key)]
	return value, found
}

func (m *Map) Get(key string) string {
	return m.data[strings.ToUpper(key)]
}

func (m *Map) Set(key, value string) {
	m.data[strings.ToUpper(key)] = value
}

func (m *Map) Unset(key string) {
	delete(m.data, strings.ToUpper(key))
}
