package log

import (
	"reflect"
	"strings"

	"github.com/keboola/go-utils/pkg/wildcards"
	"github.com/stretchr/testify/assert"

	"github.com/iotline/monitoring-config/internal/pkg/encoding/json"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

// CompareJSONMessages checks that every expected JSON message occurs in actual, in order.
// The match is a subset match: actual may contain extra messages and extra fields.
// String fields are compared with wildcards, for example %s.
func CompareJSONMessages(expected string, actual string) error {
	actualLines := splitMessages(actual)
	next := 0

	for _, expectedLine := range splitMessages(expected) {
		want := map[string]any{}
		if err := json.DecodeString(expectedLine, &want); err != nil {
			return errors.PrefixErrorf(err, "expected message is not valid json:\n%s", expectedLine)
		}

		matched := false
		for ; next < len(actualLines); next++ {
			got := map[string]any{}
			if err := json.DecodeString(actualLines[next], &got); err != nil {
				return errors.PrefixErrorf(err, "actual message is not valid json:\n%s", actualLines[next])
			}
			if messageMatches(want, got) {
				matched = true
				next++
				break
			}
		}

		if !matched {
			return errors.Errorf(
				"expected message not found:\n%s\nsearched in:\n%s",
				expectedLine, strings.Join(actualLines, "\n"),
			)
		}
	}

	return nil
}

// AssertJSONMessages fails the test when CompareJSONMessages reports a mismatch.
func AssertJSONMessages(t assert.TestingT, expected string, actual string, msgAndArgs ...any) bool {
	if err := CompareJSONMessages(expected, actual); err != nil {
		assert.Fail(t, err.Error(), msgAndArgs...)
		return false
	}
	return true
}

func messageMatches(want, got map[string]any) bool {
	for key, wantValue := range want {
		gotValue, found := got[key]
		if !found {
			return false
		}
		if wantString, ok := wantValue.(string); ok {
			gotString, ok := gotValue.(string)
			if !ok || wildcards.Compare(wantString, gotString) != nil {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(wantValue, gotValue) {
			return false
		}
	}
	return true
}

func splitMessages(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
