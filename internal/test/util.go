package test

import (
	"fmt"
	"testing"

	"github.com/evanw/esmloader/internal/logger"
)

func AssertEqual(t *testing.T, observed interface{}, expected interface{}) {
	t.Helper()
	if observed != expected {
		t.Fatalf("%s != %s", fmt.Sprint(observed), fmt.Sprint(expected))
	}
}

func AssertEqualWithDiff(t *testing.T, observed string, expected string) {
	t.Helper()
	if observed != expected {
		stringA := observed
		stringB := expected
		if observed != "" && expected != "" {
			stringA = Diff(observed, expected, false)
			stringB = ""
		}
		t.Fatalf("\n%s\n%s", stringA, stringB)
	}
}

func SourceForTest(contents string) logger.Source {
	return logger.Source{
		KeyPath:    "<stdin>",
		PrettyPath: "<stdin>",
		Contents:   contents,
	}
}
