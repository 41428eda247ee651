package exitcode_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/evanw/esmloader/internal/exitcode"
	"github.com/evanw/esmloader/internal/resolver"
)

func TestGet(t *testing.T) {
	base := exitcode.Set(errors.New(""), 4)
	wrapped := fmt.Errorf("wrapping: %w", base)
	notFound := fmt.Errorf("loading: %w", &resolver.ModuleNotFoundError{Specifier: "./a.mjs"})

	testCases := map[string]struct {
		error
		int
	}{
		"nil":         {nil, 0},
		"default":     {errors.New(""), exitcode.Failure},
		"set":         {exitcode.Set(errors.New(""), exitcode.Usage), exitcode.Usage},
		"wrapped":     {wrapped, 4},
		"not found":   {notFound, exitcode.NotFound},
		"interrupted": {context.Canceled, exitcode.Interrupted},
		"set wins":    {exitcode.Set(context.Canceled, 5), 5},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := tc.error
			want := tc.int
			got := exitcode.Get(err)
			if got != want {
				t.Errorf("%v: %d != %d", err, got, want)
			}
		})
	}
}

func TestSet(t *testing.T) {
	t.Run("same-message", func(t *testing.T) {
		err := errors.New("hello")
		coder := exitcode.Set(err, 2)
		got := err.Error()
		want := coder.Error()
		if got != want {
			t.Errorf("error message %q != %q", got, want)
		}
	})
	t.Run("keep-chain", func(t *testing.T) {
		err := errors.New("hello")
		coder := exitcode.Set(err, 3)

		if !errors.Is(coder, err) {
			t.Errorf("broken chain: %v is not %v", coder, err)
		}
	})
	t.Run("nil", func(t *testing.T) {
		if exitcode.Set(nil, 3) != nil {
			t.Error("expected nil")
		}
	})
}
