package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
)

// newFlags — набор флагов команды; справку печатает Run.
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	return fs
}

// parse разбирает флаги вперемешку с позиционными аргументами
// ("comment 5 --text hi" и "comment --text hi 5") и проверяет их число.
func parse(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	var pos []string

	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}

		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		pos = append(pos, rest[0])
		args = rest[1:]
	}

	if len(pos) != positional {
		return nil, fmt.Errorf("%w: expected %d argument(s), got %d", errUsage, positional, len(pos))
	}

	return pos, nil
}

// parseID разбирает положительный идентификатор.
func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", errUsage, name, s)
	}
	return id, nil
}

// optionalID — значение флага-идентификатора: 0 — не задан.
func optionalID(name string, v int64) (*int64, error) {
	switch {
	case v == 0:
		return nil, nil
	case v < 0:
		return nil, fmt.Errorf("%w: --%s must be positive", errUsage, name)
	default:
		return &v, nil
	}
}
