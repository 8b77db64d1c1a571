package extract

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
)

const maxLineBytes = 1 << 20

// Lines reads already-decoded document text and returns its trimmed,
// non-empty lines in order. A line longer than 1 MiB fails the whole read
// with model.ErrLineTooLong.
func Lines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var out []string
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("line %d longer than %d bytes: %w", len(out)+1, maxLineBytes, model.ErrLineTooLong)
		}
		return nil, err
	}
	return out, nil
}
