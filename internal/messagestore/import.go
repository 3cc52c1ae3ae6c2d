package messagestore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Import copies a JSON Lines inbox dump into st. Blank lines are skipped;
// the first malformed line aborts the import with its line number.
func Import(ctx context.Context, st Store, r io.Reader) (int, error) {
	if st == nil {
		return 0, ErrDisabled
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n, line := 0, 0
	for sc.Scan() {
		line++
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		var m Message
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := st.Insert(ctx, m); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	return n, sc.Err()
}
