package gather

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// progressTracker records, per symbol, the last date already fetched, and
// the end date of the last completed run. State lives in two files:
//
//	<dir>/.fetched         "SYMBOL YYYYMMDD" lines, last line per symbol wins
//	<dir>/.last-completed  YYYYMMDD
type progressTracker struct {
	mu      sync.Mutex
	fetched map[string]int
	writer  *bufio.Writer
	file    *os.File
	dir     string
}

// newProgressTracker creates a tracker rooted at dir and loads any existing
// .fetched entries.
func newProgressTracker(dir string) (*progressTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	pt := &progressTracker{
		fetched: make(map[string]int),
		dir:     dir,
	}

	path := filepath.Join(dir, ".fetched")
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .fetched: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		date, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		pt.fetched[fields[0]] = date
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening .fetched: %w", err)
	}
	pt.file = f
	pt.writer = bufio.NewWriter(f)

	return pt, nil
}

// FetchedThrough returns the last fetched date for symbol, or 0.
func (p *progressTracker) FetchedThrough(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetched[symbol]
}

// MarkFetched records that symbols have been fetched through date.
func (p *progressTracker) MarkFetched(symbols []string, date int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sym := range symbols {
		if p.fetched[sym] >= date {
			continue
		}
		p.fetched[sym] = date
		if _, err := fmt.Fprintf(p.writer, "%s %d\n", sym, date); err != nil {
			return fmt.Errorf("writing to .fetched: %w", err)
		}
	}
	return p.writer.Flush()
}

// MarkCompleted writes date to .last-completed.
func (p *progressTracker) MarkCompleted(date int) error {
	path := filepath.Join(p.dir, ".last-completed")
	return os.WriteFile(path, []byte(strconv.Itoa(date)), 0o644)
}

// LastCompleted returns the date in .last-completed, or 0.
func (p *progressTracker) LastCompleted() int {
	data, err := os.ReadFile(filepath.Join(p.dir, ".last-completed"))
	if err != nil {
		return 0
	}
	date, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return date
}

// Close flushes and closes the .fetched file.
func (p *progressTracker) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		p.writer.Flush()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
