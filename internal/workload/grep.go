package workload

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"sync/atomic"

	"github.com/tahsin716/stealpool"
	"github.com/tahsin716/stealpool/group"
)

// Keyword appears once every 1000 lines of a generated corpus.
const Keyword = "important_data_packet"

// GenerateCorpus writes lines filler lines, plus one keyword line after
// every thousandth, and returns how many keyword lines it wrote.
func GenerateCorpus(w io.Writer, lines int) (int, error) {
	bw := bufio.NewWriter(w)
	special := 0
	for i := 0; i < lines; i++ {
		if _, err := fmt.Fprintf(bw, "Line %d: The quick brown fox jumps over the lazy dog. ID=%x\n", i, i); err != nil {
			return special, err
		}
		if i%1000 == 0 {
			if _, err := fmt.Fprintf(bw, "Line %d contains a special keyword: '%s'.\n", i, Keyword); err != nil {
				return special, err
			}
			special++
		}
	}
	return special, bw.Flush()
}

// ReadLines reads r fully, one string per line.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// Grep counts the lines matching pattern, chunk lines per task.
func Grep(ctx context.Context, pool *stealpool.Pool, lines []string, pattern string, chunk int) (int, error) {
	if chunk <= 0 {
		return 0, fmt.Errorf("chunk size must be positive, got %d", chunk)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("compile pattern: %w", err)
	}

	var matches atomic.Int64
	g := group.New(ctx, pool, group.WithErrorMode(group.FailFast))
	for lo := 0; lo < len(lines); lo += chunk {
		hi := min(lo+chunk, len(lines))
		g.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			local := 0
			for _, line := range lines[lo:hi] {
				if re.MatchString(line) {
					local++
				}
			}
			matches.Add(int64(local))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("grep: %w", err)
	}
	return int(matches.Load()), nil
}
