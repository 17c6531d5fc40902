package cmd

import (
	"bufio"
	"io"
	"iter"
	"os"
)

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" || path == "/dev/stdin" {
		return io.NopCloser(os.Stdin), nil
	}

	return os.Open(path)
}

// scanLines yields each line of r as a chunk. If reading fails we call onError and stop,
// leaving the caller to fail the pipe.
func scanLines(r io.Reader, onError func(error)) iter.Seq[string] {
	return func(yield func(string) bool) {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			onError(err)
		}
	}
}
