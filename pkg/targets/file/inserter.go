package file

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Inserter appends newline-delimited chunks to a file. It is safe for concurrent use, and
// implements targets.Finalizer so the file is closed when its target is.
type Inserter[T any] struct {
	path       string
	file       *os.File
	serializer Serializer[T]
	closed     bool
	sync.Mutex
}

// Open creates or appends to the file at path. /dev/stdout and /dev/stderr are mapped to
// the process streams, which are never closed or removed.
func Open[T any](path string, serializer Serializer[T]) (*Inserter[T], error) {
	file, err := openFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	return &Inserter[T]{path: path, file: file, serializer: serializer}, nil
}

func openFile(path string) (*os.File, error) {
	switch path {
	case "/dev/stdout":
		return os.Stdout, nil
	case "/dev/stderr":
		return os.Stderr, nil
	}

	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (i *Inserter[T]) Path() string { return i.path }

func (i *Inserter[T]) Insert(ctx context.Context, chunk T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bytes, err := i.serializer.Marshal(chunk)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chunk")
	}

	i.Lock()
	defer i.Unlock()

	if i.closed {
		return errors.Errorf("cannot insert into closed file %s", i.path)
	}

	_, err = i.file.Write(append(bytes, '\n'))
	return errors.Wrap(err, "failed to write chunk")
}

// Close syncs and closes the file. Closing more than once is a no-op.
func (i *Inserter[T]) Close(context.Context) error {
	i.Lock()
	defer i.Unlock()

	return i.close()
}

func (i *Inserter[T]) close() error {
	if i.closed || i.isStdio() {
		i.closed = true
		return nil
	}

	i.closed = true
	if err := i.file.Sync(); err != nil {
		i.file.Close()
		return errors.Wrapf(err, "failed to sync %s", i.path)
	}

	return errors.Wrapf(i.file.Close(), "failed to close %s", i.path)
}

// Abort closes the file and removes it, discarding the partial contents.
func (i *Inserter[T]) Abort(context.Context, error) error {
	i.Lock()
	defer i.Unlock()

	if err := i.close(); err != nil {
		return err
	}

	if i.isStdio() {
		return nil
	}

	return errors.Wrapf(os.Remove(i.path), "failed to remove aborted %s", i.path)
}

func (i *Inserter[T]) isStdio() bool {
	return i.file == os.Stdout || i.file == os.Stderr
}
