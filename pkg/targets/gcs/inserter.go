package gcs

import (
	"context"
	"io"
	"sync"

	"github.com/lawrencejones/concatsink/pkg/targets/file"
	"github.com/pkg/errors"
)

// Inserter streams newline-delimited chunks into a single object. Nothing is visible in
// the bucket until Close, and Abort discards the upload entirely.
type Inserter[T any] struct {
	name       string
	writer     io.WriteCloser
	cancel     context.CancelFunc
	serializer file.Serializer[T]
	done       bool
	sync.Mutex
}

// Open starts an upload of the named object. The upload is tied to ctx, and is abandoned
// if ctx expires before the inserter is closed, whatever context Close is later given.
// Objects opens every upload with the context given to the sink's Start, so under
// pipe.Pipe a cancelled pipe abandons the object being written.
func Open[T any](ctx context.Context, open ObjectWriterFunc, name string, serializer file.Serializer[T]) *Inserter[T] {
	ctx, cancel := context.WithCancel(ctx)

	return &Inserter[T]{
		name:       name,
		writer:     open(ctx, name),
		cancel:     cancel,
		serializer: serializer,
	}
}

func (i *Inserter[T]) Name() string { return i.name }

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

	if i.done {
		return errors.Errorf("cannot insert into finished object %s", i.name)
	}

	_, err = i.writer.Write(append(bytes, '\n'))
	return errors.Wrapf(err, "failed to write chunk to %s", i.name)
}

// Close completes the upload. Closing more than once is a no-op.
func (i *Inserter[T]) Close(context.Context) error {
	i.Lock()
	defer i.Unlock()

	if i.done {
		return nil
	}

	i.done = true
	defer i.cancel()

	return errors.Wrapf(i.writer.Close(), "failed to finalize object %s", i.name)
}

// Abort cancels the upload. The writer will report the cancellation when closed, which is
// exactly what we asked for, so that error is discarded.
func (i *Inserter[T]) Abort(context.Context, error) error {
	i.Lock()
	defer i.Unlock()

	if i.done {
		return nil
	}

	i.done = true
	i.cancel()
	i.writer.Close()

	return nil
}
