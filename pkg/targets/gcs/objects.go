package gcs

import (
	"context"
	"fmt"
	"path"

	"github.com/alecthomas/kingpin"
	"github.com/lawrencejones/concatsink/pkg/concat"
	"github.com/lawrencejones/concatsink/pkg/targets"
	"github.com/lawrencejones/concatsink/pkg/targets/file"

	kitlog "github.com/go-kit/kit/log"
)

type Options struct {
	Bucket          string
	Prefix          string
	ContentType     string
	ChunksPerObject int
	MaxObjects      int
	Instrument      bool
}

func (opt *Options) Bind(cmd *kingpin.CmdClause, prefix string) *Options {
	cmd.Flag(fmt.Sprintf("%sbucket", prefix), "Bucket to upload objects into").StringVar(&opt.Bucket)
	cmd.Flag(fmt.Sprintf("%sprefix", prefix), "Object name prefix, may contain slashes").Default("segments/segment").StringVar(&opt.Prefix)
	cmd.Flag(fmt.Sprintf("%scontent-type", prefix), "Content type of each uploaded object").Default("application/x-ndjson").StringVar(&opt.ContentType)
	cmd.Flag(fmt.Sprintf("%schunks-per-object", prefix), "Number of chunks written to each object before rolling").Default("10000").IntVar(&opt.ChunksPerObject)
	cmd.Flag(fmt.Sprintf("%smax-objects", prefix), "Maximum number of objects to create, 0 for unlimited").Default("0").IntVar(&opt.MaxObjects)
	cmd.Flag(fmt.Sprintf("%sinstrument", prefix), "Enable instrumentation").Default("true").BoolVar(&opt.Instrument)

	return opt
}

// Objects generates object targets in the same way file.Segments generates files. Objects
// the sink moves past are finalized here; the last one is finalized by the sink.
//
// Every upload is opened with the generator's context, which is the context given to the
// sink's Start (under pipe.Pipe, the pipe's context). Cancelling it abandons any object not
// yet finalized, even when the sink is then closed on a detached context.
func Objects[T any](logger kitlog.Logger, open ObjectWriterFunc, serializer file.Serializer[T], opts Options) concat.GeneratorFunc[T] {
	logger = kitlog.With(logger, "component", "gcs_objects", "bucket", opts.Bucket)

	return func(ctx context.Context, yield concat.Yield[T]) error {
		for idx := 0; opts.MaxObjects <= 0 || idx < opts.MaxObjects; idx++ {
			name := path.Join(path.Dir(opts.Prefix), file.SegmentName(path.Base(opts.Prefix), "jsonl", idx))
			inserter := Open(ctx, open, name, serializer)

			var insert targets.Inserter[T] = inserter
			if opts.ChunksPerObject > 0 {
				insert = targets.Limit(insert, opts.ChunksPerObject)
			}

			if opts.Instrument {
				insert = targets.NewInstrumentedInserter(logger, "gcs", insert)
			}

			logger := kitlog.With(logger, "object", name)
			logger.Log("event", "object.open")

			more, reason := yield(targets.New(name, insert))
			if !more {
				return nil
			}

			logger.Log("event", "object.rotate", "reason", reason)
			if err := inserter.Close(ctx); err != nil {
				return err
			}
		}

		logger.Log("event", "objects_exhausted", "max_objects", opts.MaxObjects)

		return nil
	}
}
