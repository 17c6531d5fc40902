package file

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin"
	"github.com/lawrencejones/concatsink/pkg/concat"
	"github.com/lawrencejones/concatsink/pkg/targets"

	kitlog "github.com/go-kit/kit/log"
	"github.com/google/uuid"
)

type Options struct {
	Directory        string
	Prefix           string
	Extension        string
	ChunksPerSegment int
	MaxSegments      int
	Instrument       bool
}

func (opt *Options) Bind(cmd *kingpin.CmdClause, prefix string) *Options {
	cmd.Flag(fmt.Sprintf("%sdirectory", prefix), "Directory to write segment files into").Default(".").StringVar(&opt.Directory)
	cmd.Flag(fmt.Sprintf("%sprefix", prefix), "Prefix for each segment file name").Default("segment").StringVar(&opt.Prefix)
	cmd.Flag(fmt.Sprintf("%sextension", prefix), "Extension for each segment file name").Default("jsonl").StringVar(&opt.Extension)
	cmd.Flag(fmt.Sprintf("%schunks-per-segment", prefix), "Number of chunks written to each segment before rolling").Default("1000").IntVar(&opt.ChunksPerSegment)
	cmd.Flag(fmt.Sprintf("%smax-segments", prefix), "Maximum number of segments to create, 0 for unlimited").Default("0").IntVar(&opt.MaxSegments)
	cmd.Flag(fmt.Sprintf("%sinstrument", prefix), "Enable instrumentation").Default("true").BoolVar(&opt.Instrument)

	return opt
}

// Segments generates file targets, each accepting ChunksPerSegment chunks before it
// rejects writes and the sink rolls on to the next. Segment names sort in the order they
// were created.
//
// The sink only finalizes the last segment. Whenever the sink moves past a segment we
// close it here instead.
func Segments[T any](logger kitlog.Logger, serializer Serializer[T], opts Options) concat.GeneratorFunc[T] {
	logger = kitlog.With(logger, "component", "file_segments", "directory", opts.Directory)

	return func(ctx context.Context, yield concat.Yield[T]) error {
		for idx := 0; opts.MaxSegments <= 0 || idx < opts.MaxSegments; idx++ {
			more, err := yieldSegment(ctx, logger, serializer, opts, idx, yield)
			if err != nil {
				return err
			}

			if !more {
				return nil
			}
		}

		logger.Log("event", "segments_exhausted", "max_segments", opts.MaxSegments)

		return nil
	}
}

func yieldSegment[T any](ctx context.Context, logger kitlog.Logger, serializer Serializer[T], opts Options, idx int, yield concat.Yield[T]) (bool, error) {
	path := filepath.Join(opts.Directory, SegmentName(opts.Prefix, opts.Extension, idx))
	inserter, err := Open(path, serializer)
	if err != nil {
		return false, err
	}

	var insert targets.Inserter[T] = inserter
	if opts.ChunksPerSegment > 0 {
		insert = targets.Limit(insert, opts.ChunksPerSegment)
	}

	if opts.Instrument {
		insert = targets.NewInstrumentedInserter(logger, "file", insert)
	}

	logger = kitlog.With(logger, "segment", idx, "path", path)
	logger.Log("event", "segment.open")

	more, reason := yield(targets.New(path, insert))
	if !more {
		// The sink has terminated, and will have finalized this segment itself
		return false, nil
	}

	logger.Log("event", "segment.rotate", "reason", reason)
	if err := inserter.Close(ctx); err != nil {
		return false, err
	}

	return true, nil
}

// SegmentName builds the file name for the idx'th segment. A short random suffix avoids
// collisions with segments written by previous runs.
func SegmentName(prefix, extension string, idx int) string {
	return fmt.Sprintf("%s-%06d-%s.%s", prefix, idx, strings.SplitN(uuid.New().String(), "-", 2)[0], extension)
}
