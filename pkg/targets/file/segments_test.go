package file_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/lawrencejones/concatsink/pkg/concat"
	"github.com/lawrencejones/concatsink/pkg/pipe"
	"github.com/lawrencejones/concatsink/pkg/targets/file"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Segments", func() {
	var (
		ctx    context.Context
		cancel func()
		dir    string
		opts   file.Options
		sink   *concat.Sink[string]
	)

	// segments returns the contents of every segment file, in the order they were created
	segments := func() []string {
		matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
		Expect(err).NotTo(HaveOccurred())

		slices.Sort(matches)

		contents := []string{}
		for _, match := range matches {
			bytes, err := os.ReadFile(match)
			Expect(err).NotTo(HaveOccurred())
			contents = append(contents, string(bytes))
		}

		return contents
	}

	BeforeEach(func() {
		var err error
		ctx, cancel = context.WithTimeout(context.Background(), time.Second)
		dir, err = os.MkdirTemp("", "concatsink-segments-")
		Expect(err).NotTo(HaveOccurred())

		opts = file.Options{
			Directory:        dir,
			Prefix:           "segment",
			Extension:        "jsonl",
			ChunksPerSegment: 3,
			Instrument:       true,
		}
	})

	AfterEach(func() {
		cancel()
		os.RemoveAll(dir)
	})

	JustBeforeEach(func() {
		sink = concat.New(concat.Generator(file.Segments[string](logger, file.Raw[string]{}, opts)), concat.WithLogger(logger))
	})

	It("rolls to a new segment every ChunksPerSegment chunks", func() {
		chunks := []string{"a", "b", "c", "d", "e", "f", "g"}
		Expect(pipe.Pipe(ctx, logger, slices.Values(chunks), sink)).To(Succeed())

		Expect(segments()).To(Equal([]string{"a\nb\nc\n", "d\ne\nf\n", "g\n"}))
		Expect(strings.Join(segments(), "")).To(Equal(strings.Join(chunks, "\n") + "\n"))
	})

	Context("with MaxSegments", func() {
		BeforeEach(func() {
			opts.MaxSegments = 2
		})

		It("fails once every segment is full, keeping what was written", func() {
			err := pipe.Pipe(ctx, logger, slices.Values([]string{"a", "b", "c", "d", "e", "f", "g"}), sink)
			Expect(errors.Is(err, concat.ErrSupplyExhausted)).To(BeTrue(), "expected exhaustion, got %v", err)
			Expect(segments()).To(Equal([]string{"a\nb\nc\n", "d\ne\nf\n"}))
		})
	})

	Context("when aborted", func() {
		It("removes the active segment, and keeps those already rolled", func() {
			Expect(sink.Start(ctx)).To(Succeed())
			for _, chunk := range []string{"a", "b", "c", "d"} {
				Expect(sink.Write(ctx, chunk)).To(Succeed())
			}

			Expect(sink.Abort(ctx, errors.New("producer failed"))).To(Succeed())
			Expect(segments()).To(Equal([]string{"a\nb\nc\n"}))
		})
	})

	Context("when the directory cannot be written to", func() {
		BeforeEach(func() {
			opts.Directory = filepath.Join(dir, "missing")
		})

		It("fails to start", func() {
			Expect(sink.Start(ctx)).To(MatchError(ContainSubstring("failed to open")))
		})
	})
})

var _ = Describe("SegmentName", func() {
	It("sorts in creation order", func() {
		names := []string{}
		for idx := 0; idx < 12; idx++ {
			names = append(names, file.SegmentName("segment", "jsonl", idx))
		}

		Expect(slices.IsSorted(names)).To(BeTrue())
	})

	It("is unique across runs", func() {
		Expect(file.SegmentName("segment", "jsonl", 0)).NotTo(Equal(file.SegmentName("segment", "jsonl", 0)))
	})
})
