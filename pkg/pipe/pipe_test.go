package pipe_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lawrencejones/concatsink/pkg/pipe"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// fakeSink records every call made against it, in order
type fakeSink struct {
	calls    []string
	chunks   []int
	reason   error
	StartErr error
	WriteErr func(int) error
	CloseErr error
	AbortErr error
	// abortCtxErr is the error of the context given to Abort, when it was called
	abortCtxErr error
}

func (s *fakeSink) Start(context.Context) error {
	s.calls = append(s.calls, "start")
	return s.StartErr
}

func (s *fakeSink) Write(_ context.Context, chunk int) error {
	s.calls = append(s.calls, fmt.Sprintf("write(%d)", chunk))
	if s.WriteErr != nil {
		if err := s.WriteErr(chunk); err != nil {
			return err
		}
	}

	s.chunks = append(s.chunks, chunk)
	return nil
}

func (s *fakeSink) Close(context.Context) error {
	s.calls = append(s.calls, "close")
	return s.CloseErr
}

func (s *fakeSink) Abort(ctx context.Context, reason error) error {
	s.calls = append(s.calls, "abort")
	s.reason, s.abortCtxErr = reason, ctx.Err()
	return s.AbortErr
}

var _ = Describe("Pipe", func() {
	var (
		ctx    context.Context
		cancel func()
		source []int
		sink   *fakeSink
		err    error
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), time.Second)
		source = []int{1, 2, 3}
		sink = &fakeSink{}
	})

	AfterEach(func() {
		cancel()
	})

	JustBeforeEach(func() {
		err = pipe.Pipe[int](ctx, logger, slices.Values(source), sink)
	})

	It("starts, writes every chunk in order, then closes", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(sink.calls).To(Equal([]string{"start", "write(1)", "write(2)", "write(3)", "close"}))
		Expect(sink.chunks).To(Equal(source))
	})

	Context("with an empty source", func() {
		BeforeEach(func() {
			source = []int{}
		})

		It("starts then closes", func() {
			Expect(sink.calls).To(Equal([]string{"start", "close"}))
		})
	})

	Context("when Close fails", func() {
		BeforeEach(func() {
			sink.CloseErr = errors.New("close failed")
		})

		It("returns the error without aborting", func() {
			Expect(err).To(MatchError(sink.CloseErr))
			Expect(sink.calls).NotTo(ContainElement("abort"))
		})
	})

	Context("when Start fails", func() {
		BeforeEach(func() {
			sink.StartErr = errors.New("no targets")
		})

		It("aborts without writing anything", func() {
			Expect(errors.Is(err, sink.StartErr)).To(BeTrue())
			Expect(sink.calls).To(Equal([]string{"start", "abort"}))
			Expect(errors.Is(sink.reason, sink.StartErr)).To(BeTrue())
		})
	})

	Context("when a write fails", func() {
		var writeErr = errors.New("write failed")

		BeforeEach(func() {
			sink.WriteErr = func(chunk int) error {
				if chunk == 2 {
					return writeErr
				}

				return nil
			}
		})

		It("stops reading, and aborts with the write's error", func() {
			Expect(err).To(Equal(writeErr))
			Expect(sink.calls).To(Equal([]string{"start", "write(1)", "write(2)", "abort"}))
			Expect(sink.reason).To(Equal(writeErr))
		})

		Context("and Abort also fails", func() {
			BeforeEach(func() {
				sink.AbortErr = errors.New("abort failed")
			})

			It("still returns the write's error", func() {
				Expect(err).To(Equal(writeErr))
			})
		})
	})

	Context("when the context is cancelled mid-stream", func() {
		BeforeEach(func() {
			sink.WriteErr = func(chunk int) error {
				if chunk == 1 {
					cancel()
				}

				return nil
			}
		})

		It("aborts with the context error, using a live context", func() {
			Expect(errors.Is(err, context.Canceled)).To(BeTrue(), "expected cancellation, got %v", err)
			Expect(sink.calls).To(Equal([]string{"start", "write(1)", "abort"}))
			Expect(sink.abortCtxErr).To(BeNil(), "abort should be able to clean up after cancellation")
		})
	})
})
