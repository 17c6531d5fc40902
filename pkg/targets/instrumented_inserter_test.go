package targets_test

import (
	"context"
	"errors"

	"github.com/lawrencejones/concatsink/pkg/targets"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewInstrumentedInserter", func() {
	var (
		ctx      context.Context
		backend  *finalizingInserter
		inserter targets.Inserter[string]
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = newFinalizingInserter()
		inserter = targets.NewInstrumentedInserter[string](logger, "test", targets.Limit[string](backend, 1))
	})

	It("inserts into the wrapped inserter", func() {
		Expect(inserter.Insert(ctx, "A")).To(Succeed())
		Expect(backend.Store()).To(Equal([]string{"A"}))
	})

	It("returns the wrapped inserter's errors untouched", func() {
		Expect(inserter.Insert(ctx, "A")).To(Succeed())
		Expect(errors.Is(inserter.Insert(ctx, "B"), targets.ErrLimitExceeded)).To(BeTrue())
	})

	It("finalizes through every layer", func() {
		finalizer, ok := inserter.(targets.Finalizer)
		Expect(ok).To(BeTrue(), "instrumented inserters should expose finalization")

		Expect(finalizer.Close(ctx)).To(Succeed())
		Expect(finalizer.Abort(ctx, errors.New("oops"))).To(Succeed())
		Expect(backend.closed).To(Equal(1))
		Expect(backend.aborted).To(Equal(1))
	})
})
