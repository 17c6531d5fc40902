package file_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/lawrencejones/concatsink/pkg/targets/file"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Inserter", func() {
	var (
		ctx      context.Context
		dir      string
		path     string
		inserter *file.Inserter[string]
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		dir, err = os.MkdirTemp("", "concatsink-file-")
		Expect(err).NotTo(HaveOccurred())

		path = filepath.Join(dir, "segment.jsonl")
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	JustBeforeEach(func() {
		var err error
		inserter, err = file.Open[string](path, file.Raw[string]{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("writes newline-delimited chunks", func() {
		Expect(inserter.Insert(ctx, "A")).To(Succeed())
		Expect(inserter.Insert(ctx, "B")).To(Succeed())
		Expect(inserter.Close(ctx)).To(Succeed())

		Expect(os.ReadFile(path)).To(Equal([]byte("A\nB\n")))
	})

	It("tolerates closing twice, and rejects inserts once closed", func() {
		Expect(inserter.Close(ctx)).To(Succeed())
		Expect(inserter.Close(ctx)).To(Succeed())
		Expect(inserter.Insert(ctx, "A")).To(MatchError(ContainSubstring("closed file")))
	})

	It("removes the file on abort", func() {
		Expect(inserter.Insert(ctx, "A")).To(Succeed())
		Expect(inserter.Abort(ctx, errors.New("oops"))).To(Succeed())

		_, err := os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue(), "aborted file should be removed")
	})

	It("rejects inserts when the context is done", func() {
		ctx, cancel := context.WithCancel(ctx)
		cancel()

		Expect(inserter.Insert(ctx, "A")).To(MatchError(context.Canceled))
	})

	Context("when the file already exists", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(path, []byte("existing\n"), 0644)).To(Succeed())
		})

		It("appends to it", func() {
			Expect(inserter.Insert(ctx, "A")).To(Succeed())
			Expect(inserter.Close(ctx)).To(Succeed())

			Expect(os.ReadFile(path)).To(Equal([]byte("existing\nA\n")))
		})
	})

	Context("when the directory does not exist", func() {
		It("fails to open", func() {
			_, err := file.Open[string](filepath.Join(dir, "missing", "segment"), file.Raw[string]{})
			Expect(err).To(MatchError(ContainSubstring("failed to open")))
		})
	})
})

var _ = Describe("Serializer", func() {
	type chunk struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	It("encodes JSON compactly by default", func() {
		Expect(file.JSON[chunk]{}.Marshal(chunk{1, "one"})).To(MatchJSON(`{"id":1,"name":"one"}`))
	})

	It("pretty prints when asked", func() {
		bytes, err := file.JSON[chunk]{Pretty: true}.Marshal(chunk{1, "one"})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(bytes)).To(ContainSubstring("\n  \"id\": 1"))
	})

	It("passes raw chunks through", func() {
		Expect(file.Raw[[]byte]{}.Marshal([]byte("raw"))).To(Equal([]byte("raw")))
	})
})
