package loader_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsim/loader"
)

var _ = Describe("Trace Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "trace-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	parse := func(text string) (*loader.Trace, error) {
		return loader.Parse("test.trace", strings.NewReader(text))
	}

	Describe("Load", func() {
		It("should load a trace file", func() {
			path := filepath.Join(tempDir, "small.trace")
			Expect(os.WriteFile(path, []byte("I 0x400000\nR 0x1000 1\n"), 0644)).
				To(Succeed())

			trace, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(trace.Name).To(Equal(path))
			Expect(trace.Records).To(HaveLen(2))
		})

		It("should fail on a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.trace"))
			Expect(err).To(MatchError(ContainSubstring("failed to open trace file")))
		})
	})

	Describe("Parse", func() {
		It("should parse every record type", func() {
			trace, err := parse(`
# warm up
I 0x400000
R 0x1000 1
W 4096
U 0x2000 3   # trailing comment
X 2
`)
			Expect(err).NotTo(HaveOccurred())
			Expect(trace.Records).To(Equal([]loader.Record{
				{Kind: loader.KindFetch, Addr: 0x400000, Line: 3},
				{Kind: loader.KindRead, Addr: 0x1000, Thread: 1, Line: 4},
				{Kind: loader.KindWrite, Addr: 0x1000, Line: 5},
				{Kind: loader.KindUpdate, Addr: 0x2000, Thread: 3, Line: 6},
				{Kind: loader.KindSquash, Count: 2, Line: 7},
			}))
			Expect(trace.Accesses()).To(Equal(4))
		})

		It("should accept lower case mnemonics", func() {
			trace, err := parse("r 0x10\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(trace.Records[0].Kind).To(Equal(loader.KindRead))
		})

		DescribeTable("should reject malformed records",
			func(text, msg string) {
				_, err := parse(text)
				Expect(err).To(MatchError(ContainSubstring(msg)))
				Expect(err.Error()).To(HavePrefix("test.trace:"))
			},
			Entry("unknown type", "Z 0x10", "unknown record type"),
			Entry("missing address", "R", "takes an address"),
			Entry("bad address", "R 0xzz", "invalid address"),
			Entry("bad thread", "W 0x10 300", "invalid thread"),
			Entry("extra field", "W 0x10 1 2", "takes an address"),
			Entry("zero squash", "X 0", "invalid squash count"),
			Entry("squash without count", "X", "exactly one count"),
		)

		It("should report the failing line", func() {
			_, err := parse("R 0x10\n\nR bogus\n")
			Expect(err).To(MatchError(ContainSubstring("test.trace:3:")))
		})
	})

	It("should name record kinds by their mnemonic", func() {
		Expect(loader.KindFetch.String()).To(Equal("I"))
		Expect(loader.KindSquash.String()).To(Equal("X"))
	})
})
