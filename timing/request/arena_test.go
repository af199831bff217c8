package request_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsim/timing/request"
)

var _ = Describe("Request", func() {
	It("should expose the params it was initialized with", func() {
		r := &request.Request{}
		r.Init(request.Params{
			CoreID:          1,
			ThreadID:        2,
			PhysicalAddress: 0x1234,
			RobID:           7,
			OwnerTimestamp:  99,
			Op:              request.OpWrite,
		})

		Expect(r.ID()).NotTo(BeEmpty())
		Expect(r.CoreID()).To(Equal(uint8(1)))
		Expect(r.ThreadID()).To(Equal(uint8(2)))
		Expect(r.PhysicalAddress()).To(Equal(uint64(0x1234)))
		Expect(r.RobID()).To(Equal(7))
		Expect(r.OwnerTimestamp()).To(Equal(uint64(99)))
		Expect(r.Op()).To(Equal(request.OpWrite))
		Expect(r.IsInstruction()).To(BeFalse())
		Expect(r.LineAddress(6)).To(Equal(uint64(0x48)))
	})

	It("should panic when the reference count drops below zero", func() {
		r := &request.Request{}
		r.Init(request.Params{Op: request.OpRead})

		Expect(func() { r.DecRef() }).To(Panic())
	})

	It("should give each init a new id", func() {
		r := &request.Request{}
		r.Init(request.Params{Op: request.OpRead})
		first := r.ID()
		r.Init(request.Params{Op: request.OpRead})

		Expect(r.ID()).NotTo(Equal(first))
	})
})

var _ = Describe("Arena", func() {
	var arena *request.Arena

	BeforeEach(func() {
		arena = request.NewArena(4)
	})

	It("should hand out every slot once", func() {
		seen := map[*request.Request]bool{}
		for i := 0; i < 4; i++ {
			r, err := arena.Acquire()
			Expect(err).NotTo(HaveOccurred())
			Expect(seen[r]).To(BeFalse())
			seen[r] = true
		}

		Expect(arena.Free()).To(Equal(0))
		Expect(arena.InUse()).To(Equal(4))
	})

	It("should fail with a capacity error when exhausted", func() {
		for i := 0; i < 4; i++ {
			_, err := arena.Acquire()
			Expect(err).NotTo(HaveOccurred())
		}

		_, err := arena.Acquire()
		Expect(err).To(MatchError(request.ErrArenaExhausted))
	})

	It("should refuse to release a borrowed request", func() {
		r, _ := arena.Acquire()
		r.Init(request.Params{Op: request.OpRead})
		r.IncRef()

		err := arena.Release(r)
		Expect(err).To(MatchError(request.ErrRequestReferenced))
		Expect(arena.InUse()).To(Equal(1))

		r.DecRef()
		Expect(arena.Release(r)).To(Succeed())
		Expect(arena.InUse()).To(Equal(0))
	})

	It("should refuse to release twice", func() {
		r, _ := arena.Acquire()
		Expect(arena.Release(r)).To(Succeed())
		Expect(arena.Release(r)).To(MatchError(request.ErrRequestNotInUse))
	})

	It("should refuse to release a request from elsewhere", func() {
		r := &request.Request{}
		Expect(arena.Release(r)).To(MatchError(request.ErrRequestNotInUse))
	})

	It("should not reuse a request while it is borrowed", func() {
		borrowed, _ := arena.Acquire()
		borrowed.Init(request.Params{Op: request.OpRead})
		borrowed.IncRef()

		for i := 0; i < 3; i++ {
			r, err := arena.Acquire()
			Expect(err).NotTo(HaveOccurred())
			Expect(r).NotTo(BeIdenticalTo(borrowed))
		}

		Expect(arena.GarbageCollect()).To(Equal(3))

		for i := 0; i < 3; i++ {
			r, err := arena.Acquire()
			Expect(err).NotTo(HaveOccurred())
			Expect(r).NotTo(BeIdenticalTo(borrowed))
		}
	})

	It("should garbage collect only unreferenced requests", func() {
		a, _ := arena.Acquire()
		b, _ := arena.Acquire()
		a.Init(request.Params{Op: request.OpRead})
		b.Init(request.Params{Op: request.OpRead})
		a.IncRef()

		Expect(arena.GarbageCollect()).To(Equal(1))
		Expect(arena.InUse()).To(Equal(1))

		a.DecRef()
		Expect(arena.GarbageCollect()).To(Equal(1))
		Expect(arena.InUse()).To(Equal(0))
	})

	It("should balance borrows and releases before recycling", func() {
		r, _ := arena.Acquire()
		r.Init(request.Params{Op: request.OpRead})

		r.IncRef()
		r.IncRef()
		r.DecRef()
		Expect(arena.GarbageCollect()).To(Equal(0))

		r.DecRef()
		Expect(r.RefCount()).To(Equal(0))
		Expect(arena.GarbageCollect()).To(Equal(1))
	})

	It("should report when it runs low", func() {
		arena = request.NewArena(20)
		Expect(arena.IsLow()).To(BeFalse())

		for i := 0; i < 19; i++ {
			_, _ = arena.Acquire()
		}

		Expect(arena.IsLow()).To(BeTrue())
	})

	It("should print used requests", func() {
		r, _ := arena.Acquire()
		r.Init(request.Params{PhysicalAddress: 0x40, Op: request.OpRead})

		buf := new(bytes.Buffer)
		arena.Print(buf)

		Expect(buf.String()).To(ContainSubstring("used requests: count[1]"))
		Expect(buf.String()).To(ContainSubstring("addr:0x40"))
		Expect(buf.String()).To(ContainSubstring("free requests: count[3]"))
	})
})
