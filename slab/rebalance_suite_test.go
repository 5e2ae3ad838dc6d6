package slab

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cachecore/slabcache/internal/testitems"
)

func TestRebalanceSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rebalancer Suite")
}

func newTestAllocator(hooks Hooks) *Allocator {
	cfg := DefaultConfig()
	cfg.MaxItemBytes = 4096
	cfg.SlabReassign = true
	return New(cfg, hooks)
}

// forcePage directly grows class i by one page, bypassing Alloc/Free so
// tests can set up a precise page count without needing live items.
func forcePage(a *Allocator, i int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	Expect(a.newpageLocked(i)).To(Succeed())
}

func pagesOf(a *Allocator, i int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.classes[i].nPages()
}

var _ = Describe("Rebalancer", func() {
	var (
		hooks *testitems.Fake
		a     *Allocator
	)

	BeforeEach(func() {
		hooks = testitems.New(64)
		a = newTestAllocator(hooks)
	})

	AfterEach(func() {
		a.reb.Stop()
	})

	// Scenario 3: manual reassign.
	It("moves a page from a source with spare pages to a destination", func() {
		dst := a.Classify(64)
		src := a.Classify(2048)
		Expect(src).NotTo(Equal(dst))

		forcePage(a, src)
		forcePage(a, src)
		forcePage(a, dst)

		srcBefore := pagesOf(a, src)
		dstBefore := pagesOf(a, dst)

		a.reb.Start()
		Expect(a.Reassign(src, dst, 1)).To(Succeed())

		Eventually(func() int { return pagesOf(a, dst) }, 2*time.Second, 10*time.Millisecond).
			Should(Equal(dstBefore + 1))
		Expect(pagesOf(a, src)).To(Equal(srcBefore - 1))
		Expect(a.slabsMoved.Load()).To(BeNumerically(">=", int64(1)))
	})

	// Scenario 4: rejected because too few pages.
	It("rejects reassign immediately when the source has only one page", func() {
		dst := a.Classify(64)
		src := a.Classify(2048)
		forcePage(a, src)
		Expect(a.Reassign(src, dst, 1)).To(MatchError(ErrNoSpare))
	})

	// Scenario 5: concurrent reassign attempt never blocks the caller.
	It("returns RUNNING for a second reassign while one is admitted", func() {
		dst := a.Classify(64)
		src := a.Classify(2048)
		forcePage(a, src)
		forcePage(a, src)

		Expect(a.reb.admit.TryAcquire()).To(BeTrue()) // simulate an already-admitted job
		defer a.reb.admit.Release()

		Expect(a.Reassign(src, dst, 1)).To(MatchError(ErrRunning))
	})

	It("rejects src == dst", func() {
		c := a.Classify(64)
		Expect(a.Reassign(c, c, 1)).To(MatchError(ErrSrcDstSame))
	})

	It("rejects an out-of-range class", func() {
		Expect(a.Reassign(a.Largest()+1, a.Classify(64), 1)).To(MatchError(ErrBadClass))
	})

	It("shrinks a page back to the arena when dst == 0", func() {
		src := a.Classify(2048)
		forcePage(a, src)
		forcePage(a, src)

		before := pagesOf(a, src)
		mallocBefore := a.TotalMalloced()

		a.reb.Start()
		Expect(a.Reassign(src, 0, 1)).To(Succeed())

		Eventually(func() int { return pagesOf(a, src) }, 2*time.Second, 10*time.Millisecond).
			Should(Equal(before - 1))
		Expect(a.TotalMalloced()).To(BeNumerically("<", mallocBefore))
		Expect(a.slabsShrunk.Load()).To(BeNumerically(">=", int64(1)))
	})
})
