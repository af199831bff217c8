package monitoring_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sugawarayuuta/sonnet"

	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/timing/config"
	"github.com/sarchlab/memsim/timing/hierarchy"
)

var _ = Describe("Monitor", func() {
	var (
		h *hierarchy.Hierarchy
		m *monitoring.Monitor
	)

	BeforeEach(func() {
		var err error
		h, err = hierarchy.Build(config.DefaultConfig(), sim.NewSerialEngine(), 2)
		Expect(err).NotTo(HaveOccurred())

		m = monitoring.NewMonitor(h)
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.Router().ServeHTTP(rec, req)
		return rec
	}

	It("should list components", func() {
		rec := get("/api/list_components")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var names []string
		Expect(sonnet.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(ContainElements(
			"Core[0].CPUController",
			"Core[1].L1D",
			"Core[1].L1I",
		))
		Expect(names).To(HaveLen(len(h.Components())))
	})

	It("should report the current cycle", func() {
		rec := get("/api/now")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"cycle":0}`))
	})

	It("should dump the state of the whole simulation", func() {
		rec := get("/api/state")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Core[1].CPUController"))
	})

	It("should dump the state of one component", func() {
		rec := get("/api/state/Core[0].CPUController")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Queue: count[0]"))
	})

	It("should dump the topology", func() {
		rec := get("/api/topology")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Core[0].L1ILink"))
	})

	It("should report the statistics", func() {
		rec := get("/api/stats")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
	})

	It("should report 404 for unknown components", func() {
		Expect(get("/api/state/Nope").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/component/Nope").Code).To(Equal(http.StatusNotFound))
	})

	It("should serialize a known component", func() {
		rec := get("/api/component/Core[0].L1D")
		Expect(rec.Code).NotTo(Equal(http.StatusNotFound))
	})

	It("should reject a bad profile duration", func() {
		Expect(get("/api/profile?ms=abc").Code).To(Equal(http.StatusBadRequest))
		Expect(get("/api/profile?ms=-1").Code).To(Equal(http.StatusBadRequest))
	})

	It("should replace reserved port numbers", func() {
		m.WithPortNumber(80)

		url, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = m.Close() }()

		Expect(url).NotTo(HaveSuffix(":80"))

		rsp, err := http.Get(url + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = rsp.Body.Close() }()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
