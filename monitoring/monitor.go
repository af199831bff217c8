// Package monitoring serves the state of a running simulation over HTTP.
package monitoring

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/sugawarayuuta/sonnet"
	"github.com/syifan/goseth"

	"github.com/sarchlab/memsim/timing/cpucontroller"
	"github.com/sarchlab/memsim/timing/hierarchy"
)

// Target is the simulation a Monitor exposes. *hierarchy.Hierarchy
// satisfies it.
type Target interface {
	Components() []hierarchy.Component
	Component(name string) (hierarchy.Component, bool)
	PrintState(w io.Writer)
	PrintTopology(w io.Writer)
	Inspect(fn func())
	Cycle() uint64
	Stats() cpucontroller.Stats
}

// Monitor turns a simulation into a server that can be inspected while it
// runs.
type Monitor struct {
	target      Target
	portNumber  int
	openBrowser bool

	server *http.Server
}

// NewMonitor creates a new Monitor.
func NewMonitor(target Target) *Monitor {
	return &Monitor{target: target}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor in a web browser.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/state/{name}", m.componentState)
	r.HandleFunc("/api/topology", m.topology)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/stats", m.stats)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts serving in the background and returns the URL of the
// monitor.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			log.Printf("monitoring server stopped: %v", err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url + "/api/state"); err != nil {
			log.Printf("failed to open browser: %v", err)
		}
	}

	return url, nil
}

// Close stops the server.
func (m *Monitor) Close() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := sonnet.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	var cycle uint64
	m.target.Inspect(func() { cycle = m.target.Cycle() })

	writeJSON(w, map[string]uint64{"cycle": cycle})
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := []string{}
	for _, c := range m.target.Components() {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	buf := new(bytes.Buffer)
	m.target.Inspect(func() { m.target.PrintState(buf) })

	w.Header().Set("Content-Type", "text/plain")
	_, _ = buf.WriteTo(w)
}

func (m *Monitor) componentState(w http.ResponseWriter, r *http.Request) {
	component := m.findComponentOr404(w, mux.Vars(r)["name"])
	if component == nil {
		return
	}

	buf := new(bytes.Buffer)
	m.target.Inspect(func() { component.PrintState(buf) })

	w.Header().Set("Content-Type", "text/plain")
	_, _ = buf.WriteTo(w)
}

func (m *Monitor) topology(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	m.target.PrintTopology(w)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	component := m.findComponentOr404(w, mux.Vars(r)["name"])
	if component == nil {
		return
	}

	buf := new(bytes.Buffer)

	var err error
	m.target.Inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)
		err = serializer.Serialize(buf)
	})

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = buf.WriteTo(w)
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	var stats cpucontroller.Stats
	m.target.Inspect(func() { stats = m.target.Stats() })

	writeJSON(w, stats)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) hierarchy.Component {
	component, ok := m.target.Component(name)
	if !ok {
		http.Error(w, "Component not found", http.StatusNotFound)
		return nil
	}

	return component
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

// collectProfile samples the CPU for ?ms= milliseconds, one second by
// default.
func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second

	if ms := r.URL.Query().Get("ms"); ms != "" {
		n, err := strconv.Atoi(ms)
		if err != nil || n <= 0 {
			http.Error(w, "invalid ms", http.StatusBadRequest)
			return
		}

		duration = time.Duration(n) * time.Millisecond
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}
