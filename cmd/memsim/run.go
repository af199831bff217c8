package main

import (
	"fmt"
	"io"
	"log"
	"text/tabwriter"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/timing/cache"
	"github.com/sarchlab/memsim/timing/config"
	"github.com/sarchlab/memsim/timing/core"
	"github.com/sarchlab/memsim/timing/cpucontroller"
	"github.com/sarchlab/memsim/timing/hierarchy"
	"github.com/sarchlab/memsim/timing/request"
)

type runOptions struct {
	configPath  string
	cores       int
	maxCycles   uint64
	record      bool
	recordPath  string
	monitor     bool
	port        int
	openBrowser bool
	verbose     bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run <trace>...",
	Short: "Replay traces through the memory hierarchy.",
	Long: `Each trace drives one core. When --cores is larger than the ` +
		`number of traces, the traces are assigned to the cores round robin.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := simulate(runOpts, args)
		if err != nil {
			return err
		}

		rep.print(cmd.OutOrStdout())

		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.configPath, "config", "", "path to a JSON configuration file")
	f.IntVar(&runOpts.cores, "cores", 0, "number of cores, defaults to one per trace")
	f.Uint64Var(&runOpts.maxCycles, "max-cycles", 0, "stop after this many cycles, 0 for no limit")
	f.BoolVar(&runOpts.record, "record", false, "record every request into a SQLite database")
	f.StringVar(&runOpts.recordPath, "record-path", "", "database path used with --record")
	f.BoolVar(&runOpts.monitor, "monitor", false, "serve the simulation state over HTTP")
	f.IntVar(&runOpts.port, "port", 0, "monitoring port, random if 0")
	f.BoolVar(&runOpts.openBrowser, "open-browser", false, "open the monitor in a web browser")
	f.BoolVarP(&runOpts.verbose, "verbose", "v", false, "log every controller event")
}

type coreReport struct {
	trace      string
	core       core.Stats
	controller cpucontroller.Stats
	l1i        cache.Statistics
	l1d        cache.Statistics
}

type report struct {
	cycles    uint64
	gcRuns    uint64
	reclaimed uint64
	cores     []coreReport
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if path != "" {
		var err error

		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func simulate(opts runOptions, tracePaths []string) (*report, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	traces := make([]*loader.Trace, len(tracePaths))
	for i, path := range tracePaths {
		traces[i], err = loader.Load(path)
		if err != nil {
			return nil, err
		}
	}

	numCores := opts.cores
	if numCores == 0 {
		numCores = len(traces)
	}

	var hierarchyOpts []hierarchy.Option
	if opts.maxCycles > 0 {
		hierarchyOpts = append(hierarchyOpts, hierarchy.WithMaxCycles(opts.maxCycles))
	}

	h, err := hierarchy.Build(cfg, sim.NewSerialEngine(), numCores, hierarchyOpts...)
	if err != nil {
		return nil, err
	}

	pipelines := make([]*core.Core, numCores)
	for i := range pipelines {
		pipelines[i] = core.NewCore(
			uint8(i),
			h.Cores()[i].Controller,
			h.Arena(),
			h,
			traces[i%len(traces)],
			core.WithIssueWidth(cfg.IssueWidth),
			core.WithROBSize(cfg.ROBSize),
		)
		h.RegisterPipeline(uint8(i), pipelines[i])
	}

	if opts.record {
		recorder, err := datarecording.New(opts.recordPath)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Printf("failed to close recording: %v", err)
			}
		}()

		tracer, err := datarecording.NewRequestTracer(recorder)
		if err != nil {
			return nil, err
		}

		h.AcceptControllerHook(tracer)
	}

	if opts.verbose {
		h.AcceptControllerHook(eventLogger{})
	}

	if opts.monitor {
		m := monitoring.NewMonitor(h).WithPortNumber(opts.port)
		if opts.openBrowser {
			m.WithBrowser()
		}

		if _, err := m.StartServer(); err != nil {
			return nil, err
		}
		defer func() { _ = m.Close() }()
	}

	if err := h.Run(); err != nil {
		return nil, err
	}

	h.Flush()

	rep := &report{cycles: h.Cycle()}
	rep.gcRuns, rep.reclaimed = h.GCStats()

	for i, c := range h.Cores() {
		rep.cores = append(rep.cores, coreReport{
			trace:      traces[i%len(traces)].Name,
			core:       pipelines[i].Stats(),
			controller: h.CoreStats(uint8(i)),
			l1i:        c.L1I.Stats(),
			l1d:        c.L1D.Stats(),
		})
	}

	return rep, nil
}

func (r *report) total() cpucontroller.Stats {
	var total cpucontroller.Stats
	for _, c := range r.cores {
		total.Add(c.controller)
	}

	return total
}

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "Total cycles: %d\n", r.cycles)
	fmt.Fprintf(w, "Request GC: runs[%d] reclaimed[%d]\n\n", r.gcRuns, r.reclaimed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "core\ttrace\tissued\tcompleted\tsquashed\tstalls\t"+
		"admitted\tfast path\tdep stalls\tL1I hit/miss\tL1D hit/miss")

	for i, c := range r.cores {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d/%d\t%d/%d\n",
			i, c.trace,
			c.core.Issued, c.core.Completed, c.core.Squashed,
			c.core.Stalls+c.core.ROBStalls,
			c.controller.Admitted, c.controller.FastPathHit,
			c.controller.ReadDependencyStalls+c.controller.WriteDependencyStalls,
			c.l1i.Hits, c.l1i.Misses, c.l1d.Hits, c.l1d.Misses)
	}

	_ = tw.Flush()

	total := r.total()
	fmt.Fprintf(w, "\nControllers: accesses[%d] completed[%d] annulled[%d] "+
		"buffer hits[%d] queue full[%d] stray[%d]\n",
		total.Accesses, total.Completed, total.Annulled,
		total.BufferHits, total.QueueFull, total.StrayMessages)
}

// eventLogger logs every controller hook invocation.
type eventLogger struct{}

func (eventLogger) Func(ctx sim.HookCtx) {
	detail, ok := ctx.Detail.(cpucontroller.EventDetail)
	if !ok {
		return
	}

	req, ok := ctx.Item.(*request.Request)
	if !ok {
		log.Printf("%d %s %s full=%t", detail.Cycle, detail.Controller, ctx.Pos.Name, detail.Full)
		return
	}

	log.Printf("%d %s %s %s 0x%x latency=%d",
		detail.Cycle, detail.Controller, ctx.Pos.Name,
		req.Op(), req.PhysicalAddress(), detail.Latency)
}
