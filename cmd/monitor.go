package cmd

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/CraigKelly/gonuts/buffer"
	"github.com/CraigKelly/gonuts/sampler"
)

// acceptWindow is the number of recent iterations in the rolling acceptance
const acceptWindow = 100

// monitor publishes sampling progress over HTTP with expvar
type monitor struct {
	sync.Mutex

	info    *expvar.Map
	log     *zap.SugaredLogger
	stopped chan struct{}
	server  *http.Server
	start   time.Time

	accept []*buffer.CircularFloat // per chain

	Chains      *expvar.Int
	MaxIters    *expvar.Int
	Iterations  *expvar.Int
	Divergences *expvar.Int
	RunTime     *expvar.Float
	Phase       *expvar.String

	AcceptRate  *expvar.Float // rolling mean over every chain
	AcceptDrift *expvar.Float // newer half minus older half
	StepSize    *expvar.Float // most recent report
}

// newMonitor creates the counters for a run of chains chains of iterations
// iterations each. Nothing is served until Start.
func newMonitor(log *zap.SugaredLogger, chains, iterations int) *monitor {
	m := &monitor{
		info:        new(expvar.Map).Init(),
		log:         log,
		start:       time.Now(),
		accept:      make([]*buffer.CircularFloat, chains),
		Chains:      new(expvar.Int),
		MaxIters:    new(expvar.Int),
		Iterations:  new(expvar.Int),
		Divergences: new(expvar.Int),
		RunTime:     new(expvar.Float),
		Phase:       new(expvar.String),
		AcceptRate:  new(expvar.Float),
		AcceptDrift: new(expvar.Float),
		StepSize:    new(expvar.Float),
	}
	for i := range m.accept {
		m.accept[i] = buffer.NewCircularFloat(acceptWindow)
	}

	m.Chains.Set(int64(chains))
	m.MaxIters.Set(int64(chains * iterations))
	m.Phase.Set(sampler.WarmupPhase.String())

	m.info.Set("Chain-Count", m.Chains)
	m.info.Set("Max-Iterations", m.MaxIters)
	m.info.Set("Iterations", m.Iterations)
	m.info.Set("Divergences", m.Divergences)
	m.info.Set("Run-Time", m.RunTime)
	m.info.Set("Phase", m.Phase)
	m.info.Set("Accept-Rate", m.AcceptRate)
	m.info.Set("Accept-Drift", m.AcceptDrift)
	m.info.Set("Step-Size", m.StepSize)

	return m
}

// Observe records one progress report from chain
func (m *monitor) Observe(chain int, p sampler.Progress) {
	m.Lock()
	defer m.Unlock()

	m.Iterations.Add(1)
	if p.Stats.Divergent {
		m.Divergences.Add(1)
	}
	m.RunTime.Set(time.Since(m.start).Seconds())
	m.Phase.Set(p.Phase.String())
	m.StepSize.Set(p.Stats.StepSize)

	if chain < 0 || chain >= len(m.accept) {
		return
	}
	m.accept[chain].Add(p.Stats.AcceptStat)

	rate, drift, full := 0.0, 0.0, 0
	for _, buf := range m.accept {
		rate += buf.Mean()
		if first, second, ok := buf.HalfMeans(); ok {
			drift += second - first
			full++
		}
	}
	m.AcceptRate.Set(rate / float64(len(m.accept)))
	if full > 0 {
		m.AcceptDrift.Set(drift / float64(full))
	}
}

// Progress returns the callback for one chain
func (m *monitor) Progress(chain int) sampler.ProgressFunc {
	return func(p sampler.Progress) {
		m.Observe(chain, p)
	}
}

// Start publishes the counters and serves them on addr. It may only be
// called once per process.
func (m *monitor) Start(addr string) error {
	if m.server != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	expvar.Publish("gonuts-progress", m.info)

	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	// Help the user and redirect to the only thing currently available:
	// the handler from the expvar package
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})

	m.stopped = make(chan struct{})
	m.server = &http.Server{Addr: addr, Handler: mux}

	// Actual server that will close the stopped channel on exit
	started := make(chan struct{})
	go func() {
		defer close(m.stopped)
		m.log.Infow("Monitor available", "addr", addr, "path", "/debug/vars")
		close(started)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.log.Warnw("Monitor failed", "error", err)
		}
	}()

	<-started
	return nil
}

// Stop shuts the HTTP server down
func (m *monitor) Stop() {
	if m.server == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		m.log.Debugw("Monitor stopped")
	case <-time.After(2 * time.Second):
		m.log.Warnw("Monitor would NOT stop: just continuing on")
	}
}
