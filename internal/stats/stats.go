package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"
	"time"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater applies counter deltas from a single goroutine so callers
// never contend on the expvar map. After Stop, further deltas are dropped
// instead of panicking; connection teardown can race shutdown.
type StatsUpdater struct {
	vars     *expvar.Map
	deltas   chan metricDelta
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type metricDelta struct {
	name  string
	delta int
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

// NewStatsUpdater creates a new stats updater instance.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		deltas: make(chan metricDelta, 512),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	su.vars = statsMap("popchat-stats")
	su.initializeMetrics()

	return su
}

// statsMap reuses an already-published map; expvar publication is global
// to the process and cannot be repeated.
func statsMap(name string) *expvar.Map {
	if m, ok := expvar.Get(name).(*expvar.Map); ok {
		m.Init()
		return m
	}

	return expvar.NewMap(name)
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))
}

func (su *StatsUpdater) loop() {
	defer close(su.done)

	for {
		select {
		case d := <-su.deltas:
			su.apply(d)
		case <-su.stop:
			// apply what was queued before the stop
			for {
				select {
				case d := <-su.deltas:
					su.apply(d)
				default:
					return
				}
			}
		}
	}
}

func (su *StatsUpdater) apply(d metricDelta) {
	metric, ok := su.vars.Get(d.name).(*expvar.Int)
	if !ok {
		return
	}

	metric.Add(int64(d.delta))
}

func (su *StatsUpdater) update(name string, delta int) {
	select {
	case su.deltas <- metricDelta{name: name, delta: delta}:
	case <-su.stop:
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.update(name, 1)
}

func (su *StatsUpdater) Decr(name string) {
	su.update(name, -1)
}

// RegisterMetric publishes a counter under the stats map only; registering
// the same name twice resets it.
func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Run() {
	go su.loop()
}

func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() {
		close(su.stop)
	})
	<-su.done
}
