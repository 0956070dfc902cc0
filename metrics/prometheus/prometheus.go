package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/planopt/conf"
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/metrics"
)

// Factory creates counters in its own registry and, once started, serves them over HTTP.
type Factory struct {
	config     conf.Config
	registry   *prometheus.Registry
	lock       sync.Mutex
	httpServer *http.Server
	started    bool
}

func NewFactory(config conf.Config) *Factory {
	return &Factory{config: config, registry: prometheus.NewRegistry()}
}

func (f *Factory) Registry() *prometheus.Registry {
	return f.registry
}

// CreateCounter returns the existing counter if one with the same name was already created.
func (f *Factory) CreateCounter(name string, description string) (metrics.Counter, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: description,
	})
	if err := f.registry.Register(counter); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, errors.WithStack(err)
		}
		existing, ok := are.ExistingCollector.(prometheus.Counter)
		if !ok {
			return nil, errors.Errorf("metric %s is already registered and is not a counter", name)
		}
		counter = existing
	}
	return &Counter{pCounter: counter}, nil
}

func (f *Factory) Start() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.started {
		return errors.New("already started")
	}
	metricsListenAddr := conf.DefaultMetricsListenAddr
	if f.config.MetricsListenAddr != "" {
		metricsListenAddr = f.config.MetricsListenAddr
	}
	f.httpServer = &http.Server{Addr: metricsListenAddr, Handler: promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{})}
	f.started = true
	go func(srv *http.Server) {
		log.Debugf("Starting prometheus http server on address %s", metricsListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("prometheus http export server failed to listen %v", err)
		}
	}(f.httpServer)
	return nil
}

func (f *Factory) Stop() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.started {
		return errors.New("not started")
	}
	f.started = false
	if f.httpServer != nil {
		return f.httpServer.Close()
	}
	return nil
}

type Counter struct {
	pCounter prometheus.Counter
}

func (c *Counter) Inc() {
	c.pCounter.Inc()
}
