package prom

import (
	"errors"
	"fmt"
	"sync"

	xhttp "github.com/nimasrn/kamoa-supervision/pkg/http"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemReports = "reports"
	SystemFeed    = "feed"
)

const (
	MetricReportsCreated      = "created_total"
	MetricReportsDeduplicated = "deduplicated_total"
	MetricReportInsertSeconds = "insert_duration_seconds"
	MetricFeedPublished       = "published_total"
	MetricFeedPublishFailures = "publish_failures_total"
	MetricFeedSubscribers     = "subscribers"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogram    = "histogram"
	TypeHistogramVec = "histogramVec"
	TypeGaugeVec     = "gaugeVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers every metric the API server reports. Until it is called
// all Add*/Inc* helpers are no-ops.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	if nameSpace != "" {
		namespace = nameSpace
	}

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemReports, MetricReportsCreated, []string{"status"}))
	hasError(createCounter(SystemReports, MetricReportsDeduplicated))
	hasError(createHistogram(SystemReports, MetricReportInsertSeconds))
	hasError(createCounter(SystemFeed, MetricFeedPublished))
	hasError(createCounter(SystemFeed, MetricFeedPublishFailures))
	hasError(createGaugeVec(SystemFeed, MetricFeedSubscribers, []string{"stream"}))

	if err == nil {
		MetricSystemEnabled = true
	}
	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labelsValues ...string) error {
	switch metricType {
	case TypeCounter:
		return createCounter(metricSubsystem, metricName)
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labelsValues)
	case TypeHistogram:
		return createHistogram(metricSubsystem, metricName)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labelsValues)
	case TypeGaugeVec:
		return createGaugeVec(metricSubsystem, metricName, labelsValues)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

// ListenAndServer exposes the default registry on addr+url. It blocks.
func ListenAndServer(addr string, url string) error {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	return s.ListenAndServe(addr)
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
	})
	return register(MetricCollectionCounters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogram(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogram[subsystem+name] = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	})
	return register(MetricCollectionHistogram[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionHistogramVec[subsystem+name])
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()

	MetricCollectionGaugeVec[subsystem+name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionGaugeVec[subsystem+name])
}

// register tolerates a second Create in the same process (tests).
func register(c prometheus.Collector) error {
	err := prometheus.Register(c)
	var already prometheus.AlreadyRegisteredError
	if err != nil && errors.As(err, &already) {
		return nil
	}
	return err
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func AddGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogram(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogram[subsystem+name]; ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func ReportCreated(status string, seconds float64) {
	IncCounterVec(SystemReports, MetricReportsCreated, status)
	AddHistogram(SystemReports, MetricReportInsertSeconds, seconds)
}

func ReportDeduplicated() {
	IncCounter(SystemReports, MetricReportsDeduplicated)
}

func FeedPublished() {
	IncCounter(SystemFeed, MetricFeedPublished)
}

func FeedPublishFailed() {
	IncCounter(SystemFeed, MetricFeedPublishFailures)
}

func FeedSubscribers(stream string, delta float64) {
	AddGaugeVec(SystemFeed, MetricFeedSubscribers, delta, stream)
}
