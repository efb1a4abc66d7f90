package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricStreamInbound = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "valtrack:stream:msg:in",
		Help: "Count classified inbound stream messages",
	}, []string{"address", "msg_type"})
	metricStreamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "valtrack:stream:active",
		Help: "Number of open validation streams",
	})
	metricStreamCloses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "valtrack:stream:closes",
		Help: "Count stream closures by reason",
	}, []string{"reason"})
	metricValidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "valtrack:registry:validations",
		Help: "Count validation votes by admission outcome",
	}, []string{"outcome"})
	metricUNLRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "valtrack:registry:unl:refreshes",
		Help: "Count UNL refresh attempts by outcome",
	}, []string{"outcome"})
	metricManifestsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "valtrack:registry:manifests:applied",
		Help: "Count applied manifest updates",
	})
	metricValidatorsTracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "valtrack:registry:validators",
		Help: "Number of tracked validator identities",
	})
)

func init() {
	for _, collector := range []prometheus.Collector{
		metricStreamInbound,
		metricStreamsActive,
		metricStreamCloses,
		metricValidations,
		metricUNLRefreshes,
		metricManifestsApplied,
		metricValidatorsTracked,
	} {
		if err := prometheus.Register(collector); err != nil {
			log.Println("could not register prometheus collector")
		}
	}
}

func ReportStreamInbound(address, msgType string) {
	metricStreamInbound.WithLabelValues(address, msgType).Inc()
}

func ReportStreamOpened() {
	metricStreamsActive.Inc()
}

func ReportStreamClosed(reason string) {
	metricStreamsActive.Dec()
	metricStreamCloses.WithLabelValues(reason).Inc()
}

func ReportValidation(outcome string) {
	metricValidations.WithLabelValues(outcome).Inc()
}

func ReportUNLRefresh(outcome string) {
	metricUNLRefreshes.WithLabelValues(outcome).Inc()
}

func ReportManifestApplied() {
	metricManifestsApplied.Inc()
}

func ReportValidatorsTracked(count int) {
	metricValidatorsTracked.Set(float64(count))
}
