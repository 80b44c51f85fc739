package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects auth lifecycle counters on a private registry. All
// methods are nil-safe so wiring metrics stays optional.
type Metrics struct {
	registry *prometheus.Registry

	logins        prometheus.Counter
	refreshTotal  *prometheus.CounterVec
	sessionPolls  *prometheus.CounterVec
	forcedLogouts *prometheus.CounterVec
}

// NewMetrics creates and registers the auth counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Successful sign-ins and restored sessions.",
		}),
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_token_refresh_total",
				Help: "Token refresh attempts by result.",
			},
			[]string{"result"},
		),
		sessionPolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_session_polls_total",
				Help: "Server-side session checks by result.",
			},
			[]string{"result"},
		),
		forcedLogouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_forced_logouts_total",
				Help: "Forced logouts by trigger.",
			},
			[]string{"trigger"},
		),
	}
	m.registry.MustRegister(m.logins, m.refreshTotal, m.sessionPolls, m.forcedLogouts)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Login() {
	if m != nil {
		m.logins.Inc()
	}
}

func (m *Metrics) RefreshSucceeded() {
	if m != nil {
		m.refreshTotal.WithLabelValues("success").Inc()
	}
}

func (m *Metrics) RefreshFailed() {
	if m != nil {
		m.refreshTotal.WithLabelValues("failure").Inc()
	}
}

func (m *Metrics) SessionPoll(valid bool) {
	if m == nil {
		return
	}
	if valid {
		m.sessionPolls.WithLabelValues("valid").Inc()
	} else {
		m.sessionPolls.WithLabelValues("invalid").Inc()
	}
}

// ForcedLogout records a logout the user did not ask for; trigger is one of
// "session_invalid", "refresh_failed", "idle", "token_expired".
func (m *Metrics) ForcedLogout(trigger string) {
	if m != nil {
		m.forcedLogouts.WithLabelValues(trigger).Inc()
	}
}
