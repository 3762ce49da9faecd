// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers     prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	WaitingPlayers    prometheus.Gauge
	QuestionsServed   prometheus.Counter
	ChallengeTimeouts prometheus.Counter
	GamesCompleted    prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of online players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active rooms",
		}),
		WaitingPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting_players",
			Help:      "Number of players waiting to be matched",
		}),
		QuestionsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_served_total",
			Help:      "Total number of questions sent to players",
		}),
		ChallengeTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenge_timeouts_total",
			Help:      "Total number of question challenges resolved by timeout",
		}),
		GamesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_completed_total",
			Help:      "Total number of games played to completion",
		}),
	}

	prometheus.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.WaitingPlayers,
		m.QuestionsServed,
		m.ChallengeTimeouts,
		m.GamesCompleted,
	)

	return m
}

// Monitor 指标采集入口。nil接收者是安全的无操作，测试里的房间
// 不需要挂监控。
type Monitor struct {
	metrics   *Metrics
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime)
}

func (m *Monitor) IncOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) SetWaitingPlayers(count int) {
	if m == nil {
		return
	}
	m.metrics.WaitingPlayers.Set(float64(count))
}

func (m *Monitor) IncQuestionsServed() {
	if m == nil {
		return
	}
	m.metrics.QuestionsServed.Inc()
}

func (m *Monitor) IncChallengeTimeouts() {
	if m == nil {
		return
	}
	m.metrics.ChallengeTimeouts.Inc()
}

func (m *Monitor) IncGamesCompleted() {
	if m == nil {
		return
	}
	m.metrics.GamesCompleted.Inc()
}
