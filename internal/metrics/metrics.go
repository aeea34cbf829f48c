package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatwave_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Identity metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatwave_users_registered_total",
			Help: "Total users registered",
		},
	)

	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatwave_rooms_created_total",
			Help: "Total rooms created, explicitly or on first join",
		},
	)

	// Realtime metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatwave_connections_active",
			Help: "Currently registered websocket connections",
		},
	)

	RoomMembers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatwave_room_members",
			Help: "Current member count per room",
		},
		[]string{"room"},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatwave_messages_sent_total",
			Help: "Total messages accepted and broadcast",
		},
	)

	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_messages_rejected_total",
			Help: "Total sends rejected before broadcast",
		},
		[]string{"reason"},
	)

	Deliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatwave_deliveries_total",
			Help: "Total frames enqueued to member connections",
		},
	)

	SlowConsumers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatwave_slow_consumers_total",
			Help: "Connections closed because their outbound queue was full",
		},
	)

	PresenceBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_presence_broadcasts_total",
			Help: "Total presence events broadcast",
		},
		[]string{"event"},
	)

	TypingRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatwave_typing_relayed_total",
			Help: "Total typing notifications relayed",
		},
	)

	// History metrics
	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_history_writes_total",
			Help: "History write attempts by result",
		},
		[]string{"result"}, // "ok", "error", "dropped"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwave_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatwave_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	DatabaseLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatwave_database_latency_seconds",
			Help:    "Room and user store query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
