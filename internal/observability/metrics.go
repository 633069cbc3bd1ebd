package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	CampaignSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_campaign_sends_total", Help: "Campaign send outcomes"},
		[]string{"result"},
	)
	CampaignRecipients = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailout_campaign_recipients",
			Help:    "Eligible recipients per campaign send",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
		},
	)
	ESPSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_esp_send_total", Help: "ESP send outcomes"},
		[]string{"provider", "result", "http_status"},
	)
	ESPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "mailout_esp_send_latency_seconds", Help: "ESP send latency"},
		[]string{"provider"},
	)
	ESPRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_esp_retries_total", Help: "Rate-limit retries"},
		[]string{"provider"},
	)
	RenderFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_render_fallbacks_total", Help: "Renders that fell back to stored HTML"},
		[]string{"reason"},
	)
	RenderWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_render_warnings_total", Help: "Render warnings"},
		[]string{"kind"},
	)
	ThumbnailComposites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_thumbnail_composites_total", Help: "Composite thumbnail lookups"},
		[]string{"result"},
	)
	TrackingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_tracking_events_total", Help: "Open, click and unsubscribe events"},
		[]string{"event"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_webhook_events_total", Help: "ESP webhook events"},
		[]string{"type"},
	)
	Suppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_suppressed_total", Help: "Recipients dropped before send"},
		[]string{"reason"},
	)
	RecordFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_record_failures_total", Help: "Campaign bookkeeping failures"},
		[]string{"stage"},
	)
	RecordEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mailout_record_events_total", Help: "Queued bookkeeping events"},
		[]string{"result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		APIRequests, CampaignSends, CampaignRecipients,
		ESPSend, ESPLatency, ESPRetries,
		RenderFallbacks, RenderWarnings, ThumbnailComposites,
		TrackingEvents, WebhookEvents, Suppressed,
		RecordFailures, RecordEvents,
	)
}
