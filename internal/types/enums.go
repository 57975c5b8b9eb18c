package types

// ConditionLabel is the qualitative surf rating a trigger can ask for.
type ConditionLabel string

const (
	LabelFair ConditionLabel = "fair"
	LabelGood ConditionLabel = "good"
	LabelEpic ConditionLabel = "epic"
)

// TidePhase describes the direction of tidal movement at a point in time.
// An empty value on a trigger means "any phase".
type TidePhase string

const (
	TideRising  TidePhase = "rising"
	TideFalling TidePhase = "falling"
	TideSlack   TidePhase = "slack"
)

// NotificationStyle selects how alert text is produced for a trigger.
type NotificationStyle string

const (
	// StyleLocalVoice produces a laid-back, surfer-local report via the
	// text generation service.
	StyleLocalVoice NotificationStyle = "local_voice"
	// StyleHypedVoice produces an excited, high-energy report via the
	// text generation service.
	StyleHypedVoice NotificationStyle = "hyped_voice"
	// StyleCustomTemplate substitutes condition values into the trigger's
	// own template string. Deterministic, never calls out.
	StyleCustomTemplate NotificationStyle = "custom_template"
)

// ChannelType identifies a notification delivery channel.
type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelPush  ChannelType = "push"
)

// DeliveryStatus is the per-channel outcome of one dispatch attempt.
type DeliveryStatus string

const (
	DeliverySent DeliveryStatus = "sent"
	// DeliveryFailed marks a transport-level failure (timeout, provider
	// error). Not retried within the run.
	DeliveryFailed DeliveryStatus = "failed"
	// DeliveryInvalidRecipient marks a validation failure (malformed email,
	// no registered device). The transport is never attempted.
	DeliveryInvalidRecipient DeliveryStatus = "invalid_recipient"
	// DeliverySkipped marks a channel that was deliberately not attempted
	// (dry run).
	DeliverySkipped DeliveryStatus = "skipped"
)

// MetricNamespace is the CloudWatch namespace for all pipeline metrics.
const MetricNamespace = "SwellWatch"

// Metric names and dimensions emitted by the run orchestrator and dispatcher.
const (
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricRunEvaluated    = "TriggersEvaluated"
	MetricRunMatched      = "TriggersMatched"
	MetricRunSent         = "AlertsSent"
	MetricRunSuppressed   = "AlertsSuppressed"
	MetricRunSkipped      = "AlertsSkippedNoChannel"
	MetricRunFailed       = "TriggersFailed"
	MetricLedgerFailures  = "LedgerWriteFailures"

	DimChannel = "Channel"
	DimResult  = "Result"
)
