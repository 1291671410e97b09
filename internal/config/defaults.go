package config

import "time"

const envPrefix = "KAKEIBO"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultSlackBaseURL = "https://slack.com/api"
	DefaultSlackMethod  = "conversations.history"
	DefaultSlackTimeout = 30 * time.Second

	DefaultExcludeDays    = 0
	DefaultExcludeHours   = 0
	DefaultExcludeMinutes = 10

	DefaultNotifySink    = SinkIFTTT
	DefaultNotifyTimeout = 30 * time.Second

	DefaultIFTTTBaseURL = "https://maker.ifttt.com/trigger"

	DefaultDBRetention = 30 * 24 * time.Hour

	DefaultRelaySchedule       = "0 */10 * * * *"
	DefaultMaintenanceSchedule = "0 0 3 * * *"
)

// Task names understood by the scheduler.
const (
	TaskRelay              = "relay"
	TaskJournalMaintenance = "journal_maintenance"
)

var defaults = map[string]any{
	"log.level": DefaultLogLevel,
	"log.json":  false,

	"slack.base_url":   DefaultSlackBaseURL,
	"slack.method":     DefaultSlackMethod,
	"slack.channel_id": "",
	"slack.token":      "",
	"slack.timeout":    DefaultSlackTimeout,

	"filter.exclude_days":    DefaultExcludeDays,
	"filter.exclude_hours":   DefaultExcludeHours,
	"filter.exclude_minutes": DefaultExcludeMinutes,

	"notify.sink":         DefaultNotifySink,
	"notify.rate_per_sec": 0.0,
	"notify.timeout":      DefaultNotifyTimeout,

	"ifttt.base_url":   DefaultIFTTTBaseURL,
	"ifttt.event_name": "",
	"ifttt.token":      "",

	"telegram.token":      "",
	"telegram.chat_id":    "",
	"telegram.server_url": "",

	"database.path":      "",
	"database.retention": DefaultDBRetention,

	"scheduler.tasks.relay.enabled":                    true,
	"scheduler.tasks.relay.schedule":                   DefaultRelaySchedule,
	"scheduler.tasks.relay.run_on_start":               false,
	"scheduler.tasks.journal_maintenance.enabled":      true,
	"scheduler.tasks.journal_maintenance.schedule":     DefaultMaintenanceSchedule,
	"scheduler.tasks.journal_maintenance.run_on_start": false,
}

// legacyEnv maps keys to the unprefixed variable names used by earlier
// deployments. The prefixed name wins when both are set.
var legacyEnv = map[string][]string{
	"slack.channel_id": {"KAKEIBO_SLACK_CHANNEL_ID", "SLACK_CHANNEL_ID"},
	"slack.token":      {"KAKEIBO_SLACK_TOKEN", "SLACK_TOKEN"},
	"ifttt.event_name": {"KAKEIBO_IFTTT_EVENT_NAME", "IFTTT_EVENT_NAME"},
	"ifttt.token":      {"KAKEIBO_IFTTT_TOKEN", "IFTTT_WEBHOOK_TOKEN"},
}
