package state

// Key naming conventions for Baton data. The layout is part of the store's
// contract: external tooling reads these namespaces directly, so helper
// functions are exported and backends must not add implicit prefixes.

const (
	sessionPrefix     = "workflow:"
	resourcePrefix    = "resource:"
	userContextPrefix = "context:"
	cachePrefix       = "cache:action:"
	patternPrefix     = "pattern:"
	feedbackPrefix    = "feedback:"
	auditPrefix       = "audit:"
	schedulePrefix    = "schedule:"
)

// SessionKey returns the key for a workflow run session: workflow:{run_id}
func SessionKey(runID string) string { return sessionPrefix + runID }

// ResourceKey returns the key for a tracked resource: resource:{type}:{id}
func ResourceKey(resourceType, resourceID string) string {
	return resourcePrefix + resourceType + ":" + resourceID
}

// ResourceTypePrefix returns the scan prefix for all resources of a type.
func ResourceTypePrefix(resourceType string) string {
	return resourcePrefix + resourceType + ":"
}

// UserContextKey returns the key for per-user context: context:{user_id}
func UserContextKey(userID string) string { return userContextPrefix + userID }

// CacheKey returns the key for a memoized action result:
// cache:action:{name}:{params_hash}
func CacheKey(action, fingerprint string) string {
	return cachePrefix + action + ":" + fingerprint
}

// PatternKey returns the key for a learned pattern: pattern:{id}
func PatternKey(patternID string) string { return patternPrefix + patternID }

// FeedbackKey returns the key for a feedback record: feedback:{id}
func FeedbackKey(feedbackID string) string { return feedbackPrefix + feedbackID }

// AuditKey returns the key for an audit entry: audit:{id}
func AuditKey(auditID string) string { return auditPrefix + auditID }

// ScheduleKey returns the key for a schedule entry: schedule:{id}
func ScheduleKey(scheduleID string) string { return schedulePrefix + scheduleID }

// PatternPrefix is the scan prefix for all learned patterns.
const PatternPrefix = patternPrefix

// FeedbackPrefix is the scan prefix for all feedback records.
const FeedbackPrefix = feedbackPrefix

// AuditPrefix is the scan prefix for all audit entries.
const AuditPrefix = auditPrefix

// SchedulePrefix is the scan prefix for all schedule entries.
const SchedulePrefix = schedulePrefix
