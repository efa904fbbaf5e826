package config

import (
	"os"
	"strings"
)

// DistributedRemediationLock makes the remediation guard also take a Redis
// lock, so replicas of the service serialize commands between them.
//
// Set via env:
// - REMEDIATION_DISTRIBUTED_LOCK=true
func DistributedRemediationLock() bool {
	return envBool("REMEDIATION_DISTRIBUTED_LOCK", false)
}

// RemediationAuditEnabled persists every remediation attempt to MySQL.
//
// Set via env:
// - REMEDIATION_AUDIT_ENABLED=true
func RemediationAuditEnabled() bool {
	return envBool("REMEDIATION_AUDIT_ENABLED", false)
}

// RemediationEventsEnabled publishes remediation outcomes to Pub/Sub.
//
// Set via env:
// - REMEDIATION_EVENTS_ENABLED=true
// - COMPENSACAO_EVENTS_TOPIC=compensacao-remediation
func RemediationEventsEnabled() bool {
	return envBool("REMEDIATION_EVENTS_ENABLED", false)
}

func envBool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
