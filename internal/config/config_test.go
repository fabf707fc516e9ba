package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 1, cfg.Escalation.L1ThresholdDays)
	assert.Equal(t, 3, cfg.Escalation.L2ThresholdDays)
	assert.Equal(t, 6*time.Hour, cfg.Escalation.SchedulerPeriod)
	assert.Equal(t, 0.7, cfg.Routing.ConfidenceThreshold)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "3306", cfg.Database.Port)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ESCALATION_L1_THRESHOLD_DAYS", "2")
	t.Setenv("ESCALATION_L2_THRESHOLD_DAYS", "5")
	t.Setenv("ESCALATION_SCHEDULER_PERIOD", "30m")
	t.Setenv("ROUTING_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("AUTO_CLOSE_TIMEOUT", "168h")
	t.Setenv("DB_NAME", "grievance_test")

	cfg := Load()

	assert.Equal(t, 2, cfg.Escalation.L1ThresholdDays)
	assert.Equal(t, 5, cfg.Escalation.L2ThresholdDays)
	assert.Equal(t, 30*time.Minute, cfg.Escalation.SchedulerPeriod)
	assert.Equal(t, 0.85, cfg.Routing.ConfidenceThreshold)
	assert.Equal(t, 168*time.Hour, cfg.AutoClose.Timeout)
	assert.Equal(t, "grievance_test", cfg.Database.DBName)
}

func TestLoad_MalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("ESCALATION_L1_THRESHOLD_DAYS", "not-a-number")
	t.Setenv("ESCALATION_SCHEDULER_PERIOD", "whenever")
	t.Setenv("ROUTING_CONFIDENCE_THRESHOLD", "high")

	cfg := Load()

	assert.Equal(t, 1, cfg.Escalation.L1ThresholdDays)
	assert.Equal(t, 6*time.Hour, cfg.Escalation.SchedulerPeriod)
	assert.Equal(t, 0.7, cfg.Routing.ConfidenceThreshold)
}
