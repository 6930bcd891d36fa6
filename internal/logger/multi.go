package logger

import "time"

// PhaseLogger is the set of events the orchestrator reports.
type PhaseLogger interface {
	LogPhaseStart(phase string, targets int)
	LogPhaseComplete(phase string, duration time.Duration, failed, total int)
	LogTargetResult(phase, target, status string, exitCode int, output string)
	LogProgress(completed, total int)
	LogWarn(message string)
}

// MultiLogger fans events out to several loggers.
type MultiLogger []PhaseLogger

// LogPhaseStart forwards to every logger.
func (m MultiLogger) LogPhaseStart(phase string, targets int) {
	for _, l := range m {
		l.LogPhaseStart(phase, targets)
	}
}

// LogPhaseComplete forwards to every logger.
func (m MultiLogger) LogPhaseComplete(phase string, duration time.Duration, failed, total int) {
	for _, l := range m {
		l.LogPhaseComplete(phase, duration, failed, total)
	}
}

// LogTargetResult forwards to every logger.
func (m MultiLogger) LogTargetResult(phase, target, status string, exitCode int, output string) {
	for _, l := range m {
		l.LogTargetResult(phase, target, status, exitCode, output)
	}
}

// LogProgress forwards to every logger.
func (m MultiLogger) LogProgress(completed, total int) {
	for _, l := range m {
		l.LogProgress(completed, total)
	}
}

// LogWarn forwards to every logger.
func (m MultiLogger) LogWarn(message string) {
	for _, l := range m {
		l.LogWarn(message)
	}
}
