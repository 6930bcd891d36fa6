package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileLogger logs orchestrator events to files in the configured log directory.
// It creates timestamped per-run log files, per-target output logs, and
// maintains a latest.log symlink pointing to the most recent run.
type FileLogger struct {
	logDir     string
	runLog     *os.File
	runFile    string
	targetsDir string
	logLevel   string
	mu         sync.Mutex
}

// NewFileLogger creates a FileLogger under logDir with the given level.
// It creates the log directory if it doesn't exist, opens a timestamped
// run log file, and creates/updates the latest.log symlink.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	targetsDir := filepath.Join(logDir, "targets")
	if err := os.MkdirAll(targetsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Generate timestamped filename: run-YYYYMMDD-HHMMSS.log
	stamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", stamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:     logDir,
		runLog:     file,
		runFile:    runFile,
		targetsDir: targetsDir,
		logLevel:   normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== monorun Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogPhaseStart records the start of a phase. Phase lines are always written.
func (fl *FileLogger) LogPhaseStart(phase string, targets int) {
	fl.writeRunLog(fmt.Sprintf("[%s] Starting %s: %d %s\n", timestamp(), phase, targets, plural(targets, "target")))
}

// LogPhaseComplete records the completion of a phase.
func (fl *FileLogger) LogPhaseComplete(phase string, duration time.Duration, failed, total int) {
	fl.writeRunLog(fmt.Sprintf("[%s] %s complete: duration %.1fs, %d/%d failed\n",
		timestamp(), phase, duration.Seconds(), failed, total))
}

// LogTargetResult records the result line in the run log and writes the
// captured output to targets/<phase>-<target>.log.
func (fl *FileLogger) LogTargetResult(phase, target, status string, exitCode int, output string) {
	fl.writeRunLog(fmt.Sprintf("[%s] %s %s: %s (exit %d)\n", timestamp(), phase, target, status, exitCode))

	if output == "" {
		return
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	path := filepath.Join(fl.targetsDir, fmt.Sprintf("%s-%s.log", phase, target))
	content := fmt.Sprintf("=== %s %s ===\nStatus: %s\nExit code: %d\n\n%s", phase, target, status, exitCode, output)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		fmt.Fprintf(fl.runLog, "[%s] [WARN] failed to write %s: %v\n", timestamp(), path, err)
	}
}

// LogProgress is not recorded in files.
func (fl *FileLogger) LogProgress(completed, total int) {}

// Close flushes and closes the run log file.
// It should be called when the logger is no longer needed.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		// Flush after each write for real-time logging
		fl.runLog.Sync()
	}
}
