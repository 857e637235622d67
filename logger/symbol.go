package logger

import (
	"github.com/teranos/warden/sym"
	"go.uber.org/zap"
)

// Symbol-aware logging helpers.
// These functions log with the symbol as a structured field, not in the message.
//
// Usage:
//
//	// Instead of:
//	logger.Infow(sym.Job + " Job started", "job_id", id)
//
//	// Use:
//	logger.JobInfow("Job started", "job_id", id)
//
// This makes logs queryable by symbol and keeps messages clean.

// JobInfow logs an info message with the Job symbol (꩜)
func JobInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Job}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// JobDebugw logs a debug message with the Job symbol (꩜)
func JobDebugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Job}, keysAndValues...)
		Logger.Debugw(msg, fields...)
	}
}

// JobWarnw logs a warning message with the Job symbol (꩜)
func JobWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Job}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// JobErrorw logs an error message with the Job symbol (꩜)
func JobErrorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Job}, keysAndValues...)
		Logger.Errorw(msg, fields...)
	}
}

// OpenInfow logs an info message with the Open symbol (✿)
// Used for graceful startup operations
func OpenInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Open}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// CloseInfow logs an info message with the Close symbol (❀)
// Used for graceful shutdown operations
func CloseInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Close}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// CloudInfow logs an info message with the Cloud symbol (⇅)
// Used for notification and task polling operations
func CloudInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Cloud}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// CloudDebugw logs a debug message with the Cloud symbol (⇅)
func CloudDebugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Cloud}, keysAndValues...)
		Logger.Debugw(msg, fields...)
	}
}

// CloudWarnw logs a warning message with the Cloud symbol (⇅)
func CloudWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Cloud}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// TrackInfow logs an info message with the Track symbol (∿)
// Used for scalar tracking and condition operations
func TrackInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Track}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// TrackDebugw logs a debug message with the Track symbol (∿)
func TrackDebugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Track}, keysAndValues...)
		Logger.Debugw(msg, fields...)
	}
}

// DBInfow logs an info message with the DB symbol (⊔)
// Used for database/storage operations
func DBInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.DB}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// DBDebugw logs a debug message with the DB symbol (⊔)
func DBDebugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.DB}, keysAndValues...)
		Logger.Debugw(msg, fields...)
	}
}

// WithSymbol returns a logger with the given symbol as a field.
// For ad-hoc symbol usage not covered by the helpers above.
//
// Example:
//
//	symbolLogger := logger.WithSymbol(sym.Watch)
//	symbolLogger.Infow("Watching process", "pid", pid)
func WithSymbol(symbol string) *zap.SugaredLogger {
	return Logger.With(FieldSymbol, symbol)
}

// SymbolInfow logs with any symbol - for dynamic symbol usage
func SymbolInfow(symbol, msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, symbol}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// ============================================================================
// Instance logger wrappers
// ============================================================================
// These functions wrap any logger with a symbol field, useful when you have
// an instance logger (e.g., s.logger, t.logger) rather than using the global Logger.
//
// Usage:
//
//	// At initialization:
//	type Scheduler struct {
//	    jobLog *zap.SugaredLogger
//	}
//	s.jobLog = logger.AddJobSymbol(baseLogger)
//
//	// Or inline:
//	logger.AddJobSymbol(s.logger).Infow("Job queued", "job_id", id)

// AddJobSymbol wraps a logger with the Job symbol (꩜)
func AddJobSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Job)
}

// AddOpenSymbol wraps a logger with the Open symbol (✿)
func AddOpenSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Open)
}

// AddCloseSymbol wraps a logger with the Close symbol (❀)
func AddCloseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Close)
}

// AddDBSymbol wraps a logger with the DB symbol (⊔)
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.DB)
}

// AddCloudSymbol wraps a logger with the Cloud symbol (⇅)
func AddCloudSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Cloud)
}

// AddTrackSymbol wraps a logger with the Track symbol (∿)
func AddTrackSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Track)
}

// AddWatchSymbol wraps a logger with the Watch symbol (◉)
func AddWatchSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Watch)
}
