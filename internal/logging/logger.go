// Package logging provides the application logger and the append-only
// detection audit log, both JSON-encoded with size-based rotation.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the audit surface plus access to the application logger.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event *Event) error

	// Detection lifecycle events
	LogDetectionStarted(ctx context.Context, correlationID, scenario, assetID string) error
	LogDetectionCompleted(ctx context.Context, correlationID, scenario, assetID string, nAnomalies int, duration time.Duration) error
	LogDetectionFailed(ctx context.Context, correlationID, scenario, assetID string, err error) error

	// Domain events
	LogTicketCreated(ctx context.Context, ticketID, scenario, assetID, severity string) error
	LogModelTrained(ctx context.Context, rows int, artifactPath string, duration time.Duration) error
	LogSignalsIngested(ctx context.Context, scenario string, rows int) error

	// App returns the structured application logger.
	App() *zap.Logger

	// Sync flushes buffered log entries.
	Sync() error

	// Close stops the logger and flushes remaining entries.
	Close() error
}

// Config represents logger configuration.
type Config struct {
	AuditLogPath string
	AppLogPath   string
	MaxSize      int // megabytes before rotation
	MaxBackups   int
	MaxAge       int // days
	Compress     bool
	LogLevel     string
}

// DefaultConfig returns default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		AuditLogPath: "logs/gridsight-audit.log",
		AppLogPath:   "logs/gridsight.log",
		MaxSize:      100,
		MaxBackups:   5,
		MaxAge:       30,
		Compress:     true,
		LogLevel:     "info",
	}
}

type dualLogger struct {
	appLogger   *zap.Logger
	auditLogger *zap.Logger
	config      *Config
	mu          sync.Mutex
	buffer      []*Event
	flushTicker *time.Ticker
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewLogger creates the application + audit logger pair.
func NewLogger(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zapcore.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", config.LogLevel, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	appRotator := &lumberjack.Logger{
		Filename:   config.AppLogPath,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	appCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(appRotator),
		level,
	)
	appLogger := zap.New(appCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	// Audit log is append-only and always INFO level.
	auditRotator := &lumberjack.Logger{
		Filename:   config.AuditLogPath,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	auditCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(auditRotator),
		zapcore.InfoLevel,
	)

	l := &dualLogger{
		appLogger:   appLogger,
		auditLogger: zap.New(auditCore),
		config:      config,
		buffer:      make([]*Event, 0, 100),
		flushTicker: time.NewTicker(1 * time.Second),
		stopCh:      make(chan struct{}),
	}
	go l.autoFlush()
	return l, nil
}

func (l *dualLogger) App() *zap.Logger { return l.appLogger }

// Log buffers an audit event, flushing when the buffer fills.
func (l *dualLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, event)
	if len(l.buffer) >= 100 {
		return l.flushLocked()
	}
	return nil
}

// flushLocked flushes the buffer (caller must hold lock).
func (l *dualLogger) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}
	for _, event := range l.buffer {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			l.appLogger.Error("failed to marshal audit event",
				zap.Error(err),
				zap.String("event_type", string(event.EventType)),
			)
			continue
		}
		l.auditLogger.Info(string(eventJSON),
			zap.String("correlation_id", event.CorrelationID),
			zap.String("event_type", string(event.EventType)),
			zap.String("result", string(event.Result)),
		)
	}
	l.buffer = l.buffer[:0]
	return nil
}

func (l *dualLogger) autoFlush() {
	for {
		select {
		case <-l.flushTicker.C:
			l.mu.Lock()
			_ = l.flushLocked()
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

func (l *dualLogger) LogDetectionStarted(ctx context.Context, correlationID, scenario, assetID string) error {
	event := NewEvent(EventDetectionStarted).
		WithCorrelationID(correlationID).
		WithSelection(scenario, assetID).
		WithDescription(fmt.Sprintf("Detection started for %s/%s", scenario, assetID))
	return l.Log(ctx, event)
}

func (l *dualLogger) LogDetectionCompleted(ctx context.Context, correlationID, scenario, assetID string, nAnomalies int, duration time.Duration) error {
	event := NewEvent(EventDetectionCompleted).
		WithCorrelationID(correlationID).
		WithSelection(scenario, assetID).
		WithResult(ResultSuccess).
		WithDuration(duration).
		WithMetadata("n_anomalies", nAnomalies).
		WithDescription(fmt.Sprintf("Detection completed for %s/%s", scenario, assetID))
	return l.Log(ctx, event)
}

func (l *dualLogger) LogDetectionFailed(ctx context.Context, correlationID, scenario, assetID string, err error) error {
	event := NewEvent(EventDetectionFailed).
		WithCorrelationID(correlationID).
		WithSelection(scenario, assetID).
		WithError(err).
		WithDescription(fmt.Sprintf("Detection failed for %s/%s", scenario, assetID))
	return l.Log(ctx, event)
}

func (l *dualLogger) LogTicketCreated(ctx context.Context, ticketID, scenario, assetID, severity string) error {
	event := NewEvent(EventTicketCreated).
		WithCorrelationID(ticketID).
		WithSelection(scenario, assetID).
		WithResult(ResultSuccess).
		WithMetadata("severity", severity).
		WithDescription(fmt.Sprintf("Fault ticket %s created (%s)", ticketID, severity))
	return l.Log(ctx, event)
}

func (l *dualLogger) LogModelTrained(ctx context.Context, rows int, artifactPath string, duration time.Duration) error {
	event := NewEvent(EventModelTrained).
		WithResult(ResultSuccess).
		WithDuration(duration).
		WithMetadata("rows", rows).
		WithMetadata("artifact", artifactPath).
		WithDescription(fmt.Sprintf("Baseline model trained on %d rows", rows))
	return l.Log(ctx, event)
}

func (l *dualLogger) LogSignalsIngested(ctx context.Context, scenario string, rows int) error {
	event := NewEvent(EventSignalsIngested).
		WithResult(ResultSuccess).
		WithSelection(scenario, "").
		WithMetadata("rows", rows).
		WithDescription(fmt.Sprintf("Ingested %d signal rows", rows))
	return l.Log(ctx, event)
}

// Sync flushes buffered log entries.
func (l *dualLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flushLocked(); err != nil {
		return err
	}
	if err := l.auditLogger.Sync(); err != nil {
		return err
	}
	return l.appLogger.Sync()
}

// Close stops the flush goroutine and flushes remaining entries.
func (l *dualLogger) Close() error {
	l.stopOnce.Do(func() {
		l.flushTicker.Stop()
		close(l.stopCh)
	})
	return l.Sync()
}
