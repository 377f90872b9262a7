package logger

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strings"
	"time"

	"github.com/payhub/alipay-broker/infra/opensearch"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// levelOrder maps levels to their severity for filtering
var levelOrder = map[LogLevel]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// SystemLogger handles structured logging to console and OpenSearch
type SystemLogger struct {
	openSearchLogger *opensearch.Logger
	enableConsole    bool
	enableOpenSearch bool
	minLevel         LogLevel
	service          string
	environment      string
}

// SystemLoggerConfig represents configuration for system logger
type SystemLoggerConfig struct {
	EnableConsole    bool
	EnableOpenSearch bool
	MinLevel         LogLevel
	Service          string
	Environment      string
}

// LogContext holds contextual information for logging
type LogContext struct {
	OrderID   string
	RequestID string
	Fields    map[string]any
}

// NewSystemLogger creates a new system logger
func NewSystemLogger(openSearchLogger *opensearch.Logger, config SystemLoggerConfig) *SystemLogger {
	return &SystemLogger{
		openSearchLogger: openSearchLogger,
		enableConsole:    config.EnableConsole,
		enableOpenSearch: config.EnableOpenSearch && openSearchLogger != nil,
		minLevel:         config.MinLevel,
		service:          config.Service,
		environment:      config.Environment,
	}
}

// Debug logs a debug message
func (sl *SystemLogger) Debug(message string, ctx ...LogContext) {
	sl.log(LevelDebug, message, ctx...)
}

// Info logs an info message
func (sl *SystemLogger) Info(message string, ctx ...LogContext) {
	sl.log(LevelInfo, message, ctx...)
}

// Warn logs a warning message
func (sl *SystemLogger) Warn(message string, ctx ...LogContext) {
	sl.log(LevelWarn, message, ctx...)
}

// Error logs an error message
func (sl *SystemLogger) Error(message string, err error, ctx ...LogContext) {
	logCtx := LogContext{}
	if len(ctx) > 0 {
		logCtx = ctx[0]
	}

	if logCtx.Fields == nil {
		logCtx.Fields = make(map[string]any)
	}

	if err != nil {
		logCtx.Fields["error"] = err.Error()
	}

	sl.log(LevelError, message, logCtx)
}

func (sl *SystemLogger) log(level LogLevel, message string, ctx ...LogContext) {
	if levelOrder[level] < levelOrder[sl.minLevel] {
		return
	}

	logCtx := LogContext{}
	if len(ctx) > 0 {
		logCtx = ctx[0]
	}

	if sl.enableConsole {
		sl.logToConsole(level, message, logCtx)
	}

	if sl.enableOpenSearch {
		sl.logToOpenSearch(level, message, logCtx)
	}
}

func (sl *SystemLogger) logToConsole(level LogLevel, message string, ctx LogContext) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", strings.ToUpper(string(level)), message))

	if ctx.OrderID != "" {
		sb.WriteString(fmt.Sprintf(" order=%s", ctx.OrderID))
	}
	if ctx.RequestID != "" {
		sb.WriteString(fmt.Sprintf(" request=%s", ctx.RequestID))
	}
	for key, value := range ctx.Fields {
		sb.WriteString(fmt.Sprintf(" %s=%v", key, value))
	}

	if caller := callerInfo(); caller != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", caller))
	}

	log.Println(sb.String())
}

func (sl *SystemLogger) logToOpenSearch(level LogLevel, message string, ctx LogContext) {
	event := opensearch.PaymentEvent{
		Timestamp: time.Now(),
		Event:     fmt.Sprintf("log_%s", level),
		OrderID:   ctx.OrderID,
		RequestID: ctx.RequestID,
	}
	if errMsg, ok := ctx.Fields["error"].(string); ok {
		event.Error = errMsg
	} else if level == LevelError || level == LevelWarn {
		event.Error = message
	}

	// Fire-and-forget: log delivery must never block request handling
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sl.openSearchLogger.LogEvent(ctx, event); err != nil {
			log.Printf("Failed to ship log to OpenSearch: %v", err)
		}
	}()
}

// callerInfo returns file:line of the logging call site
func callerInfo() string {
	// Skip runtime.Caller, callerInfo, logToConsole, log, and the level helper
	_, file, line, ok := runtime.Caller(5)
	if !ok {
		return ""
	}
	if idx := strings.LastIndex(file, "/"); idx != -1 {
		file = file[idx+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}
