/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	logger zerolog.Logger
	level  LogLevel
}

// Zerolog returns a Logger writing through the given zerolog logger.
// Messages below minLevel are dropped before an event is allocated.
func Zerolog(logger zerolog.Logger, minLevel LogLevel) Logger {
	return &zerologLogger{
		logger: logger,
		level:  minLevel,
	}
}

func (zl *zerologLogger) Log(level LogLevel, text string, args ...interface{}) {
	if level < zl.level {
		return
	}

	var event *zerolog.Event
	switch level {
	case LevelDebug:
		event = zl.logger.Debug()
	case LevelInfo:
		event = zl.logger.Info()
	case LevelWarn:
		event = zl.logger.Warn()
	default:
		event = zl.logger.Error()
	}

	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			event = event.Str(key, "%MISSING%")
			break
		}
		switch v := args[i+1].(type) {
		case []byte:
			event = event.Hex(key, v)
		case error:
			event = event.AnErr(key, v)
		default:
			event = event.Interface(key, v)
		}
	}

	event.Msg(text)
}

// zapLogger adapts a *zap.Logger to the Logger interface.
type zapLogger struct {
	logger *zap.Logger
}

// Zap returns a Logger writing through the given zap logger.
// Level filtering is left to the zap core.
func Zap(logger *zap.Logger) Logger {
	return &zapLogger{
		logger: logger,
	}
}

func (zl *zapLogger) Log(level LogLevel, text string, args ...interface{}) {
	fields := make([]zap.Field, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			fields = append(fields, zap.String(key, "%MISSING%"))
			break
		}
		switch v := args[i+1].(type) {
		case []byte:
			fields = append(fields, zap.String(key, fmt.Sprintf("%x", v)))
		case error:
			fields = append(fields, zap.NamedError(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch level {
	case LevelDebug:
		zl.logger.Debug(text, fields...)
	case LevelInfo:
		zl.logger.Info(text, fields...)
	case LevelWarn:
		zl.logger.Warn(text, fields...)
	default:
		zl.logger.Error(text, fields...)
	}
}
