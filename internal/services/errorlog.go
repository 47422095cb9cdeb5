package services

import (
	"errors"
	"time"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/models"

	"github.com/ternarybob/arbor"
)

type errorLogger struct {
	store  ErrorLogStore
	logger arbor.ILogger
	now    func() time.Time
}

// NewErrorLogger records errors in the diagnostic log kept by store.
func NewErrorLogger(store ErrorLogStore, logger arbor.ILogger) ErrorLogger {
	return &errorLogger{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// LogError appends err to the diagnostic log. Failing to write the log is
// only reported through the process logger.
func (l *errorLogger) LogError(source string, err error, info map[string]interface{}) {
	if err == nil {
		return
	}

	record := NewErrorRecord(l.now(), source, err, info)
	l.logger.Error().Err(err).Str("source", source).Str("type", record.Type).Msg("Error recorded")

	if l.store == nil {
		return
	}
	if storeErr := l.store.AppendErrorLog(record); storeErr != nil {
		l.logger.Warn().Err(storeErr).Msg("Failed to log error")
	}
}

// NewErrorRecord builds the log record of err. Context carried by a
// ScanError is merged with info, info winning on conflicts.
func NewErrorRecord(at time.Time, source string, err error, info map[string]interface{}) models.ErrorRecord {
	record := models.ErrorRecord{
		Timestamp: at.UTC().Format(models.TimestampLayout),
		Source:    source,
		Error:     err.Error(),
		Type:      string(ErrorTypeOf(err)),
	}

	fields := make(map[string]interface{})
	var se *ScanError
	if errors.As(err, &se) {
		record.Code = se.Code
		for k, v := range se.Context {
			fields[k] = v
		}
	}
	for k, v := range info {
		fields[k] = v
	}
	if len(fields) > 0 {
		record.Context = fields
	}
	return record
}
