package client

import (
	"fmt"
	"strings"
)

const (
	labelPolicy    = "policy"
	labelKind      = "kind"
	labelOperation = "operation"
	labelStatus    = "status"
)

type logField struct {
	key   string
	value any
}

func logKV(key string, value any) logField {
	return logField{key: key, value: value}
}

func (s *Session) metricAttrs(fields ...logField) map[string]string {
	attrs := make(map[string]string, len(fields)+1)
	attrs[labelPolicy] = s.policyName()
	for _, field := range fields {
		if field.key == "" {
			continue
		}
		attrs[field.key] = fmt.Sprint(field.value)
	}
	return attrs
}

func (s *Session) logDispatcherEvent(event string, fields ...logField) {
	if s == nil {
		return
	}
	if s.structuredLogger != nil {
		kv := make([]any, 0, len(fields)*2+2)
		kv = append(kv, "event", event)
		for _, field := range fields {
			if field.key == "" {
				continue
			}
			kv = append(kv, field.key, field.value)
		}
		s.structuredLogger.Debugw("dct client dispatcher", kv...)
		return
	}
	if s.logger == nil {
		return
	}
	var b strings.Builder
	b.WriteString(event)
	for _, field := range fields {
		if field.key == "" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(field.key)
		b.WriteString("=")
		b.WriteString(fmt.Sprint(field.value))
	}
	s.logger.Debugf("client dispatcher %s", b.String())
}

func (s *Session) logf(format string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Debugf(format, args...)
}

func (s *Session) metricDispatcherStarted(fields ...logField) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.DispatcherStarted(s.metricAttrs(fields...))
}

func (s *Session) metricDispatcherStopped(fields ...logField) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.DispatcherStopped(s.metricAttrs(fields...))
}

func (s *Session) metricDispatcherProgressError(kind string, err error, fields ...logField) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.DispatcherProgressError(kind, err, s.metricAttrs(fields...))
}

func (s *Session) metricSubmitQueued(fields ...logField) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.SubmitQueued(s.metricAttrs(fields...))
}

func (s *Session) metricOperationCompleted(fields ...logField) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.OperationCompleted(s.metricAttrs(fields...))
}

func (s *Session) metricOperationFailed(err error, fields ...logField) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.OperationFailed(err, s.metricAttrs(fields...))
}

func spanAddEvent(span Span, name string, fields ...logField) {
	if span == nil {
		return
	}
	span.AddEvent(name, attributesFromFields(fields...)...)
}

func spanRecordError(span Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
}

func attributesFromFields(fields ...logField) []TraceAttribute {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]TraceAttribute, 0, len(fields))
	for _, field := range fields {
		if field.key == "" {
			continue
		}
		attrs = append(attrs, TraceAttribute{Key: field.key, Value: field.value})
	}
	return attrs
}
