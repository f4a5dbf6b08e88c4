package core

import (
	"context"
	"fmt"
	"maps"
	"strings"
)

// NopMetricsRecorder drops every observation.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// operationTags labels an operation metric. Providers are normalized to the
// three known kinds so a bad request cannot mint new label values, and a
// template sync carries its outcome.
func operationTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	if provider := fieldString(fields, "provider"); provider != "" {
		tags["provider"] = string(ParseProviderKind(provider))
	}
	if channelID := fieldString(fields, "channel_id"); channelID != "" {
		tags["channel_id"] = channelID
	}
	if outcome := fieldString(fields, "outcome"); outcome != "" {
		tags["outcome"] = outcome
	}
	return tags
}

func fieldString(fields map[string]any, key string) string {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

func copyTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	return maps.Clone(tags)
}

var _ MetricsRecorder = NopMetricsRecorder{}
