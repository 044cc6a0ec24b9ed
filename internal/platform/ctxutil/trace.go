package ctxutil

import "context"

type traceDataKey struct{}

// TraceData follows a request into the jobs it enqueues.
type TraceData struct {
	TraceID   string
	RequestID string
}

const (
	payloadTraceID   = "trace_id"
	payloadRequestID = "request_id"
)

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// Fields returns the non-empty ids as logger key/value pairs.
func (td *TraceData) Fields() []interface{} {
	if td == nil {
		return nil
	}
	var kv []interface{}
	if td.TraceID != "" {
		kv = append(kv, payloadTraceID, td.TraceID)
	}
	if td.RequestID != "" {
		kv = append(kv, payloadRequestID, td.RequestID)
	}
	return kv
}

// Stamp copies the ids into a job payload without overwriting keys the caller set.
func (td *TraceData) Stamp(payload map[string]any) {
	if td == nil || payload == nil {
		return
	}
	if _, ok := payload[payloadTraceID]; !ok && td.TraceID != "" {
		payload[payloadTraceID] = td.TraceID
	}
	if _, ok := payload[payloadRequestID]; !ok && td.RequestID != "" {
		payload[payloadRequestID] = td.RequestID
	}
}

// FromPayload reads ids stamped by Stamp; nil when neither is present.
func FromPayload(payload map[string]any) *TraceData {
	traceID, _ := payload[payloadTraceID].(string)
	reqID, _ := payload[payloadRequestID].(string)
	if traceID == "" && reqID == "" {
		return nil
	}
	return &TraceData{TraceID: traceID, RequestID: reqID}
}
