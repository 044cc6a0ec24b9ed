package ctxutil

import (
	"context"
	"testing"
)

func TestStampRoundTripsThroughPayload(t *testing.T) {
	td := &TraceData{TraceID: "t-1", RequestID: "r-1"}
	payload := map[string]any{"purchase_id": "p", "request_id": "caller"}
	td.Stamp(payload)

	if payload["trace_id"] != "t-1" {
		t.Fatalf("trace_id: want=t-1 got=%v", payload["trace_id"])
	}
	if payload["request_id"] != "caller" {
		t.Fatalf("request_id must not be overwritten: got=%v", payload["request_id"])
	}

	got := FromPayload(payload)
	if got == nil || got.TraceID != "t-1" || got.RequestID != "caller" {
		t.Fatalf("FromPayload: got=%+v", got)
	}
	if FromPayload(map[string]any{"month": "2024-03"}) != nil {
		t.Fatalf("FromPayload without ids should be nil")
	}
}

func TestGetTraceData(t *testing.T) {
	if GetTraceData(context.Background()) != nil {
		t.Fatalf("empty context should have no trace data")
	}
	ctx := WithTraceData(context.Background(), &TraceData{RequestID: "r"})
	td := GetTraceData(ctx)
	if td == nil || len(td.Fields()) != 2 {
		t.Fatalf("Fields: got=%v", td.Fields())
	}
	var nilTD *TraceData
	if nilTD.Fields() != nil {
		t.Fatalf("nil Fields should be nil")
	}
}
