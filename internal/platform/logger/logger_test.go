package logger

import "testing"

func TestSanitizeKVsRedactsProofs(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"purchase_id", "p-1",
		"receipt_data", "MIIT...base64",
		"shared_secret", "s3cr3t",
		"user_id", "u-1",
	})
	if len(out) != 8 {
		t.Fatalf("len: want=8 got=%d", len(out))
	}
	if out[1] != "p-1" {
		t.Fatalf("purchase_id: want=%q got=%v", "p-1", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("receipt_data: want redacted got=%v", out[3])
	}
	if out[5] != "[REDACTED]" {
		t.Fatalf("shared_secret: want redacted got=%v", out[5])
	}
	if s, _ := out[7].(string); len(s) != len("hash:")+12 {
		t.Fatalf("user_id: want hashed got=%v", out[7])
	}
}

func TestSanitizeKVsRedactsCompactTokenValues(t *testing.T) {
	tok := "eyJhbGciOiJFUzI1NiJ9.eyJ0cmFuc2FjdGlvbklkIjoiMSJ9.c2ln"
	out := sanitizeKVs([]interface{}{"proof", tok})
	if out[1] != "[REDACTED]" {
		t.Fatalf("proof: want redacted got=%v", out[1])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("odd kv: got=%v", out)
	}
}
