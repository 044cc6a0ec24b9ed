package gcp

import "testing"

func TestCredentialOptions(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{`{"type":"service_account"}`, 1},
		{"/etc/gcp/key.json", 1},
	}
	for _, tc := range cases {
		if got := len(credentialOptions(tc.in)); got != tc.want {
			t.Fatalf("credentialOptions(%q): want=%d got=%d", tc.in, tc.want, got)
		}
	}
}

func TestObjectKey(t *testing.T) {
	a := &ReportArchive{prefix: "monthly-reports"}
	if got := a.ObjectKey("2024-03"); got != "monthly-reports/2024-03.json" {
		t.Fatalf("ObjectKey: got=%q", got)
	}
}
