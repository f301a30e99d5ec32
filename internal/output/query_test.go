package output

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestQueryRun(t *testing.T) {
	tests := []struct {
		expr string
		want []interface{}
	}{
		{".ping.packet_loss", []interface{}{25.0}},
		{".dns[] | select(.success | not) | .hostname", []interface{}{"broken.example"}},
		{".http.status_code", []interface{}{301.0}},
		{"[.ping.latencies[] | select(. == null)] | length", []interface{}{1}},
		{"halt", nil},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			q, err := ParseQuery(tt.expr)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			got, err := q.Run(context.Background(), sampleReport())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryErrors(t *testing.T) {
	if _, err := ParseQuery(".ping["); err == nil {
		t.Error("expected parse error")
	}

	q, err := ParseQuery(`.summary | error`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Run(context.Background(), sampleReport()); err == nil {
		t.Error("expected runtime error")
	}
}

func TestWriteQuery(t *testing.T) {
	q, err := ParseQuery(".ping.method")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteQuery(context.Background(), &buf, q, sampleReport()); err != nil {
		t.Fatalf("WriteQuery: %v", err)
	}
	if buf.String() != "\"tcp\"\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestEmptyQueryIsIdentity(t *testing.T) {
	q, err := ParseQuery("")
	if err != nil {
		t.Fatal(err)
	}
	got, err := q.Run(context.Background(), sampleReport())
	if err != nil || len(got) != 1 {
		t.Fatalf("got %v, %v", got, err)
	}
	if _, ok := got[0].(map[string]interface{}); !ok {
		t.Errorf("identity result is %T, want object", got[0])
	}
}
