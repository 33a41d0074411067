package codec

import (
	"context"
	"testing"
	"time"

	"github.com/reoring/kim"
)

func TestTimeRFC3339_Basic(t *testing.T) {
	c := TimeRFC3339()

	in := "2025-01-01T09:00:00+09:00"
	got, err := c.FromValue(in)
	if err != nil {
		t.Fatalf("from value err: %v", err)
	}
	if err := c.Validate(got); err != nil {
		t.Fatalf("validate err: %v", err)
	}
	if !got.(time.Time).Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", got)
	}

	out, err := c.GetValue(got)
	if err != nil {
		t.Fatalf("get value err: %v", err)
	}
	if out != "2025-01-01T00:00:00Z" {
		t.Fatalf("unexpected canonical output: %v", out)
	}
}

func TestTimeRFC3339_Rejects(t *testing.T) {
	c := TimeRFC3339()
	for _, in := range []any{"2025-13-01T00:00:00Z", "yesterday", 1700000000, nil} {
		if _, err := c.FromValue(in); err == nil {
			t.Fatalf("expected error for %#v", in)
		}
	}
	if err := c.Validate("2025-01-01T00:00:00Z"); err == nil {
		t.Fatalf("expected validate to require time.Time")
	}
	if _, err := c.GetValue(42); err == nil {
		t.Fatalf("expected get value error for int")
	}
}

func TestTimeRFC3339_InMapping(t *testing.T) {
	m := kim.MustMapping("event",
		kim.MustField(TimeRFC3339(), kim.Options{Name: "at", Required: true}),
	)
	mp := kim.MustMapper(m)
	ctx := context.Background()

	out, err := mp.Marshal(ctx, map[string]any{"at": "2025-06-30T12:00:00.500Z"})
	if err != nil {
		t.Fatalf("marshal err: %v", err)
	}
	at, ok := out["at"].(time.Time)
	if !ok || at.Nanosecond() != 500000000 {
		t.Fatalf("unexpected marshal output: %#v", out)
	}

	_, err = mp.Marshal(ctx, map[string]any{"at": "soon"})
	iss, ok := kim.AsIssues(err)
	if !ok || len(iss) != 1 || iss[0].Code != kim.CodeTypeError {
		t.Fatalf("expected one type_error issue, got: %v", err)
	}

	ser, err := mp.Serialize(ctx, map[string]any{"at": at})
	if err != nil {
		t.Fatalf("serialize err: %v", err)
	}
	if ser["at"] != "2025-06-30T12:00:00.5Z" {
		t.Fatalf("unexpected serialize output: %#v", ser)
	}
}
