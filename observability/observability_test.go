package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Fatalf("nil logger should become NopLogger")
	}
}

func TestLogrusAdapterWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.JSONFormatter{})

	log := NewLogrus(l).With(String("op", "parse"))
	log.Warn("recovered defect",
		Int("object", 7),
		Int64("offset", 1024),
		Bool("repair", true),
		Duration("took", 2*time.Millisecond),
		Error("err", errors.New("bad xref")),
	)

	out := buf.String()
	for _, want := range []string{`"op":"parse"`, `"object":7`, `"offset":1024`, `"err":"bad xref"`, `"level":"warning"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %s", out, want)
		}
	}
}
