package services

import (
	"context"
	"errors"
	"testing"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error) {
	return f.reply, f.err
}

func TestReformulateReturnsRewrite(t *testing.T) {
	r := NewReformulatorService(&fakeCompleter{reply: "reset timer instructions"})
	got := r.Reformulate(context.Background(), "how do i reset the timr")
	if got != "reset timer instructions" {
		t.Fatalf("unexpected rewrite: %q", got)
	}
}

func TestReformulateStripsSurroundingQuotes(t *testing.T) {
	r := NewReformulatorService(&fakeCompleter{reply: "\"emissions toybox feature\""})
	if got := r.Reformulate(context.Background(), "q"); got != "emissions toybox feature" {
		t.Fatalf("quotes not stripped: %q", got)
	}
	r = NewReformulatorService(&fakeCompleter{reply: "`backticked query`"})
	if got := r.Reformulate(context.Background(), "q"); got != "backticked query" {
		t.Fatalf("backticks not stripped: %q", got)
	}
}

func TestReformulateFallsBackOnError(t *testing.T) {
	r := NewReformulatorService(&fakeCompleter{err: errors.New("provider down")})
	original := "how do I install it"
	if got := r.Reformulate(context.Background(), original); got != original {
		t.Fatalf("expected original query on failure, got %q", got)
	}
}

func TestReformulateFallsBackOnEmptyReply(t *testing.T) {
	r := NewReformulatorService(&fakeCompleter{reply: "  \"\"  "})
	original := "original question"
	if got := r.Reformulate(context.Background(), original); got != original {
		t.Fatalf("expected original query on empty rewrite, got %q", got)
	}
}
