package synth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMockDeterministic(t *testing.T) {
	m := NewMock()
	req := Request{Text: "hello there", Voice: "en-US-AriaNeural"}

	first, err := m.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("mock output not deterministic")
	}
	if len(first) == 0 {
		t.Fatal("mock produced no audio")
	}
}

func TestMockInjectedFailure(t *testing.T) {
	boom := &ServiceError{Voice: "v", Err: errors.New("boom")}
	m := &Mock{Fail: func(Request) error { return boom }}

	_, err := m.Synthesize(context.Background(), Request{Text: "x", Voice: "v"})
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
}

func TestMockHonorsCancellation(t *testing.T) {
	m := &Mock{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Synthesize(ctx, Request{Text: "x", Voice: "v"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewExecSynthRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecSynth("", "mp3"); err == nil {
		t.Fatal("expected error for empty command")
	}
	if _, err := NewExecSynth("edge-tts 'unterminated", "mp3"); err == nil {
		t.Fatal("expected parse error for bad quoting")
	}
}

func TestHTTPSynthSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("missing bearer auth, got %q", got)
		}
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	s := NewHTTPSynth(srv.URL, "sekrit", "tts-1", "mp3")
	audio, err := s.Synthesize(context.Background(), Request{Text: "hi", Voice: "en-US-AriaNeural"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "audio-bytes" {
		t.Fatalf("unexpected audio: %q", audio)
	}
}

func TestHTTPSynthServiceRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not available", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewHTTPSynth(srv.URL, "", "", "mp3")
	_, err := s.Synthesize(context.Background(), Request{Text: "hi", Voice: "bogus"})
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
}

func TestHTTPSynthTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	s := NewHTTPSynth(srv.URL, "", "", "mp3")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Synthesize(ctx, Request{Text: "hi", Voice: "v"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestVoiceCatalog(t *testing.T) {
	if !ValidVoice(DefaultVoice) {
		t.Fatal("default voice missing from catalog")
	}
	if ValidVoice("en-GB-Nonexistent") {
		t.Fatal("unknown voice reported valid")
	}
	list := Voices()
	if len(list) == 0 {
		t.Fatal("empty voice catalog")
	}
	list[0].ShortName = "mutated"
	if Voices()[0].ShortName == "mutated" {
		t.Fatal("Voices must return a copy")
	}
}
