package idempotency

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestKeyStable(t *testing.T) {
	a := Key("sess-1", "/game")
	if a != Key("sess-1", "/game") {
		t.Fatalf("key must be deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
	if a == Key("sess-1", "/questionnaires") || a == Key("sess-2", "/game") {
		t.Fatalf("keys must differ per session and endpoint")
	}
	if Key("ab", "c") == Key("a", "bc") {
		t.Fatalf("session and endpoint must be separated")
	}
}

func TestRedisGuardFromURLInvalid(t *testing.T) {
	if _, err := NewRedisGuardFromURL(context.Background(), "not-a-url"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRedisGuardPrefix(t *testing.T) {
	g := NewRedisGuard(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	defer g.Close()
	if g.prefix != "dronerecon:claim:" {
		t.Fatalf("unexpected prefix %q", g.prefix)
	}
}
