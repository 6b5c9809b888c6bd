package utils

import (
	"testing"
	"time"
)

func TestShardIndexIsStableAndBounded(t *testing.T) {
	keys := []string{"msf:schedule:2025:3", "msf:teamstats:2025:all", "", "x"}
	for _, key := range keys {
		first := ShardIndex(8, key)
		if first >= 8 {
			t.Fatalf("ShardIndex(8, %q) = %d, out of range", key, first)
		}
		if again := ShardIndex(8, key); again != first {
			t.Errorf("ShardIndex(8, %q) not stable: %d then %d", key, first, again)
		}
	}
	if got := ShardIndex(0, "anything"); got != 0 {
		t.Errorf("ShardIndex(0, ...) = %d, want 0", got)
	}
}

func TestResolveTTL(t *testing.T) {
	if got := ResolveTTL(time.Minute, 90*time.Second); got != 90*time.Second {
		t.Errorf("positive ttl: got %v", got)
	}
	if got := ResolveTTL(time.Minute, 0); got != time.Minute {
		t.Errorf("zero ttl: got %v", got)
	}
	if got := ResolveTTL(time.Minute, -time.Second); got != time.Minute {
		t.Errorf("negative ttl: got %v", got)
	}
}
