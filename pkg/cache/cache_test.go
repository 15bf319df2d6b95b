package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

// exercise runs the behaviour every storing backend shares.
func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("Get(missing) = hit %v, err %v; want miss", hit, err)
	}

	if err := c.Set(ctx, "pypi:requests", []byte(`{"v":1}`), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "pypi:requests")
	if err != nil || !hit {
		t.Fatalf("Get() = hit %v, err %v; want hit", hit, err)
	}
	if string(data) != `{"v":1}` {
		t.Errorf("Get() = %q, want %q", data, `{"v":1}`)
	}

	if err := c.Set(ctx, "expired", []byte("x"), time.Nanosecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "expired"); hit {
		t.Error("expired entry should miss")
	}

	if err := c.Delete(ctx, "pypi:requests"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "pypi:requests"); hit {
		t.Error("deleted entry should miss")
	}
	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete(missing) error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}
	exercise(t, c)
}

func TestFileCacheCorruptEntry(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}
	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.path("k"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("Get(corrupt) = hit %v, err %v; want clean miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("1"), 0)
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("Clear should drop entries")
	}
	if _, err := os.Stat(c.Dir()); err != nil {
		t.Errorf("Clear should keep the directory: %v", err)
	}
}

func TestMemoryCache(t *testing.T) {
	c, err := NewMemoryCache(8)
	if err != nil {
		t.Fatalf("NewMemoryCache error: %v", err)
	}
	exercise(t, c)
}

func TestMemoryCacheEviction(t *testing.T) {
	c, err := NewMemoryCache(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, []byte(k), 0)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("oldest entry should be evicted")
	}
}

func TestTiered(t *testing.T) {
	front, _ := NewMemoryCache(8)
	back, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tiered := NewTiered(front, back, time.Minute)
	exercise(t, tiered)

	// Back-tier hits are promoted to the front.
	ctx := context.Background()
	_ = back.Set(ctx, "only-back", []byte("x"), 0)
	if _, hit, _ := tiered.Get(ctx, "only-back"); !hit {
		t.Fatal("tiered Get should read the back tier")
	}
	if _, hit, _ := front.Get(ctx, "only-back"); !hit {
		t.Error("back-tier hit should be copied to the front tier")
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("STANZA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STANZA_TEST_REDIS_URL not set")
	}
	c, err := NewRedisCache(context.Background(), url, "stanza-test:")
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	defer c.Close()
	exercise(t, c)
}

func TestNewRedisCacheInvalidURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "not-a-url", ""); err == nil {
		t.Error("NewRedisCache should reject a malformed URL")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestKey(t *testing.T) {
	if got := Key("pypi", "requests", "2.13.0"); got != "pypi:requests:2.13.0" {
		t.Errorf("Key() = %q", got)
	}
}
