package config

import "testing"

func TestAsynqRedisOptParsesURL(t *testing.T) {
	cfg := &Config{RedisURL: "redis://:secret@cache.internal:6380/2"}

	opt, err := AsynqRedisOpt(cfg)
	if err != nil {
		t.Fatalf("AsynqRedisOpt error: %v", err)
	}
	if opt.Addr != "cache.internal:6380" {
		t.Errorf("Addr = %q, want host:port from the URL", opt.Addr)
	}
	if opt.Password != "secret" {
		t.Errorf("Password = %q, want the URL password", opt.Password)
	}
	if opt.DB != 2 {
		t.Errorf("DB = %d, want 2", opt.DB)
	}
}

func TestAsynqRedisOptHostPortPassthrough(t *testing.T) {
	cfg := &Config{RedisURL: "localhost:6379", RedisPassword: "pw", RedisDB: 1}

	opt, err := AsynqRedisOpt(cfg)
	if err != nil {
		t.Fatalf("AsynqRedisOpt error: %v", err)
	}
	if opt.Addr != "localhost:6379" || opt.Password != "pw" || opt.DB != 1 {
		t.Errorf("options not passed through: %+v", opt)
	}
}

func TestAsynqRedisOptRejectsMalformedURL(t *testing.T) {
	cfg := &Config{RedisURL: "redis://cache.internal:6380/not-a-db"}

	if _, err := AsynqRedisOpt(cfg); err == nil {
		t.Fatal("expected error for malformed Redis URL")
	}
}
