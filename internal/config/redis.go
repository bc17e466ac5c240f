package config

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis: REDIS_ADDRESS boşsa nil döner, dağıtık kilit kapalı demektir.
func ConnectRedis(cfg *Config) (*redis.Client, error) {
	if cfg.RedisAddress == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddress,
	})

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			GetLogger().Infof("Redis bağlantısı başarılı (%s)", cfg.RedisAddress)
			return client, nil
		}
		GetLogger().Warnf("Redis'e bağlanılamadı (deneme %d/3): %v", attempt, err)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	_ = client.Close()
	return nil, fmt.Errorf("redis bağlantısı kurulamadı (%s): %w", cfg.RedisAddress, err)
}
