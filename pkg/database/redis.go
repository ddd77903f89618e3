package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"miba-assist-go/pkg/log"
)

// RDB is the global Redis client for the session store. Only set when the
// session store is configured as "redis".
var RDB *redis.Client

// InitRedis connects to Redis and verifies the connection.
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := RDB.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}
	log.Info("redis connected")
}
