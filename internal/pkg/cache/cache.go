package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ReconquistaDigital/MemberHub/internal/pkg/env"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// SetupCache initializes the Redis connection used for the webhook
// duplicate fast path and for login sessions.
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	}
}

// GetClient returns the Redis client instance.
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Ping reports cache reachability for the health endpoint.
func Ping(ctx context.Context) error {
	return GetClient().Ping(ctx).Err()
}

// DuplicateCache remembers recently processed provider transactions so that
// retry storms skip the purchase-table lookup. Entries expire on their own;
// the purchases unique constraint remains the source of truth.
type DuplicateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDuplicateCache builds a duplicate cache over the shared Redis client.
func NewDuplicateCache() *DuplicateCache {
	return &DuplicateCache{client: GetClient(), ttl: 24 * time.Hour}
}

func (d *DuplicateCache) TransactionSeen(ctx context.Context, provider, transactionID string) bool {
	n, err := d.client.Exists(ctx, transactionKey(provider, transactionID)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

func (d *DuplicateCache) MarkTransactionSeen(ctx context.Context, provider, transactionID string) {
	if err := d.client.Set(ctx, transactionKey(provider, transactionID), 1, d.ttl).Err(); err != nil {
		log.Printf("failed to cache transaction %s/%s: %v", provider, transactionID, err)
	}
}

func transactionKey(provider, transactionID string) string {
	return fmt.Sprintf("webhook:tx:%s:%s", provider, transactionID)
}
