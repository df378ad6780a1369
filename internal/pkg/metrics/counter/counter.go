package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LucaWinkler/FlohMarkt/internal/pkg/cache"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/database"
)

const (
	processedKey = "webhook:counters:processed"
	failedKey    = "webhook:counters:failed"
)

// IncProcessed increments the pending processed counter for a provider in Redis
func IncProcessed(provider string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, processedKey, FieldFor(provider, time.Now()), 1).Err()
}

// IncFailed increments the pending failure counter for a provider in Redis
func IncFailed(provider string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, failedKey, FieldFor(provider, time.Now()), 1).Err()
}

// FieldFor builds the hash field for a provider and day
func FieldFor(provider string, day time.Time) string {
	return provider + ":" + day.Format("2006-01-02")
}

// ParseField splits a hash field back into provider and day. The second
// return is false for fields that do not parse.
func ParseField(field string) (string, string, bool) {
	parts := strings.SplitN(field, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	if _, err := time.Parse("2006-01-02", parts[1]); err != nil {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// FlushAll flushes both processed and failed counters to the database
func FlushAll() error {
	if err := flushHashToColumn(processedKey, "processed"); err != nil {
		return err
	}
	if err := flushHashToColumn(failedKey, "failed"); err != nil {
		return err
	}
	return nil
}

// flushHashToColumn drains a Redis hash atomically and applies batched increments
// to the webhook_daily_stats table.
// Uses RENAME to a temporary key for atomic drain without losing in-flight increments.
func flushHashToColumn(redisKey, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		// Some Redis libs return redis.Nil; treat as empty
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	type row struct {
		provider string
		day      string
		inc      int64
	}
	rows := make([]row, 0, len(data))
	for k, v := range data {
		provider, day, ok := ParseField(k)
		if !ok {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		rows = append(rows, row{provider: provider, day: day, inc: inc})
	}
	if len(rows) == 0 {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].day != rows[j].day {
			return rows[i].day < rows[j].day
		}
		return rows[i].provider < rows[j].provider
	})

	// Compose SQL
	// INSERT ... ON DUPLICATE KEY UPDATE <column> = <column> + VALUES(<column>)
	var builder strings.Builder
	args := make([]interface{}, 0, len(rows)*4)
	builder.WriteString("INSERT INTO webhook_daily_stats (date, provider, processed, failed, created_at, updated_at) VALUES ")
	for i, r := range rows {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("(?, ?, ?, ?, NOW(), NOW())")
		if column == "processed" {
			args = append(args, r.day, r.provider, r.inc, int64(0))
		} else {
			args = append(args, r.day, r.provider, int64(0), r.inc)
		}
	}
	builder.WriteString(" ON DUPLICATE KEY UPDATE ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + VALUES(")
	builder.WriteString(column)
	builder.WriteString("), updated_at = NOW()")

	sql := builder.String()
	db := database.GetDB()
	if err := db.Exec(sql, args...).Error; err != nil {
		return err
	}
	return nil
}
