package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hotspotvend/HotspotVend/internal/pkg/cache"
	"github.com/hotspotvend/HotspotVend/internal/pkg/database"
)

const statusPollsKey = "portal:counters:status_polls"

// AddStatusPoll increments the pending status poll counter for today in
// Redis. The portal polls every few seconds per device, so these writes must
// never touch MySQL directly.
func AddStatusPoll() error {
	ctx := context.Background()
	day := time.Now().UTC().Format("2006-01-02")
	return cache.GetClient().HIncrBy(ctx, statusPollsKey, day, 1).Err()
}

// FlushAll drains the pending counters into the database
func FlushAll() error {
	return flushStatusPolls()
}

// flushStatusPolls drains the Redis hash atomically and applies batched
// increments to portal_stats. Uses RENAME to a temporary key for atomic
// drain without losing in-flight increments.
func flushStatusPolls() error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", statusPollsKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", statusPollsKey, tmpKey).Err(); err != nil {
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

	type pair struct {
		day string
		inc int64
	}
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{day: k, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].day < pairs[j].day })

	// Days roll over, so the row may not exist yet; upsert each increment.
	db := database.GetDB()
	for _, p := range pairs {
		sql := "INSERT INTO portal_stats (date, status_polls, created_at, updated_at) VALUES (?, ?, NOW(), NOW()) " +
			"ON DUPLICATE KEY UPDATE status_polls = status_polls + ?, updated_at = NOW()"
		if err := db.Exec(sql, p.day, p.inc, p.inc).Error; err != nil {
			return err
		}
	}
	return nil
}
