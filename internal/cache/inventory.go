package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix         = "spost:%d"
	ScheduleListKeyPrefix = "schedule:%d"
)

const (
	PostTTL         = 10 * time.Minute
	ScheduleListTTL = 2 * time.Minute
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func ScheduleListKey(userID uint) string {
	return fmt.Sprintf(ScheduleListKeyPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidatePost drops both the post entry and its owner's list.
func InvalidatePost(ctx context.Context, postID, userID uint) {
	Invalidate(ctx, PostKey(postID))
	Invalidate(ctx, ScheduleListKey(userID))
}
