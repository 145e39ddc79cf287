package redisstream

import (
	"context"
	"strconv"
	"strings"
)

// trim enforces MaxLen without dropping entries a consumer group still needs.
// It removes only entries below the lowest ID any group has pending or not yet
// read, so the stream may stay above MaxLen while consumers lag behind. A
// stream without groups is never trimmed.
func (b *Backend) trim(ctx context.Context) (int64, error) {
	if b.cfg.MaxLen <= 0 {
		return 0, nil
	}

	length, err := b.client.XLen(ctx, b.stream).Result()
	if err != nil || length <= b.cfg.MaxLen {
		return 0, err
	}

	floor, err := b.safeMinID(ctx)
	if err != nil || floor == "" {
		return 0, err
	}
	return b.client.XTrimMinID(ctx, b.stream, floor).Result()
}

// safeMinID returns the lowest entry ID that some group may still deliver or
// redeliver. Empty means nothing may be trimmed.
func (b *Backend) safeMinID(ctx context.Context) (string, error) {
	groups, err := b.client.XInfoGroups(ctx, b.stream).Result()
	if err != nil || len(groups) == 0 {
		return "", err
	}

	floor := ""
	for _, g := range groups {
		// Entries up to LastDeliveredID were read by the group; keeping that
		// entry itself is harmless and avoids computing its successor.
		candidate := g.LastDeliveredID
		if g.Pending > 0 {
			pending, err := b.client.XPending(ctx, b.stream, g.Name).Result()
			if err != nil {
				return "", err
			}
			if pending.Count > 0 && compareIDs(pending.Lower, candidate) < 0 {
				candidate = pending.Lower
			}
		}
		if floor == "" || compareIDs(candidate, floor) < 0 {
			floor = candidate
		}
	}

	if compareIDs(floor, "0-1") < 0 {
		return "", nil
	}
	return floor, nil
}

// compareIDs orders stream IDs of the form "<ms>-<seq>".
func compareIDs(a, b string) int {
	am, as := splitID(a)
	bm, bs := splitID(b)
	switch {
	case am < bm:
		return -1
	case am > bm:
		return 1
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func splitID(id string) (ms, seq uint64) {
	head, tail, _ := strings.Cut(id, "-")
	ms, _ = strconv.ParseUint(head, 10, 64)
	seq, _ = strconv.ParseUint(tail, 10, 64)
	return ms, seq
}
