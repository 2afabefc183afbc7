package matchmaking

import (
	"slices"

	"github.com/layzeechat/layzee/pkg/network"
)

type Entry struct {
	Id   network.Uid
	Tags []string
}

// Queue is the wait list of the random/tag matching in the arrival order.
type Queue struct {
	entries []Entry
}

func (q *Queue) Len() int { return len(q.entries) }

func (q *Queue) Has(id network.Uid) bool { return q.index(id) >= 0 }

// Push appends the entry to the tail, an existing entry
// for the same id is removed first.
func (q *Queue) Push(id network.Uid, tags []string) {
	q.Remove(id)
	q.entries = append(q.entries, Entry{Id: id, Tags: tags})
}

func (q *Queue) Remove(id network.Uid) bool {
	i := q.index(id)
	if i < 0 {
		return false
	}
	q.entries = slices.Delete(q.entries, i, i+1)
	return true
}

// Ids lists the queued ids, oldest first.
func (q *Queue) Ids() []network.Uid {
	ids := make([]network.Uid, len(q.entries))
	for i, e := range q.entries {
		ids[i] = e.Id
	}
	return ids
}

// Match selects a partner for the requester without removing it.
//
// The first entry in the arrival order sharing a tag with the requester wins,
// the matched tag is the first requester tag found in the intersection.
// Without a common tag the oldest entry is taken. The requester never matches itself.
func (q *Queue) Match(requester network.Uid, tags []string) (e Entry, tag string, ok bool) {
	if len(tags) > 0 {
		for _, entry := range q.entries {
			if entry.Id == requester {
				continue
			}
			if t, found := firstCommon(tags, entry.Tags); found {
				return entry, t, true
			}
		}
	}
	for _, entry := range q.entries {
		if entry.Id != requester {
			return entry, "", true
		}
	}
	return Entry{}, "", false
}

func (q *Queue) index(id network.Uid) int {
	return slices.IndexFunc(q.entries, func(e Entry) bool { return e.Id == id })
}

func firstCommon(ordered []string, set []string) (string, bool) {
	for _, t := range ordered {
		if slices.Contains(set, t) {
			return t, true
		}
	}
	return "", false
}
