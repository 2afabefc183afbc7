package matchmaking

import (
	"testing"

	"github.com/layzeechat/layzee/pkg/network"
	"github.com/layzeechat/layzee/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMatcher(t *testing.T, ids ...network.Uid) *Matcher {
	t.Helper()
	r := session.NewRegistry()
	for _, id := range ids {
		_, err := r.Create(id)
		require.NoError(t, err)
	}
	return NewMatcher(r)
}

func state(t *testing.T, m *Matcher, id network.Uid) session.State {
	t.Helper()
	s, err := m.Sessions().Get(id)
	require.NoError(t, err)
	return s.State
}

func TestFindMatchWaitsAlone(t *testing.T) {
	m := newMatcher(t, "a")

	match, detached, err := m.FindMatch("a", []string{"go"})
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Nil(t, detached)
	assert.Equal(t, session.Searching, state(t, m, "a"))
	assert.Equal(t, []network.Uid{"a"}, m.Queue().Ids())
	assert.NoError(t, m.Check())
}

func TestFindMatchByTag(t *testing.T) {
	m := newMatcher(t, "a", "b")

	_, _, err := m.FindMatch("a", []string{"A", "B"})
	require.NoError(t, err)
	match, _, err := m.FindMatch("b", []string{"B", "C"})
	require.NoError(t, err)

	require.NotNil(t, match)
	assert.Equal(t, network.Uid("a"), match.PartnerId)
	assert.Equal(t, "B", match.Tag)
	assert.True(t, match.HasTag())
	assert.Equal(t, session.Paired, state(t, m, "a"))
	assert.Equal(t, session.Paired, state(t, m, "b"))
	assert.Zero(t, m.Queue().Len())
	assert.NoError(t, m.Check())
}

// enqueue seats a waiting participant directly, a find would
// already pair it with whoever waits at the head.
func enqueue(t *testing.T, m *Matcher, id network.Uid, tags []string) {
	t.Helper()
	_, err := m.Sessions().Transition(id, session.Searching, session.WithTags(tags))
	require.NoError(t, err)
	m.Queue().Push(id, tags)
}

func TestFindMatchTagOrder(t *testing.T) {
	m := newMatcher(t, "a", "b", "c")

	enqueue(t, m, "a", []string{"x", "music"})
	enqueue(t, m, "b", []string{"games", "music"})
	match, _, err := m.FindMatch("c", []string{"games", "music"})
	require.NoError(t, err)

	// a is older and shares music, the requester order picks the tag
	require.NotNil(t, match)
	assert.Equal(t, network.Uid("a"), match.PartnerId)
	assert.Equal(t, "music", match.Tag)
	assert.Equal(t, []network.Uid{"b"}, m.Queue().Ids())
	assert.NoError(t, m.Check())
}

func TestFindMatchFallbackTakesOldest(t *testing.T) {
	m := newMatcher(t, "x", "y", "w", "z")

	enqueue(t, m, "x", []string{"X"})
	enqueue(t, m, "y", []string{"Y"})
	enqueue(t, m, "w", nil)
	match, _, err := m.FindMatch("z", []string{"Z"})
	require.NoError(t, err)

	require.NotNil(t, match)
	assert.Equal(t, network.Uid("x"), match.PartnerId)
	assert.Empty(t, match.Tag)
	assert.False(t, match.HasTag())
	assert.Equal(t, []network.Uid{"y", "w"}, m.Queue().Ids())
	assert.NoError(t, m.Check())
}

func TestFindMatchIsIdempotent(t *testing.T) {
	m := newMatcher(t, "a", "b")

	for i := 0; i < 3; i++ {
		match, _, err := m.FindMatch("a", []string{"one"})
		require.NoError(t, err)
		assert.Nil(t, match)
	}
	assert.Equal(t, []network.Uid{"a"}, m.Queue().Ids())
	assert.Equal(t, session.Searching, state(t, m, "a"))

	match, _, err := m.FindMatch("b", nil)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, network.Uid("a"), match.PartnerId)
	assert.Zero(t, m.Queue().Len())
	assert.NoError(t, m.Check())
}

func TestFindMatchHeadNeverMatchesItself(t *testing.T) {
	m := newMatcher(t, "a")

	enqueue(t, m, "a", []string{"solo"})
	entry, _, ok := m.Queue().Match("a", []string{"solo"})
	assert.False(t, ok, "matched %v", entry.Id)

	match, _, err := m.FindMatch("a", []string{"solo"})
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Equal(t, []network.Uid{"a"}, m.Queue().Ids())
}

func TestFindMatchWhilePairedDetaches(t *testing.T) {
	m := newMatcher(t, "a", "b")

	_, _, _ = m.FindMatch("a", nil)
	_, _, _ = m.FindMatch("b", nil)

	match, detached, err := m.FindMatch("a", []string{"next"})
	require.NoError(t, err)
	assert.Nil(t, match)
	require.NotNil(t, detached)
	assert.Equal(t, network.Uid("b"), detached.Partner)
	assert.False(t, detached.Nearby)
	assert.Equal(t, session.Idle, state(t, m, "b"))
	assert.Equal(t, session.Searching, state(t, m, "a"))
	assert.NoError(t, m.Check())
}

func TestFindMatchUnknown(t *testing.T) {
	m := newMatcher(t)
	_, _, err := m.FindMatch("ghost", nil)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestPairRejectsIllegal(t *testing.T) {
	m := newMatcher(t, "a", "b", "c")

	// Idle can't become Paired
	err := m.Pair("a", "b", "")
	assert.ErrorIs(t, err, session.ErrInvalidTransition)

	_, _, _ = m.FindMatch("a", nil)
	_, _, _ = m.FindMatch("b", nil)
	_, _, _ = m.FindMatch("c", nil)
	err = m.Pair("c", "a", "")
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
	assert.NoError(t, m.Check())
}

func TestPairNearby(t *testing.T) {
	m := newMatcher(t, "a", "b")
	_, err := m.Sessions().Transition("a", session.Queued)
	require.NoError(t, err)
	_, _, _ = m.FindMatch("b", nil)

	require.NoError(t, m.Pair("a", "b", "claim"))
	assert.Zero(t, m.Queue().Len())
	assert.True(t, m.Pairings().IsNearby("a"))
	assert.NoError(t, m.Check())

	d, err := m.Detach("b")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, d.Nearby)
	assert.Equal(t, "claim", d.Claim)
	assert.Equal(t, network.Uid("a"), d.Partner)
	assert.Equal(t, session.Idle, state(t, m, "a"))
	assert.Equal(t, session.Idle, state(t, m, "b"))

	d, err = m.Detach("b")
	assert.NoError(t, err)
	assert.Nil(t, d)
}

func TestNoIdBothQueuedAndPaired(t *testing.T) {
	ids := []network.Uid{"1", "2", "3", "4", "5", "6", "7"}
	m := newMatcher(t, ids...)

	tags := [][]string{{"a"}, {"b"}, nil, {"a", "b"}, {"c"}, nil, {"b"}}
	for round := 0; round < 3; round++ {
		for i, id := range ids {
			_, _, err := m.FindMatch(id, tags[(i+round)%len(tags)])
			require.NoError(t, err)
			require.NoError(t, m.Check())
			for _, q := range m.Queue().Ids() {
				_, paired := m.Pairings().Partner(q)
				assert.False(t, paired, "%v queued and paired", q)
			}
		}
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name   string
		in     []string
		max    int
		maxLen int
		want   []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "trim and drop empty", in: []string{" go ", "", "  "}, want: []string{"go"}},
		{name: "dedupe keeps order", in: []string{"b", "a", "b"}, want: []string{"b", "a"}},
		{name: "case is kept", in: []string{"Go", "go"}, want: []string{"Go", "go"}},
		{name: "count", in: []string{"a", "b", "c"}, max: 2, want: []string{"a", "b"}},
		{name: "length", in: []string{"абвгд"}, maxLen: 3, want: []string{"абв"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, NormalizeTags(test.in, test.max, test.maxLen))
		})
	}
}
