package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"switchdesk/internal/common/cache"
	"switchdesk/internal/problem/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	ProblemRepository

	mu       sync.Mutex
	distinct map[string][]string
	groups   map[string][]model.GroupCount
	calls    map[string]int
	err      error
}

func newCountingRepo() *countingRepo {
	return &countingRepo{
		distinct: map[string][]string{
			"operator":         {"Beeline", "Ucell"},
			"commutator:Ucell": {"101", "102"},
		},
		groups: map[string][]model.GroupCount{
			"operator":   {{Name: "Ucell", Count: 3}},
			"commutator": {{Name: "101", Count: 2}, {Name: "102", Count: 1}},
		},
		calls: map[string]int{},
	}
}

func (r *countingRepo) SelectDistinct(_ context.Context, column string, filter map[string]string) ([]string, error) {
	key := column
	if op, ok := filter["operator"]; ok {
		key += ":" + op
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["distinct:"+key]++
	if r.err != nil {
		return nil, r.err
	}
	return append([]string{}, r.distinct[key]...), nil
}

func (r *countingRepo) GroupByCount(_ context.Context, column string) ([]model.GroupCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["group:"+column]++
	if r.err != nil {
		return nil, r.err
	}
	return r.groups[column], nil
}

func (r *countingRepo) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func newTestLookups(t *testing.T, repo ProblemRepository) (*CachedLookups, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rc, err := cache.NewRedisCacheWithClient(client)
	require.NoError(t, err)
	return NewCachedLookups(repo, rc, LookupConfig{}), mr
}

func TestLookupsServeFromCache(t *testing.T) {
	repo := newCountingRepo()
	lookups, mr := newTestLookups(t, repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ops, err := lookups.Operators(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Beeline", "Ucell"}, ops)
	}
	assert.Equal(t, 1, repo.count("distinct:operator"))
	assert.True(t, mr.Exists("problems:listing:0:operators"))

	// A cold local tier still hits Redis, not the store.
	lookups.PurgeLocal()
	_, err := lookups.Operators(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.count("distinct:operator"))
}

func TestLookupsInvalidateBumpsGeneration(t *testing.T) {
	repo := newCountingRepo()
	lookups, mr := newTestLookups(t, repo)
	ctx := context.Background()

	_, err := lookups.Commutators(ctx, "Ucell")
	require.NoError(t, err)

	gen, err := lookups.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	repo.mu.Lock()
	repo.distinct["commutator:Ucell"] = []string{"101", "102", "103"}
	repo.mu.Unlock()

	coms, err := lookups.Commutators(ctx, "Ucell")
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102", "103"}, coms)
	assert.Equal(t, 2, repo.count("distinct:commutator:Ucell"))
	assert.True(t, mr.Exists("problems:listing:1:commutators:Ucell"))
}

func TestLookupsUnknownOperatorIsEmpty(t *testing.T) {
	repo := newCountingRepo()
	lookups, _ := newTestLookups(t, repo)

	coms, err := lookups.Commutators(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.NotNil(t, coms)
	assert.Empty(t, coms)
}

func TestLookupsAggregates(t *testing.T) {
	repo := newCountingRepo()
	lookups, _ := newTestLookups(t, repo)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		aggs, err := lookups.Aggregates(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.GroupCount{{Name: "Ucell", Count: 3}}, aggs.Operator)
		assert.Len(t, aggs.Commutator, 2)
	}
	assert.Equal(t, 1, repo.count("group:operator"))
	assert.Equal(t, 1, repo.count("group:commutator"))
}

func TestLookupsStoreErrorReturnsEmptyDefault(t *testing.T) {
	repo := newCountingRepo()
	repo.err = errors.New("db down")
	lookups, _ := newTestLookups(t, repo)
	ctx := context.Background()

	ops, err := lookups.Operators(ctx)
	assert.Error(t, err)
	assert.NotNil(t, ops)
	assert.Empty(t, ops)

	aggs, err := lookups.Aggregates(ctx)
	assert.Error(t, err)
	assert.NotNil(t, aggs.Operator)
	assert.NotNil(t, aggs.Commutator)
}

func TestLookupsBypassWhenRedisDown(t *testing.T) {
	repo := newCountingRepo()
	lookups, mr := newTestLookups(t, repo)
	mr.Close()

	ops, err := lookups.Operators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Beeline", "Ucell"}, ops)
}

func TestLookupsWithoutCache(t *testing.T) {
	repo := newCountingRepo()
	lookups := NewCachedLookups(repo, nil, LookupConfig{})
	ctx := context.Background()

	_, err := lookups.Operators(ctx)
	require.NoError(t, err)
	_, err = lookups.Operators(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.count("distinct:operator"))

	gen, err := lookups.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)
}

var _ ProblemRepository = (*countingRepo)(nil)
