package hierarchy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerChain(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()
	d := uuid.New()

	t.Run("linear chain resolves nearest manager first", func(t *testing.T) {
		snap := NewSnapshot(map[uuid.UUID]uuid.UUID{
			a: b,
			b: c,
			c: d,
		})

		chain := snap.ManagerChain(a)
		assert.False(t, chain.Cyclic)
		assert.Equal(t, []uuid.UUID{b, c, d}, chain.IDs)
	})

	t.Run("user with no manager has empty chain", func(t *testing.T) {
		snap := NewSnapshot(map[uuid.UUID]uuid.UUID{a: b})

		chain := snap.ManagerChain(b)
		assert.False(t, chain.Cyclic)
		assert.Empty(t, chain.IDs)
	})

	t.Run("two node cycle terminates and is flagged", func(t *testing.T) {
		snap := NewSnapshot(map[uuid.UUID]uuid.UUID{
			a: b,
			b: a,
		})

		chain := snap.ManagerChain(a)
		assert.True(t, chain.Cyclic)
	})

	t.Run("cycle above a linear prefix is flagged", func(t *testing.T) {
		snap := NewSnapshot(map[uuid.UUID]uuid.UUID{
			a: b,
			b: c,
			c: b,
		})

		chain := snap.ManagerChain(a)
		assert.True(t, chain.Cyclic)
	})

	t.Run("self edge is cyclic", func(t *testing.T) {
		snap := NewSnapshot(map[uuid.UUID]uuid.UUID{a: a})

		chain := snap.ManagerChain(a)
		assert.True(t, chain.Cyclic)
		assert.Empty(t, chain.IDs)
	})
}

func TestIsManagerOf(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()
	outsider := uuid.New()

	snap := NewSnapshot(map[uuid.UUID]uuid.UUID{
		a: b,
		b: c,
	})

	t.Run("direct manager", func(t *testing.T) {
		assert.True(t, snap.IsManagerOf(b, a))
	})

	t.Run("transitive manager", func(t *testing.T) {
		assert.True(t, snap.IsManagerOf(c, a))
	})

	t.Run("not reflexive", func(t *testing.T) {
		assert.False(t, snap.IsManagerOf(a, a))
	})

	t.Run("not symmetric", func(t *testing.T) {
		assert.False(t, snap.IsManagerOf(a, b))
	})

	t.Run("unrelated user", func(t *testing.T) {
		assert.False(t, snap.IsManagerOf(outsider, a))
	})

	t.Run("manager before an upstream cycle still counts", func(t *testing.T) {
		d := uuid.New()
		cyclic := NewSnapshot(map[uuid.UUID]uuid.UUID{
			a: b,
			b: c,
			c: d,
			d: c,
		})

		// The c/d loop sits above b; the walk from a still reaches b cleanly,
		// so b keeps authority over a.
		assert.True(t, cyclic.IsManagerOf(b, a))
		assert.True(t, cyclic.IsManagerOf(c, a))
	})

	t.Run("candidate never reached on a cyclic chain is denied", func(t *testing.T) {
		cyclic := NewSnapshot(map[uuid.UUID]uuid.UUID{
			a: b,
			b: a,
		})

		// a's chain loops back before outsider is ever reached.
		assert.False(t, cyclic.IsManagerOf(outsider, a))
	})
}

func TestSubordinateSet(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()
	d := uuid.New()

	snap := NewSnapshot(map[uuid.UUID]uuid.UUID{
		a: b,
		b: c,
		d: c,
	})

	t.Run("collects direct and transitive reports", func(t *testing.T) {
		subs := snap.SubordinateSet(c)
		assert.Len(t, subs, 3)
		assert.Contains(t, subs, a)
		assert.Contains(t, subs, b)
		assert.Contains(t, subs, d)
	})

	t.Run("mid-chain manager sees only their branch", func(t *testing.T) {
		subs := snap.SubordinateSet(b)
		assert.Len(t, subs, 1)
		assert.Contains(t, subs, a)
	})

	t.Run("leaf has no subordinates", func(t *testing.T) {
		assert.Empty(t, snap.SubordinateSet(a))
	})

	t.Run("walked prefixes decide membership under cycles", func(t *testing.T) {
		e := uuid.New()
		cyclic := NewSnapshot(map[uuid.UUID]uuid.UUID{
			a: b,
			b: c,
			c: b,
			e: d,
		})

		// a reaches b before the b/c loop closes; e's branch is untouched.
		subs := cyclic.SubordinateSet(b)
		assert.Contains(t, subs, a)
		assert.NotContains(t, subs, e)

		subs = cyclic.SubordinateSet(d)
		assert.Len(t, subs, 1)
		assert.Contains(t, subs, e)
	})
}

func TestCache(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()
	u1 := uuid.New()
	u2 := uuid.New()

	t.Run("loads once per org until invalidated", func(t *testing.T) {
		loads := 0
		cache := NewCache(func(ctx context.Context, orgID uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
			loads++
			return map[uuid.UUID]uuid.UUID{u1: u2}, nil
		})

		snap, err := cache.Snapshot(context.Background(), orgA)
		require.NoError(t, err)
		assert.True(t, snap.IsManagerOf(u2, u1))

		_, err = cache.Snapshot(context.Background(), orgA)
		require.NoError(t, err)
		assert.Equal(t, 1, loads)

		cache.Invalidate(orgA)
		_, err = cache.Snapshot(context.Background(), orgA)
		require.NoError(t, err)
		assert.Equal(t, 2, loads)
	})

	t.Run("orgs are cached independently", func(t *testing.T) {
		loaded := map[uuid.UUID]int{}
		cache := NewCache(func(ctx context.Context, orgID uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
			loaded[orgID]++
			return map[uuid.UUID]uuid.UUID{}, nil
		})

		_, err := cache.Snapshot(context.Background(), orgA)
		require.NoError(t, err)
		_, err = cache.Snapshot(context.Background(), orgB)
		require.NoError(t, err)

		cache.Invalidate(orgA)
		_, err = cache.Snapshot(context.Background(), orgA)
		require.NoError(t, err)
		_, err = cache.Snapshot(context.Background(), orgB)
		require.NoError(t, err)

		assert.Equal(t, 2, loaded[orgA])
		assert.Equal(t, 1, loaded[orgB])
	})
}
