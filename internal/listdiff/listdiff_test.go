package listdiff

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id    int
	key   int
	value string
}

func itemID(i item) int { return i.id }

func itemEqual(a, b item) bool { return a == b }

func reconcile(from, to []item) Transition[item] {
	return Reconcile(from, to, itemID, itemEqual)
}

func TestReconcilePureAddition(t *testing.T) {
	a := item{id: 1, key: 0}
	b := item{id: 2, key: 1}

	tr := reconcile(nil, []item{a, b})

	assert.Empty(t, tr.Deletions)
	assert.Empty(t, tr.Updates)
	assert.Equal(t, []Insertion[item]{
		{Index: 0, Entry: a, PreviousIndex: NoPreviousIndex},
		{Index: 1, Entry: b, PreviousIndex: NoPreviousIndex},
	}, tr.Insertions)
}

func TestReconcilePureRemoval(t *testing.T) {
	tr := reconcile([]item{{id: 1, key: 0}, {id: 2, key: 1}}, nil)

	assert.Equal(t, []int{1, 0}, tr.Deletions)
	assert.Empty(t, tr.Insertions)
	assert.Empty(t, tr.Updates)
}

func TestReconcileContentUpdateInPlace(t *testing.T) {
	updated := item{id: 1, key: 0, value: "y"}

	tr := reconcile([]item{{id: 1, key: 0, value: "x"}}, []item{updated})

	assert.Empty(t, tr.Deletions)
	assert.Empty(t, tr.Insertions)
	assert.Equal(t, []Update[item]{{Index: 0, PreviousIndex: 0, Entry: updated}}, tr.Updates)
}

func TestReconcileIdentical(t *testing.T) {
	list := []item{{id: 1, key: 0}, {id: 2, key: 1}, {id: 3, key: 2}}

	tr := reconcile(list, list)

	assert.True(t, tr.Empty())
}

func TestReconcileSwap(t *testing.T) {
	a := item{id: 1}
	b := item{id: 2}
	from := []item{a, b}
	to := []item{b, a}

	tr := reconcile(from, to)

	assert.Equal(t, to, Apply(from, tr))
	assert.Equal(t, []int{1}, tr.Deletions)
	assert.Equal(t, []Insertion[item]{{Index: 0, Entry: b, PreviousIndex: 1}}, tr.Insertions)
	assert.Empty(t, tr.Updates)
}

func TestReconcileMoveLastToFront(t *testing.T) {
	from := []item{{id: 1}, {id: 2}, {id: 3}, {id: 4}}
	to := []item{{id: 4}, {id: 1}, {id: 2}, {id: 3}}

	tr := reconcile(from, to)

	assert.Equal(t, to, Apply(from, tr))
	assert.Equal(t, []int{3}, tr.Deletions)
	require.Len(t, tr.Insertions, 1)
	assert.Equal(t, 0, tr.Insertions[0].Index)
	assert.Equal(t, 3, tr.Insertions[0].PreviousIndex)
}

func TestReconcileEqualContentDistinctIdentity(t *testing.T) {
	from := []item{{id: 1, value: "same"}}
	to := []item{{id: 2, value: "same"}}

	tr := reconcile(from, to)

	assert.Equal(t, []int{0}, tr.Deletions)
	assert.Equal(t, []Insertion[item]{{Index: 0, Entry: to[0], PreviousIndex: NoPreviousIndex}}, tr.Insertions)
	assert.Empty(t, tr.Updates)
}

func TestReconcileMixed(t *testing.T) {
	from := []item{{id: 1, key: 0}, {id: 2, key: 1}, {id: 3, key: 2}, {id: 4, key: 3}}
	to := []item{{id: 5, key: 0}, {id: 1, key: 1}, {id: 3, key: 2}, {id: 2, key: 3}}

	tr := reconcile(from, to)

	assert.Equal(t, to, Apply(from, tr))
	for i := 1; i < len(tr.Deletions); i++ {
		assert.Greater(t, tr.Deletions[i-1], tr.Deletions[i])
	}
	for i := 1; i < len(tr.Insertions); i++ {
		assert.Less(t, tr.Insertions[i-1].Index, tr.Insertions[i].Index)
	}
}

func TestReconcileDuplicateIdentityDoesNotPanic(t *testing.T) {
	from := []item{{id: 1, value: "a"}, {id: 1, value: "b"}}
	to := []item{{id: 1, value: "c"}, {id: 1, value: "d"}, {id: 2}}

	assert.NotPanics(t, func() {
		tr := reconcile(from, to)
		Apply(from, tr)
	})
}

func TestReconcileRandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	randomList := func() []item {
		ids := rng.Perm(12)[:rng.Intn(12)]
		list := make([]item, 0, len(ids))
		for k, id := range ids {
			list = append(list, item{id: id, key: k, value: string(rune('a' + rng.Intn(3)))})
		}
		return list
	}

	for n := 0; n < 500; n++ {
		from := randomList()
		to := randomList()

		tr := reconcile(from, to)

		require.Equal(t, to, Apply(from, tr), "from=%v to=%v", from, to)
		assert.True(t, reconcile(to, to).Empty())
	}
}
