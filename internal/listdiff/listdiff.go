package listdiff

import "slices"

// NoPreviousIndex marks an insertion whose entry did not exist in the old list.
const NoPreviousIndex = -1

type Insertion[E any] struct {
	Index         int
	Entry         E
	PreviousIndex int
}

type Update[E any] struct {
	Index         int
	PreviousIndex int
	Entry         E
}

// Transition turns an old list into a new one. Deletions index the old list
// and are sorted descending. Insertions and updates index the new list and are
// sorted ascending.
type Transition[E any] struct {
	Deletions  []int
	Insertions []Insertion[E]
	Updates    []Update[E]
}

func (t Transition[E]) Empty() bool {
	return len(t.Deletions) == 0 && len(t.Insertions) == 0 && len(t.Updates) == 0
}

// Reconcile computes the transition from one list to another. Entries are
// matched by id. A matched entry stays in place when it belongs to the longest
// run of matched entries whose relative order did not change; it is then
// reported as an update if equal says its content differs. Every other matched
// entry is deleted and re-inserted with its old index as PreviousIndex.
//
// ids must be unique within each list.
func Reconcile[E any, K comparable](from, to []E, id func(E) K, equal func(a, b E) bool) Transition[E] {
	oldIndices := make(map[K]int, len(from))
	for i, entry := range from {
		oldIndices[id(entry)] = i
	}

	// matched[j] is the old index of to[j], or -1.
	matched := make([]int, len(to))
	consumed := make([]bool, len(from))
	for j, entry := range to {
		i, ok := oldIndices[id(entry)]
		if !ok || consumed[i] {
			matched[j] = -1
			continue
		}
		consumed[i] = true
		matched[j] = i
	}

	stays := stablePositions(matched)

	var t Transition[E]
	for i := len(from) - 1; i >= 0; i-- {
		if !consumed[i] {
			t.Deletions = append(t.Deletions, i)
		}
	}

	var moved []int
	for j, entry := range to {
		i := matched[j]
		switch {
		case i < 0:
			t.Insertions = append(t.Insertions, Insertion[E]{Index: j, Entry: entry, PreviousIndex: NoPreviousIndex})
		case !stays[j]:
			moved = append(moved, i)
			t.Insertions = append(t.Insertions, Insertion[E]{Index: j, Entry: entry, PreviousIndex: i})
		case !equal(from[i], entry):
			t.Updates = append(t.Updates, Update[E]{Index: j, PreviousIndex: i, Entry: entry})
		}
	}

	if len(moved) > 0 {
		t.Deletions = append(t.Deletions, moved...)
		slices.Sort(t.Deletions)
		slices.Reverse(t.Deletions)
	}

	return t
}

// stablePositions marks the positions of a longest strictly increasing
// subsequence of the non-negative values in matched.
func stablePositions(matched []int) []bool {
	stays := make([]bool, len(matched))

	// tails[k] is the position in matched ending the best subsequence of length k+1.
	tails := make([]int, 0, len(matched))
	parent := make([]int, len(matched))
	for j, v := range matched {
		if v < 0 {
			continue
		}
		k, _ := slices.BinarySearchFunc(tails, v, func(pos, target int) int {
			return matched[pos] - target
		})
		if k > 0 {
			parent[j] = tails[k-1]
		} else {
			parent[j] = -1
		}
		if k == len(tails) {
			tails = append(tails, j)
		} else {
			tails[k] = j
		}
	}

	if len(tails) == 0 {
		return stays
	}
	for j := tails[len(tails)-1]; j >= 0; j = parent[j] {
		stays[j] = true
	}

	return stays
}

// Apply returns a copy of list with t applied: deletions, then insertions,
// then updates.
func Apply[E any](list []E, t Transition[E]) []E {
	result := slices.Clone(list)
	for _, i := range t.Deletions {
		result = slices.Delete(result, i, i+1)
	}
	for _, insertion := range t.Insertions {
		result = slices.Insert(result, insertion.Index, insertion.Entry)
	}
	for _, update := range t.Updates {
		result[update.Index] = update.Entry
	}
	return result
}
