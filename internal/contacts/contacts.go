package contacts

import (
	"context"
	"fmt"
	"sync"

	"github.com/JRI98/incognitostickers/internal/listdiff"
	"github.com/samber/lo"
)

// PeerID is the hex encoding of a peer's public identity key.
type PeerID string

type Category int

const (
	CloudContacts Category = iota
	Global
)

type Peer struct {
	ID                PeerID
	Name              string
	PublicIdentityKey []byte
	Source            Category
}

type Entry struct {
	Index int
	Peer  Peer
}

func (e Entry) StableID() PeerID {
	return e.Peer.ID
}

func (e Entry) Equal(other Entry) bool {
	return e.Index == other.Index &&
		e.Peer.ID == other.Peer.ID &&
		e.Peer.Name == other.Peer.Name &&
		e.Peer.Source == other.Peer.Source
}

type LocalSource interface {
	SearchContacts(ctx context.Context, query string) ([]Peer, error)
}

type GlobalSource interface {
	SearchPeers(ctx context.Context, query string) ([]Peer, error)
}

// Search looks a query up in the enabled categories. Cloud contacts come
// first; a global result for a peer already in the contacts is dropped.
type Search struct {
	Local      LocalSource
	Global     GlobalSource
	Categories []Category
}

func (s Search) Query(ctx context.Context, query string) ([]Peer, error) {
	categories := s.Categories
	if categories == nil {
		categories = []Category{CloudContacts, Global}
	}

	var peers []Peer
	for _, category := range categories {
		var found []Peer
		var err error
		switch category {
		case CloudContacts:
			if s.Local == nil {
				continue
			}
			found, err = s.Local.SearchContacts(ctx, query)
		case Global:
			if s.Global == nil {
				continue
			}
			found, err = s.Global.SearchPeers(ctx, query)
		}
		if err != nil {
			return nil, fmt.Errorf("could not search category %d: %w", category, err)
		}

		peers = append(peers, lo.Map(found, func(peer Peer, _ int) Peer {
			peer.Source = category
			return peer
		})...)
	}

	return lo.UniqBy(peers, func(peer Peer) PeerID {
		return peer.ID
	}), nil
}

// List is the compose screen's peer list. Every update is reconciled against
// the previous one and handed to OnTransition.
type List struct {
	mu      sync.Mutex
	entries []Entry

	searchActive bool

	OnTransition     func(listdiff.Transition[Entry])
	OpenPeer         func(PeerID)
	DeactivateSearch func()
}

func (l *List) UpdatePeers(peers []Peer) listdiff.Transition[Entry] {
	entries := lo.Map(peers, func(peer Peer, i int) Entry {
		return Entry{Index: i, Peer: peer}
	})

	l.mu.Lock()
	transition := listdiff.Reconcile(l.entries, entries, Entry.StableID, Entry.Equal)
	l.entries = entries
	l.mu.Unlock()

	if l.OnTransition != nil {
		l.OnTransition(transition)
	}
	return transition
}

func (l *List) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Entry(nil), l.entries...)
}

func (l *List) Select(index int) error {
	l.mu.Lock()
	if index < 0 || index >= len(l.entries) {
		l.mu.Unlock()
		return fmt.Errorf("no peer at index %d", index)
	}
	peerID := l.entries[index].Peer.ID
	l.mu.Unlock()

	if l.OpenPeer != nil {
		l.OpenPeer(peerID)
	}
	return nil
}

// ActivateSearch reports whether a new search was started.
func (l *List) ActivateSearch() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.searchActive {
		return false
	}
	l.searchActive = true
	return true
}

func (l *List) SearchActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.searchActive
}

func (l *List) CancelSearch() {
	l.mu.Lock()
	wasActive := l.searchActive
	l.searchActive = false
	l.mu.Unlock()

	if wasActive && l.DeactivateSearch != nil {
		l.DeactivateSearch()
	}
}
