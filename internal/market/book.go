// Package market holds the wholesale package-auction bookkeeping shared
// by every producer and bulk buyer.
package market

import "powercable/internal/wire"

// Book tracks an agent's live wholesale offers. Outstanding offers are
// ones the agent still considers open; sent offers are ones it has
// committed to with an accept or an ack.
type Book struct {
	outstanding map[string]wire.Offer
	sent        map[string]wire.Offer
}

func NewBook() *Book {
	return &Book{
		outstanding: make(map[string]wire.Offer),
		sent:        make(map[string]wire.Offer),
	}
}

func (b *Book) Add(o wire.Offer) {
	b.outstanding[o.ID] = o
}

func (b *Book) Remove(id string) {
	delete(b.outstanding, id)
}

func (b *Book) Get(id string) (wire.Offer, bool) {
	o, ok := b.outstanding[id]
	return o, ok
}

// BestNonSent returns the cheapest outstanding offer that has not been
// committed to yet. Ties break on the lower offer ID so the choice is
// deterministic.
func (b *Book) BestNonSent() (wire.Offer, bool) {
	var best wire.Offer
	found := false
	for id, o := range b.outstanding {
		if _, sent := b.sent[id]; sent {
			continue
		}
		if !found || o.Price < best.Price || (o.Price == best.Price && o.ID < best.ID) {
			best = o
			found = true
		}
	}
	return best, found
}

func (b *Book) Has(id string) bool {
	_, ok := b.outstanding[id]
	return ok
}

func (b *Book) HasSent(id string) bool {
	_, ok := b.sent[id]
	return ok
}

func (b *Book) AddSent(o wire.Offer) {
	b.sent[o.ID] = o
}

func (b *Book) RemoveSent(id string) {
	delete(b.sent, id)
}

func (b *Book) GetSent(id string) (wire.Offer, bool) {
	o, ok := b.sent[id]
	return o, ok
}

func (b *Book) HasOffers() bool {
	return len(b.outstanding) > 0
}

func (b *Book) Len() int {
	return len(b.outstanding)
}

// Clear drops every outstanding and sent offer.
func (b *Book) Clear() {
	clear(b.outstanding)
	clear(b.sent)
}
