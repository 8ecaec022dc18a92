package engine

import (
	"fmt"

	"github.com/chidi150c/vwaplive/internal/journal"
	"github.com/chidi150c/vwaplive/internal/ledger"
	"github.com/chidi150c/vwaplive/internal/schedule"
)

// Book is one independent ledger: its tracker, its journal and the file its
// state is persisted to. The engine owns every book it is given.
type Book struct {
	Name    string
	Tracker *ledger.Tracker
	Journal journal.Journal
	Store   ledger.Store

	simulated bool
	// rule set that opened the current position; exits keep using it after
	// the schedule rolls over
	openedBy *schedule.RuleSet
}

func NewBook(name string, tr *ledger.Tracker, j journal.Journal, store ledger.Store) *Book {
	if j == nil {
		j = journal.Discard{}
	}
	return &Book{Name: name, Tracker: tr, Journal: j, Store: store}
}

// Simulated reports whether fills are applied directly, without a broker.
func (b *Book) Simulated() bool { return b.simulated }

func (b *Book) restore() error {
	if _, err := b.Store.Load(b.Tracker); err != nil {
		return fmt.Errorf("engine: restore %s book: %w", b.Name, err)
	}
	return nil
}

func (b *Book) persist() error {
	if err := b.Journal.Flush(); err != nil {
		return fmt.Errorf("engine: flush %s journal: %w", b.Name, err)
	}
	if err := b.Store.Save(b.Tracker); err != nil {
		return fmt.Errorf("engine: save %s book: %w", b.Name, err)
	}
	return nil
}
