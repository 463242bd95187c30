// Package ledger builds the first-seen wallet ledger from a paginated
// transfer-event stream.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

// DefaultMaxPages bounds total scanning so a restrictive filter can never
// scan the provider forever.
const DefaultMaxPages = 100

var (
	// ErrDiscoveryExhausted is returned when the page budget ran out before
	// enough qualifying wallets were found. Entries collected so far remain
	// available on the builder.
	ErrDiscoveryExhausted = errors.New("discovery budget exhausted")

	// ErrOrderViolation is returned when the provider delivered an event for
	// a block earlier than one already finalized. The bounded reorder window
	// cannot repair it, and admitting it would corrupt first-seen ordering.
	ErrOrderViolation = errors.New("event order violated beyond reorder window")
)

// PageFunc fetches one page of transfer events for an opaque cursor.
type PageFunc func(ctx context.Context, cursor string) (*domain.TransferPage, error)

// Entry pairs a wallet with its first qualifying inbound transfer.
type Entry struct {
	Address string
	First   *domain.TransferEvent
}

// Builder consumes transfer pages and admits each recipient once, in
// canonical (block, tx index, log index) order of its first qualifying
// transfer.
//
// Provider pages are not guaranteed perfectly ordered at page boundaries, so
// events are buffered per block and the block is finalized only once a later
// block is observed (or the stream ends). The buffer is bounded to one
// block's worth of events.
//
// The builder is resumable: Collect may be called again with a higher target
// and continues from the saved cursor, which lets the caller scan further
// when post-classification filtering leaves too few wallets.
type Builder struct {
	maxPages     int
	minRawAmount *big.Int
	onEvent      func(*domain.TransferEvent)
	logger       *log.Logger
	verbose      bool

	admitted   map[string]bool
	recipients map[string]struct{}
	entries    []*Entry
	buffer     []*domain.TransferEvent
	bufBlock   int64
	flushed    int64 // highest finalized block
	cursor     string
	pages      int
	streamDone bool

	transfersScanned int
}

// Options configures a Builder.
type Options struct {
	// MaxPages is the hard scanning budget. Defaults to DefaultMaxPages.
	MaxPages int

	// MinRawAmount excludes first transfers below this raw amount from
	// qualifying. Nil or zero disables the floor; amount > 0 is always
	// required.
	MinRawAmount *big.Int

	// OnEvent, when set, observes every scanned event in canonical order as
	// its block is finalized.
	OnEvent func(*domain.TransferEvent)

	Logger  *log.Logger
	Verbose bool
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options) *Builder {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Builder{
		maxPages:     maxPages,
		minRawAmount: opts.MinRawAmount,
		onEvent:      opts.OnEvent,
		logger:       logger,
		verbose:      opts.Verbose,
		admitted:     make(map[string]bool),
		recipients:   make(map[string]struct{}),
	}
}

// Collect fetches pages until at least target wallets are admitted, the
// stream ends, or the page budget runs out (ErrDiscoveryExhausted).
//
// Admission is never capped at target: every qualifying first-seen recipient
// in a finalized block is admitted, so entries may overshoot (callers truncate
// to their max). Capping would silently drop wallets from pages already
// consumed, which a resumed Collect could never recover.
func (b *Builder) Collect(ctx context.Context, fetch PageFunc, target int) error {
	if target <= 0 {
		return nil
	}

	for len(b.entries) < target && !b.streamDone {
		if b.pages >= b.maxPages {
			b.flush()
			b.log("page budget exhausted: %d pages, %d wallets (target %d)", b.pages, len(b.entries), target)
			return fmt.Errorf("%w: %d pages scanned, %d of %d wallets found",
				ErrDiscoveryExhausted, b.pages, len(b.entries), target)
		}

		page, err := fetch(ctx, b.cursor)
		if err != nil {
			return err
		}
		b.pages++

		for _, ev := range page.Events {
			if err := b.ingest(ev); err != nil {
				return err
			}
		}

		b.cursor = page.NextCursor
		if b.cursor == "" {
			b.streamDone = true
			b.flush()
		}
		b.log("page %d: %d events, %d wallets admitted", b.pages, len(page.Events), len(b.entries))
	}

	return nil
}

// ingest buffers one event, finalizing the previous block when a later block
// is observed.
func (b *Builder) ingest(ev *domain.TransferEvent) error {
	b.transfersScanned++
	b.recipients[ev.To] = struct{}{}

	switch {
	case ev.BlockNumber < b.flushed || (b.bufBlock > 0 && ev.BlockNumber < b.bufBlock):
		return fmt.Errorf("%w: block %d after block %d finalized", ErrOrderViolation, ev.BlockNumber, b.bufBlock)
	case b.bufBlock == 0 || ev.BlockNumber == b.bufBlock:
		b.bufBlock = ev.BlockNumber
		b.buffer = append(b.buffer, ev)
	default: // strictly later block
		b.flush()
		b.bufBlock = ev.BlockNumber
		b.buffer = append(b.buffer, ev)
	}
	return nil
}

// flush finalizes the buffered block: sorts it canonically, observes every
// event, and admits first-seen qualifying recipients.
func (b *Builder) flush() {
	if len(b.buffer) == 0 {
		return
	}

	domain.SortTransferEvents(b.buffer)

	for _, ev := range b.buffer {
		if b.onEvent != nil {
			b.onEvent(ev)
		}
		if !b.qualifies(ev) || b.admitted[ev.To] {
			continue
		}
		b.admitted[ev.To] = true
		b.entries = append(b.entries, &Entry{Address: ev.To, First: ev})
	}

	b.flushed = b.bufBlock
	b.buffer = b.buffer[:0]
	b.bufBlock = 0
}

// qualifies reports whether the event counts as a qualifying inbound
// transfer: positive amount, at or above the configured floor.
func (b *Builder) qualifies(ev *domain.TransferEvent) bool {
	if ev.RawAmount == nil || ev.RawAmount.Sign() <= 0 {
		return false
	}
	if b.minRawAmount != nil && b.minRawAmount.Sign() > 0 && ev.RawAmount.Cmp(b.minRawAmount) < 0 {
		return false
	}
	return true
}

// Entries returns admitted wallets in canonical first-seen order.
func (b *Builder) Entries() []*Entry {
	return b.entries
}

// StreamDone reports whether the provider stream was fully consumed.
func (b *Builder) StreamDone() bool {
	return b.streamDone
}

// TransfersScanned returns the total number of events scanned.
func (b *Builder) TransfersScanned() int {
	return b.transfersScanned
}

// UniqueRecipients returns the number of distinct recipient addresses seen
// across all scanned events, qualifying or not.
func (b *Builder) UniqueRecipients() int {
	return len(b.recipients)
}

// PagesFetched returns the number of pages consumed so far.
func (b *Builder) PagesFetched() int {
	return b.pages
}

func (b *Builder) log(format string, args ...interface{}) {
	if b.verbose {
		b.logger.Printf("[ledger] "+format, args...)
	}
}
