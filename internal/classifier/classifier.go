// Package classifier labels early wallets as buyers or airdrop recipients
// from heuristic evidence in the scanned transfer stream.
package classifier

import (
	"log"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

// Fan-out defaults: a sender hitting at least this many distinct recipients
// within the block window is treated as a distributor.
const (
	DefaultFanOutMinRecipients = 10
	DefaultFanOutWindowBlocks  = 5
)

// Input is the evidence available when classifying one wallet's first
// transfer.
type Input struct {
	Event      *domain.TransferEvent
	Investment *domain.EstimatedInvestment
	Decimals   int
	Index      *TransferIndex
}

// Rule is one named classification heuristic. Rules are evaluated in order;
// the first match wins, so earlier rules take precedence over later ones.
type Rule struct {
	Name    string
	Applies func(in *Input) (domain.Classification, bool)
}

// DefaultRules returns the standard rule chain:
//
//  1. A detected counter-value payment marks a buyer regardless of transfer
//     shape.
//  2. A fan-out sender with no payment marks an airdrop recipient.
//  3. A batch transfer (multiple recipients in one transaction) with no
//     payment marks an airdrop recipient.
//  4. A contract-looking sender moving a round amount with no payment marks
//     an airdrop recipient.
func DefaultRules(fanOutMinRecipients int, fanOutWindowBlocks int64) []Rule {
	return []Rule{
		{
			Name: "counter_value_payment",
			Applies: func(in *Input) (domain.Classification, bool) {
				if positiveInvestment(in.Investment) {
					return domain.ClassificationBuyer, true
				}
				return "", false
			},
		},
		{
			Name: "fan_out_sender",
			Applies: func(in *Input) (domain.Classification, bool) {
				if in.Index == nil {
					return "", false
				}
				n := in.Index.DistinctRecipientsNear(in.Event.From, in.Event.BlockNumber, fanOutWindowBlocks)
				if n >= fanOutMinRecipients {
					return domain.ClassificationAirdrop, true
				}
				return "", false
			},
		},
		{
			Name: "batch_transfer",
			Applies: func(in *Input) (domain.Classification, bool) {
				if in.Index == nil {
					return "", false
				}
				if in.Index.RecipientsInTx(in.Event.TxHash) > 1 {
					return domain.ClassificationAirdrop, true
				}
				return "", false
			},
		},
		{
			Name: "contract_round_amount",
			Applies: func(in *Input) (domain.Classification, bool) {
				if !LikelyContract(in.Event.From) {
					return "", false
				}
				amount := domain.ScaledAmount(in.Event.RawAmount, in.Decimals)
				if RoundAmount(amount) {
					return domain.ClassificationAirdrop, true
				}
				return "", false
			},
		},
	}
}

// Classifier applies an ordered rule chain to wallet evidence.
type Classifier struct {
	rules   []Rule
	index   *TransferIndex
	logger  *log.Logger
	verbose bool
}

// Options configures a Classifier.
type Options struct {
	// Index holds the scanned transfer statistics. Required for the fan-out
	// and batch rules; without it those rules never match.
	Index *TransferIndex

	// Rules overrides the rule chain. Defaults to DefaultRules with the
	// default fan-out thresholds.
	Rules []Rule

	FanOutMinRecipients int
	FanOutWindowBlocks  int64

	Logger  *log.Logger
	Verbose bool
}

// New creates a Classifier.
func New(opts Options) *Classifier {
	rules := opts.Rules
	if rules == nil {
		minRecipients := opts.FanOutMinRecipients
		if minRecipients <= 0 {
			minRecipients = DefaultFanOutMinRecipients
		}
		window := opts.FanOutWindowBlocks
		if window <= 0 {
			window = DefaultFanOutWindowBlocks
		}
		rules = DefaultRules(minRecipients, window)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Classifier{
		rules:   rules,
		index:   opts.Index,
		logger:  logger,
		verbose: opts.Verbose,
	}
}

// Classify labels one wallet from its first transfer and estimated
// investment. It returns the label and the name of the rule that fired, or
// ClassificationUnknown and "" when no rule matched.
func (c *Classifier) Classify(ev *domain.TransferEvent, investment *domain.EstimatedInvestment, decimals int) (domain.Classification, string) {
	in := &Input{
		Event:      ev,
		Investment: investment,
		Decimals:   decimals,
		Index:      c.index,
	}
	for _, rule := range c.rules {
		if label, ok := rule.Applies(in); ok {
			c.log("wallet %s: %s (rule %s)", ev.To, label, rule.Name)
			return label, rule.Name
		}
	}
	c.log("wallet %s: no rule matched", ev.To)
	return domain.ClassificationUnknown, ""
}

// positiveInvestment reports a known, positive counter-value payment. An
// unknown investment is not evidence either way.
func positiveInvestment(inv *domain.EstimatedInvestment) bool {
	return inv != nil && inv.NativeAmount > 0
}

func (c *Classifier) log(format string, args ...interface{}) {
	if c.verbose {
		c.logger.Printf("[classifier] "+format, args...)
	}
}
