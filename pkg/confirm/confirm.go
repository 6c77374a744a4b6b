package confirm

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/solrun-hq/solrunner/pkg/metrics"
	"github.com/solrun-hq/solrunner/pkg/models"
)

// Outcome is the tri-state result of reading the user's reply to a
// confirmation prompt.
type Outcome int

const (
	// OutcomePending means the reply did not answer the question; the gate
	// stays open and the operation must not run.
	OutcomePending Outcome = iota
	OutcomeConfirmed
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Message is one turn of the surrounding conversation.
type Message struct {
	Role    string
	Content string
}

// Classifier decides whether recent conversation confirms a proposed
// operation. Only the trailing turns matter; callers pass the last few.
type Classifier interface {
	Classify(ctx context.Context, proposal string, history []Message) (Outcome, error)
}

// historyWindow is how many trailing turns the classifier sees.
const historyWindow = 3

// Window trims history to the turns the classifier should see.
func Window(history []Message) []Message {
	if len(history) <= historyWindow {
		return history
	}
	return history[len(history)-historyWindow:]
}

// Gate wraps a classifier and enforces that nothing executes without an
// explicit confirmation.
type Gate struct {
	classifier Classifier
}

func NewGate(classifier Classifier) *Gate {
	return &Gate{classifier: classifier}
}

// Decide classifies the user's response to a proposal. Any classifier error
// degrades to pending, never to confirmed.
func (g *Gate) Decide(ctx context.Context, proposal string, history []Message) (Outcome, error) {
	outcome, err := g.classifier.Classify(ctx, proposal, Window(history))
	if err != nil {
		metrics.ConfirmationOutcomes.WithLabelValues("error").Inc()
		return OutcomePending, err
	}
	metrics.ConfirmationOutcomes.WithLabelValues(outcome.String()).Inc()
	return outcome, nil
}

// DescribeSwap renders the proposal line shown to the user before a swap.
func DescribeSwap(swap models.ResolvedSwap, trigger models.Trigger) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Swap %s %s for %s", swap.Amount, displayToken(swap.InputSymbol, swap.InputMint), displayToken(swap.OutputSymbol, swap.OutputMint))
	if cond := trigger.Describe(); cond != "" {
		b.WriteString(" ")
		b.WriteString(cond)
	}
	b.WriteString(". Reply to confirm or cancel.")
	return b.String()
}

// DescribeTransfer renders the proposal line shown to the user before a
// transfer.
func DescribeTransfer(transfer models.ResolvedTransfer) string {
	return fmt.Sprintf("Send %s %s to %s. Reply to confirm or cancel.",
		transfer.Amount, displayToken(transfer.Symbol, transfer.Mint), transfer.Recipient)
}

// SummarizePending renders one pending task for a status report.
func SummarizePending(task models.AutoSwapTask, currentPrice decimal.Decimal) string {
	line := fmt.Sprintf("Swap %s %s for %s %s",
		task.Swap.Amount,
		displayToken(task.Swap.InputSymbol, task.Swap.InputMint),
		displayToken(task.Swap.OutputSymbol, task.Swap.OutputMint),
		task.Trigger.Describe())
	if !currentPrice.IsZero() {
		line += fmt.Sprintf(" (current price %s USD)", currentPrice)
	}
	return line
}

func displayToken(symbol, mint string) string {
	if symbol != "" {
		return symbol
	}
	return mint
}
