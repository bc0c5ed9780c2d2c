package swap

import "fmt"

// Step identifies a stage of the swap state machine. Steps advance strictly
// forward; a failure leaves the machine terminal at the step that failed.
type Step int

const (
	StepCheckDestinationAccount Step = iota
	StepEnsureAccountExists
	StepFetchQuote
	StepBuildAndRequestSwap
	StepSignAndSubmit
	StepConfirmFinality
)

func (s Step) String() string {
	switch s {
	case StepCheckDestinationAccount:
		return "check_destination_account"
	case StepEnsureAccountExists:
		return "ensure_account_exists"
	case StepFetchQuote:
		return "fetch_quote"
	case StepBuildAndRequestSwap:
		return "build_and_request_swap"
	case StepSignAndSubmit:
		return "sign_and_submit"
	case StepConfirmFinality:
		return "confirm_finality"
	default:
		return fmt.Sprintf("step_%d", int(s))
	}
}

// Notifier receives progress messages for the conversation transcript as the
// machine advances. It may be nil.
type Notifier func(message string)

// Result is the terminal outcome of one execution. After SignAndSubmit the
// signature is set even when confirmation later fails: the transaction is on
// the wire and there is no rollback.
type Result struct {
	Succeeded  bool
	Signature  string
	FailedStep Step
	Err        error
}

// FailureMessage renders a terminal failure with the standard remediation
// list for the transcript.
func FailureMessage(err error) string {
	return fmt.Sprintf("Swap failed.\n\nError: %v\n\nPossible solutions:\n"+
		"- Check your wallet balance (you need SOL for fees)\n"+
		"- Try again later if the RPC endpoint is rate-limited\n"+
		"- Verify the token mint address\n"+
		"- Reduce slippage tolerance\n"+
		"- Use a smaller amount\n\n"+
		"Would you like to try again?", err)
}
