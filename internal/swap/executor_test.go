package swap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-agent/internal/rpc"
	"solana-token-agent/internal/token"
)

const outputMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

type fakeSigner struct {
	pub   solana.PublicKey
	signs int32
}

func (s *fakeSigner) PublicKey() solana.PublicKey { return s.pub }

func (s *fakeSigner) Sign(ctx context.Context, tx *solana.Transaction) error {
	atomic.AddInt32(&s.signs, 1)
	tx.Signatures = append(tx.Signatures, solana.Signature{1})
	return nil
}

func testToken() *token.Token {
	return &token.Token{
		Symbol:   "TEST",
		Name:     "Test Token",
		Address:  outputMint,
		Decimals: 6,
	}
}

// rpcNode is a scriptable JSON-RPC endpoint.
type rpcNode struct {
	mu             sync.Mutex
	accountExists  bool
	accountErrors  int // fail this many getAccountInfo calls first
	accountCalls   int
	sends          []string // methods are recorded in order
	sendSignatures []string
}

func (n *rpcNode) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		n.mu.Lock()
		defer n.mu.Unlock()

		switch req.Method {
		case "getAccountInfo":
			n.accountCalls++
			if n.accountErrors > 0 {
				n.accountErrors--
				http.Error(w, "rate limited", http.StatusTooManyRequests)
				return
			}
			if n.accountExists {
				fmt.Fprint(w, `{"result":{"value":{"lamports":1}}}`)
			} else {
				fmt.Fprint(w, `{"result":{"value":null}}`)
			}
		case "getLatestBlockhash":
			fmt.Fprint(w, `{"result":{"value":{"blockhash":"GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W","lastValidBlockHeight":100}}}`)
		case "sendTransaction":
			sig := fmt.Sprintf("sig%d", len(n.sendSignatures)+1)
			n.sendSignatures = append(n.sendSignatures, sig)
			n.sends = append(n.sends, req.Method)
			fmt.Fprintf(w, `{"result":%q}`, sig)
		case "getSignatureStatuses":
			fmt.Fprint(w, `{"result":{"value":[{"slot":1,"confirmations":null,"err":null,"confirmationStatus":"finalized"}]}}`)
		default:
			t.Errorf("unexpected RPC method %q", req.Method)
		}
	}
}

// prebuiltSwapTx returns a base64 unsigned transaction the way the swap API
// would hand one back.
func prebuiltSwapTx(t *testing.T, payer solana.PublicKey) string {
	t.Helper()
	dest := solana.MustPublicKeyFromBase58(outputMint)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer, dest).Build()},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func jupiterServer(t *testing.T, payer solana.PublicKey, quoteErr string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			if quoteErr != "" {
				fmt.Fprintf(w, `{"error":%q}`, quoteErr)
				return
			}
			assert.Equal(t, "50", r.URL.Query().Get("slippageBps"))
			assert.Equal(t, "true", r.URL.Query().Get("restrictIntermediateTokens"))
			assert.Equal(t, "ExactOut", r.URL.Query().Get("swapMode"))
			fmt.Fprint(w, `{"inAmount":"123","outAmount":"100000000"}`)
		case "/swap":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, payer.String(), body["userPublicKey"])
			assert.NotEmpty(t, body["destinationTokenAccount"])
			assert.Equal(t, true, body["dynamicComputeUnitLimit"])
			fmt.Fprintf(w, `{"swapTransaction":%q}`, prebuiltSwapTx(t, payer))
		default:
			t.Errorf("unexpected jupiter path %q", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestExecutor(t *testing.T, node *rpcNode, quoteErr string) (*Executor, *fakeSigner) {
	t.Helper()
	rpcSrv := httptest.NewServer(node.handler(t))
	t.Cleanup(rpcSrv.Close)

	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	signer := &fakeSigner{pub: payer.PublicKey()}
	jup := jupiterServer(t, signer.pub, quoteErr)

	exec := NewExecutor(ExecutorConfig{
		RPC: rpc.NewClient(rpc.ClientConfig{
			BaseURL:      rpcSrv.URL,
			Timeout:      5 * time.Second,
			MaxRetries:   1,
			RetryBackoff: time.Millisecond,
		}),
		Jupiter:        NewJupiterClient(jup.URL),
		Signer:         signer,
		ConfirmTimeout: 5 * time.Second,
	})
	return exec, signer
}

func collectNotifications() (Notifier, *[]string) {
	var (
		mu   sync.Mutex
		msgs []string
	)
	return func(m string) {
		mu.Lock()
		defer mu.Unlock()
		msgs = append(msgs, m)
	}, &msgs
}

func swapRequest() Request {
	return Request{
		Amount:     0.1e9,
		InputMint:  token.NativeMint,
		OutputMint: outputMint,
		Token:      testToken(),
	}
}

func TestExecuteHappyPathWithExistingAccount(t *testing.T) {
	node := &rpcNode{accountExists: true}
	exec, signer := newTestExecutor(t, node, "")
	notify, msgs := collectNotifications()

	res := exec.Execute(context.Background(), swapRequest(), notify)

	require.NoError(t, res.Err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, "sig1", res.Signature)
	assert.Equal(t, int32(1), signer.signs)
	assert.Equal(t, 1, node.accountCalls)

	joined := strings.Join(*msgs, "\n")
	assert.Contains(t, joined, "Initiating swap: 0.1000 SOL -> TEST")
	assert.Contains(t, joined, "Transaction submitted. Signature: sig1")
	assert.Contains(t, joined, "https://solscan.io/tx/sig1")
	assert.Contains(t, joined, "Swap successful.")
	assert.NotContains(t, joined, "Creating associated token account")
}

func TestExecuteCreatesMissingAccountFirst(t *testing.T) {
	node := &rpcNode{accountExists: false}
	exec, signer := newTestExecutor(t, node, "")
	notify, msgs := collectNotifications()

	res := exec.Execute(context.Background(), swapRequest(), notify)

	require.NoError(t, res.Err)
	assert.True(t, res.Succeeded)
	// One signature for the account creation, one for the swap.
	assert.Equal(t, int32(2), signer.signs)
	assert.Equal(t, []string{"sig1", "sig2"}, node.sendSignatures)
	assert.Equal(t, "sig2", res.Signature)

	joined := strings.Join(*msgs, "\n")
	assert.Contains(t, joined, "Creating associated token account for TEST")
	assert.Contains(t, joined, "Associated token account created. Signature: https://solscan.io/tx/sig1")
}

func TestExecuteAccountCheckRetriesThenFails(t *testing.T) {
	node := &rpcNode{accountExists: true, accountErrors: 3}
	exec, signer := newTestExecutor(t, node, "")
	notify, msgs := collectNotifications()

	res := exec.Execute(context.Background(), swapRequest(), notify)

	assert.False(t, res.Succeeded)
	assert.Equal(t, StepCheckDestinationAccount, res.FailedStep)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "rate-limited")
	assert.Equal(t, 3, node.accountCalls)
	assert.Zero(t, signer.signs)

	joined := strings.Join(*msgs, "\n")
	assert.Contains(t, joined, "Retrying account check (attempt 2/3)")
	assert.Contains(t, joined, "Retrying account check (attempt 3/3)")
}

func TestExecuteQuoteErrorIsTerminal(t *testing.T) {
	node := &rpcNode{accountExists: true}
	exec, signer := newTestExecutor(t, node, "No route found")
	notify, _ := collectNotifications()

	res := exec.Execute(context.Background(), swapRequest(), notify)

	assert.False(t, res.Succeeded)
	assert.Equal(t, StepFetchQuote, res.FailedStep)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "quote failed: No route found")
	// Nothing was signed or submitted.
	assert.Zero(t, signer.signs)
	assert.Empty(t, node.sendSignatures)
}

func TestExecuteRejectsInvalidMerchantAddress(t *testing.T) {
	node := &rpcNode{accountExists: true}
	exec, _ := newTestExecutor(t, node, "")

	req := swapRequest()
	req.Token = &token.Token{Symbol: "BAD", Address: "not-a-pubkey"}

	res := exec.Execute(context.Background(), req, nil)

	assert.False(t, res.Succeeded)
	assert.Equal(t, StepCheckDestinationAccount, res.FailedStep)
	assert.Zero(t, node.accountCalls)
}

func TestFailureMessageListsRemediations(t *testing.T) {
	msg := FailureMessage(fmt.Errorf("quote failed: No route found"))

	assert.Contains(t, msg, "Swap failed.")
	assert.Contains(t, msg, "Error: quote failed: No route found")
	for _, line := range []string{
		"Check your wallet balance",
		"rate-limited",
		"Verify the token mint address",
		"Reduce slippage tolerance",
		"Use a smaller amount",
	} {
		assert.Contains(t, msg, line)
	}
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "check_destination_account", StepCheckDestinationAccount.String())
	assert.Equal(t, "confirm_finality", StepConfirmFinality.String())
}
