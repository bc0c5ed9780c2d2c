package wallet

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalSignerBase58Key(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	s, err := NewLocalSigner(key.String())

	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), s.PublicKey())
}

func TestNewLocalSignerJSONArrayKey(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	raw, err := json.Marshal([]byte(key))
	require.NoError(t, err)

	s, err := NewLocalSigner(string(raw))

	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), s.PublicKey())
}

func TestNewLocalSignerRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"whitespace":    "   ",
		"bad base58":    "not-a-key!!!",
		"short base58":  "abc",
		"bad json":      "[1, 2,",
		"short json":    "[1,2,3]",
		"byte overflow": "[300,1,2]",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewLocalSigner(input)
			assert.Error(t, err)
		})
	}
}

func TestSignAddsSignature(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	s, err := NewLocalSigner(key.String())
	require.NoError(t, err)

	dest := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1, s.PublicKey(), dest).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(s.PublicKey()),
	)
	require.NoError(t, err)

	require.NoError(t, s.Sign(context.Background(), tx))

	require.Len(t, tx.Signatures, 1)
	assert.False(t, tx.Signatures[0].IsZero())
}
