package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoginMessage is the text a wallet signs with personal_sign to log in.
func LoginMessage(domain string, address common.Address, nonce string, issuedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your account:\n", domain)
	fmt.Fprintf(&b, "%s\n\n", address.Hex())
	b.WriteString("Sign in to the AUDT staking service.\n\n")
	fmt.Fprintf(&b, "Nonce: %s\n", nonce)
	fmt.Fprintf(&b, "Issued At: %s", issuedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// VerifySignature checks that sigHex is an EIP-191 personal signature of
// message made by address.
//
// 1. hash = keccak256("\x19Ethereum Signed Message:\n" + len(message) + message)
// 2. the recovery id is normalized from 27/28 to 0/1
// 3. the recovered public key must map to address
func VerifySignature(address common.Address, message, sigHex string) error {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature size: %d", len(sig))
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return fmt.Errorf("invalid signature recovery id")
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != address {
		return fmt.Errorf("signature is from %s, not %s", signer.Hex(), address.Hex())
	}
	return nil
}
