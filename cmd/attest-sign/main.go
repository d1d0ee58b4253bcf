// attest-sign generates a verifier keypair and produces an attestation
// signature for an action, for manual testing against a running ledger.
//
// Usage:
//
//	attest-sign -action publish-001 -payload '{"title":"x"}'
//	attest-sign -action publish-001 -payload '{"title":"x"}' -key <hex private key>
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/attestly/ledger/pkg/crypto"
)

func main() {
	actionID := flag.String("action", "", "action id to attest to")
	payload := flag.String("payload", "{}", "action payload JSON")
	keyHex := flag.String("key", "", "hex private key (generates a new one if empty)")
	flag.Parse()

	if *actionID == "" {
		fmt.Println("Error: -action is required")
		os.Exit(1)
	}

	var signer *crypto.Signer
	var err error
	if *keyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	if *keyHex == "" {
		fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	}
	fmt.Println()

	contentHash, err := crypto.HashPayload([]byte(*payload))
	if err != nil {
		fmt.Printf("Error hashing payload: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Content Hash: %s\n", contentHash.Hex())

	digest := crypto.AttestationDigest(*actionID, contentHash)
	signature, err := signer.Sign(digest[:])
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature: 0x%x\n\n", signature)

	fmt.Println("Verifying signature...")
	if !crypto.VerifySecp256k1(signer.Address(), digest[:], signature) {
		fmt.Println("✗ Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("✓ Signature VALID")
	fmt.Println()

	body, _ := json.MarshalIndent(map[string]string{
		"verifierId": signer.Address().Hex(),
		"signature":  fmt.Sprintf("0x%x", signature),
	}, "", "  ")

	fmt.Println("To submit this attestation:")
	fmt.Printf("  POST http://localhost:8080/api/v1/actions/%s/verifications\n", *actionID)
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(body))
}
