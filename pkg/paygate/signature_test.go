package paygate

import "testing"

func TestVerifySignature(t *testing.T) {
	secret := "secret_test"
	sig := ComputeSignature(secret, "ord_1", "pay_1")

	if !VerifySignature(secret, "ord_1", "pay_1", sig) {
		t.Fatal("expected valid signature to verify")
	}
	// Tampered references must fail.
	if VerifySignature(secret, "ord_2", "pay_1", sig) {
		t.Fatal("signature verified for wrong order ref")
	}
	if VerifySignature(secret, "ord_1", "pay_2", sig) {
		t.Fatal("signature verified for wrong payment ref")
	}
	if VerifySignature("other_secret", "ord_1", "pay_1", sig) {
		t.Fatal("signature verified with wrong secret")
	}
	if VerifySignature(secret, "ord_1", "pay_1", "") {
		t.Fatal("empty signature verified")
	}
}

func TestVerifySignatureCaseInsensitiveHex(t *testing.T) {
	secret := "secret_test"
	sig := ComputeSignature(secret, "ord_1", "pay_1")
	upper := ""
	for _, r := range sig {
		if r >= 'a' && r <= 'f' {
			r = r - 'a' + 'A'
		}
		upper += string(r)
	}
	if !VerifySignature(secret, "ord_1", "pay_1", upper) {
		t.Fatal("uppercase hex signature should verify")
	}
}
