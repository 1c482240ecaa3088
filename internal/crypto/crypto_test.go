package crypto

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// fakeKMS reverses the plaintext so encrypt and decrypt are distinct
// but invertible.
type fakeKMS struct{}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

func (fakeKMS) Encrypt(ctx context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	return &kms.EncryptOutput{CiphertextBlob: reverse(in.Plaintext)}, nil
}

func (fakeKMS) Decrypt(ctx context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	return &kms.DecryptOutput{Plaintext: reverse(in.CiphertextBlob)}, nil
}

func TestKMSRoundTrip(t *testing.T) {
	ctx := context.Background()
	enc := NewKMS(fakeKMS{}, "alias/test-key")

	ciphertext, err := enc.Encrypt(ctx, "refresh-token-value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := base64.StdEncoding.DecodeString(ciphertext); err != nil {
		t.Errorf("ciphertext is not base64: %v", err)
	}

	plain, err := enc.Decrypt(ctx, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "refresh-token-value" {
		t.Errorf("round trip = %q", plain)
	}

	if _, err := enc.Decrypt(ctx, "not-base64!!!"); err == nil {
		t.Error("invalid base64 accepted")
	}
}

func TestMockRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	c, err := m.Encrypt(ctx, "secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if c == "secret" {
		t.Error("mock ciphertext should be marked")
	}
	p, err := m.Decrypt(ctx, c)
	if err != nil || p != "secret" {
		t.Errorf("decrypt = %q, %v", p, err)
	}
}
