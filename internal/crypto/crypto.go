// Package crypto encrypts refresh tokens at rest.
package crypto

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// Encryptor encrypts and decrypts small string secrets.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// KMSClient is the subset of *kms.Client methods used by KMS.
type KMSClient interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMS implements Encryptor with an AWS KMS key. Ciphertexts are base64
// encoded for storage in string attributes.
type KMS struct {
	client KMSClient
	keyID  string
}

// NewKMS creates a KMS encryptor. keyID may be a key id, ARN, or alias
// such as "alias/skydrive-token-key".
func NewKMS(client KMSClient, keyID string) *KMS {
	return &KMS{client: client, keyID: keyID}
}

// Encrypt implements Encryptor.
func (k *KMS) Encrypt(ctx context.Context, plaintext string) (string, error) {
	out, err := k.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(k.keyID),
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		return "", fmt.Errorf("kms encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(out.CiphertextBlob), nil
}

// Decrypt implements Encryptor.
func (k *KMS) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	out, err := k.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: decoded,
		KeyId:          aws.String(k.keyID),
	})
	if err != nil {
		return "", fmt.Errorf("kms decrypt: %w", err)
	}
	return string(out.Plaintext), nil
}

const mockPrefix = "mock:"

// Mock implements Encryptor without KMS, for DEV_MODE and tests. The
// prefix makes mocked ciphertexts recognizable in local tables.
type Mock struct{}

// NewMock creates a Mock encryptor.
func NewMock() *Mock {
	return &Mock{}
}

// Encrypt implements Encryptor.
func (m *Mock) Encrypt(ctx context.Context, plaintext string) (string, error) {
	return mockPrefix + plaintext, nil
}

// Decrypt implements Encryptor.
func (m *Mock) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, mockPrefix), nil
}
