package identity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/oauth2"

	"github.com/skydrive/skydrive/internal/crypto"
)

// UserToken is the per-user record in the token table: the Google
// profile, the encrypted refresh token, and the drive folder that
// backs the user's blobs.
type UserToken struct {
	UserID                string    `dynamodbav:"user_id"`
	DisplayName           string    `dynamodbav:"display_name"`
	Email                 string    `dynamodbav:"email"`
	EncryptedRefreshToken string    `dynamodbav:"encrypted_refresh_token"`
	BaseFolderID          string    `dynamodbav:"base_folder_id"`
	UpdatedAt             time.Time `dynamodbav:"updated_at"`
}

// Google runs the Google OAuth2 flow and manages per-user refresh
// tokens. Refresh tokens are encrypted at rest; with a nil DynamoDB
// client the records live in memory instead (DEV_MODE).
type Google struct {
	oauthConfig  *oauth2.Config
	dynamoClient *dynamodb.Client
	tableName    string
	encryptor    crypto.Encryptor

	mu     sync.RWMutex
	tokens map[string]UserToken
}

// NewGoogle creates a Google identity service. The oauth2 config is
// built by the caller from its secrets.
func NewGoogle(oauthConfig *oauth2.Config, dynamoClient *dynamodb.Client, tableName string, enc crypto.Encryptor) *Google {
	return &Google{
		oauthConfig:  oauthConfig,
		dynamoClient: dynamoClient,
		tableName:    tableName,
		encryptor:    enc,
		tokens:       make(map[string]UserToken),
	}
}

// Config returns the OAuth2 config.
func (g *Google) Config() *oauth2.Config {
	return g.oauthConfig
}

// AuthURL returns the Google consent URL for the given CSRF state.
func (g *Google) AuthURL(state string) string {
	return g.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func (g *Google) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.oauthConfig.Exchange(ctx, code)
}

// SaveToken encrypts and stores the refresh token together with the
// user's profile. The base folder id of an existing record is
// preserved.
func (g *Google) SaveToken(ctx context.Context, user User, token *oauth2.Token) error {
	if token.RefreshToken == "" {
		return fmt.Errorf("no refresh token in response")
	}

	encrypted, err := g.encryptor.Encrypt(ctx, token.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	var baseFolderID string
	if existing, err := g.UserToken(ctx, user.ID); err == nil {
		baseFolderID = existing.BaseFolderID
	}

	record := UserToken{
		UserID:                user.ID,
		DisplayName:           user.DisplayName,
		Email:                 user.Email,
		EncryptedRefreshToken: encrypted,
		BaseFolderID:          baseFolderID,
		UpdatedAt:             time.Now(),
	}

	if g.dynamoClient == nil {
		g.mu.Lock()
		g.tokens[user.ID] = record
		g.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal user token: %w", err)
	}
	_, err = g.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// UserToken loads a user's token record.
func (g *Google) UserToken(ctx context.Context, userID string) (*UserToken, error) {
	if g.dynamoClient == nil {
		g.mu.RLock()
		record, ok := g.tokens[userID]
		g.mu.RUnlock()
		if !ok {
			return nil, ErrNotSignedIn
		}
		return &record, nil
	}

	out, err := g.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(g.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get user token: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotSignedIn
	}

	var record UserToken
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshal user token: %w", err)
	}
	return &record, nil
}

// User resolves the profile stored for a user id.
func (g *Google) User(ctx context.Context, userID string) (User, error) {
	record, err := g.UserToken(ctx, userID)
	if err != nil {
		return User{}, err
	}
	return User{ID: record.UserID, DisplayName: record.DisplayName, Email: record.Email}, nil
}

// SetBaseFolder records the drive folder that holds the user's blobs.
func (g *Google) SetBaseFolder(ctx context.Context, userID, folderID string) error {
	if g.dynamoClient == nil {
		g.mu.Lock()
		if record, ok := g.tokens[userID]; ok {
			record.BaseFolderID = folderID
			g.tokens[userID] = record
		}
		g.mu.Unlock()
		return nil
	}

	_, err := g.dynamoClient.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(g.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		UpdateExpression: aws.String("SET base_folder_id = :fid, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fid": &types.AttributeValueMemberS{Value: folderID},
			":now": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("update base folder: %w", err)
	}
	return nil
}

// HTTPClient returns an authenticated client for the user, refreshing
// the access token from the stored refresh token.
func (g *Google) HTTPClient(ctx context.Context, userID string) (*http.Client, error) {
	record, err := g.UserToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	refreshToken, err := g.encryptor.Decrypt(ctx, record.EncryptedRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}

	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-1 * time.Hour), // force refresh
	}
	return oauth2.NewClient(ctx, g.oauthConfig.TokenSource(ctx, token)), nil
}
