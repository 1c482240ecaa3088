package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/skydrive/skydrive/internal/identity"
)

// AuthHandler runs the sign-in flow and session endpoints.
type AuthHandler struct {
	google    *identity.Google
	jwtSecret string
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(g *identity.Google, jwtSecret string) *AuthHandler {
	return &AuthHandler{google: g, jwtSecret: jwtSecret}
}

// Login redirects to the Google consent screen.
func (h *AuthHandler) Login(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// TODO: generate a per-request state and verify it in Callback
	state := "random-state"
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": h.google.AuthURL(state),
		},
	}, nil
}

// Callback finishes the OAuth2 flow: it exchanges the code, stores the
// refresh token, and issues the session cookie.
func (h *AuthHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	code := req.QueryStringParameters["code"]
	if code == "" {
		return errorResponse(http.StatusBadRequest, "Missing code"), nil
	}

	token, err := h.google.Exchange(ctx, code)
	if err != nil {
		fmt.Printf("Exchange error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to exchange code"), nil
	}

	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(h.google.Config().TokenSource(ctx, token)))
	if err != nil {
		fmt.Printf("NewService error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to create oauth2 service"), nil
	}
	userinfo, err := svc.Userinfo.Get().Do()
	if err != nil {
		fmt.Printf("Userinfo error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to get user info"), nil
	}

	user := identity.User{ID: userinfo.Id, DisplayName: userinfo.Name, Email: userinfo.Email}
	if err := h.google.SaveToken(ctx, user, token); err != nil {
		// A returning user may get no refresh token; the stored one
		// still works, so the login proceeds.
		fmt.Printf("SaveToken error: %v\n", err)
	}

	signedToken, err := h.signSession(user, 24*time.Hour)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to sign token"), nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": fmt.Sprintf("%s/?success=true", frontendURL()),
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {sessionCookie(signedToken, 86400)},
		},
	}, nil
}

// Me returns the signed-in user's profile.
func (h *AuthHandler) Me(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user, err := RequestUser(req, h.jwtSecret)
	if err != nil {
		return unauthorized(), nil
	}

	// Prefer the stored profile; fall back to the session claims when
	// the token table has no record (demo sessions).
	if stored, err := h.google.User(ctx, user.ID); err == nil {
		user = stored
	}
	return jsonResponse(http.StatusOK, user), nil
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp := jsonResponse(http.StatusOK, map[string]bool{"success": true})
	resp.MultiValueHeaders = map[string][]string{
		"Set-Cookie": {sessionCookie("", 0)},
	}
	return resp, nil
}

func (h *AuthHandler) signSession(user identity.User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"name":  user.DisplayName,
		"exp":   time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
}

func frontendURL() string {
	if url := os.Getenv("FRONTEND_URL"); url != "" {
		return url
	}
	return "http://localhost:3000"
}

func sessionCookie(token string, maxAge int) string {
	// SameSite=None is required in production where the frontend and
	// the API sit behind different CloudFront behaviors.
	sameSite := "Lax"
	if os.Getenv("DEV_MODE") != "true" {
		sameSite = "None"
	}
	return fmt.Sprintf("session_token=%s; HttpOnly; Path=/; Max-Age=%d; SameSite=%s; Secure", token, maxAge, sameSite)
}
