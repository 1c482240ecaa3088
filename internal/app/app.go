// Package app wires the application together and routes API Gateway
// requests.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/skydrive/skydrive/internal/blob"
	"github.com/skydrive/skydrive/internal/crypto"
	"github.com/skydrive/skydrive/internal/drive"
	"github.com/skydrive/skydrive/internal/handler"
	"github.com/skydrive/skydrive/internal/identity"
	"github.com/skydrive/skydrive/internal/mirror"
	"github.com/skydrive/skydrive/internal/secret"
	"github.com/skydrive/skydrive/internal/store"
	"github.com/skydrive/skydrive/internal/store/dynamo"
	storememory "github.com/skydrive/skydrive/internal/store/memory"
	"github.com/skydrive/skydrive/internal/upload"
)

// App holds the wired handlers for the Lambda function.
type App struct {
	authHandler      *handler.AuthHandler
	driveHandler     *handler.DriveHandler
	uploadHandler    *handler.UploadHandler
	mirror           *mirror.Mirror
	apiGatewaySecret string
}

// NewApp initializes the application dependencies. With DEV_MODE=true
// everything runs in-process: memory document store, memory blob
// store, mock encryptor, and env-var secrets.
func NewApp(ctx context.Context) *App {
	devMode := os.Getenv("DEV_MODE") == "true"

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Sprintf("unable to load SDK config, %v", err))
	}

	var resolver secret.Resolver
	if devMode {
		resolver = secret.NewEnvResolver()
		fmt.Println("Using EnvResolver (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(cfg))
	}

	googleClientSecret, err := resolver.GetSecret(ctx, paramName("GOOGLE_CLIENT_SECRET_PARAM", "/skydrive/google-client-secret"))
	if err != nil {
		log.Printf("WARNING: failed to resolve GOOGLE_CLIENT_SECRET: %v", err)
	}
	jwtSecret, err := resolver.GetSecret(ctx, paramName("JWT_SECRET_PARAM", "/skydrive/jwt-secret"))
	if err != nil {
		log.Printf("WARNING: failed to resolve JWT_SECRET: %v", err)
		jwtSecret = "default-dev-secret"
	}
	apiGatewaySecret, err := resolver.GetSecret(ctx, paramName("API_GATEWAY_SECRET_PARAM", "/skydrive/api-gateway-secret"))
	if err != nil {
		log.Printf("WARNING: failed to resolve API_GATEWAY_SECRET: %v", err)
	}

	var encryptor crypto.Encryptor
	if devMode {
		encryptor = crypto.NewMock()
		fmt.Println("Using mock encryptor (DEV_MODE=true)")
	} else {
		keyID := os.Getenv("KMS_KEY_ID")
		if keyID == "" {
			keyID = "alias/skydrive-token-key"
		}
		encryptor = crypto.NewKMS(kms.NewFromConfig(cfg), keyID)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: googleClientSecret,
		RedirectURL:  redirectURL(devMode),
		Scopes: []string{
			"https://www.googleapis.com/auth/drive",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}

	var dynamoClient *dynamodb.Client
	if !devMode {
		dynamoClient = dynamodb.NewFromConfig(cfg)
	}

	tokensTable := os.Getenv("USER_TOKENS_TABLE")
	if tokensTable == "" {
		tokensTable = "UserTokens"
	}
	googleIdentity := identity.NewGoogle(oauthConfig, dynamoClient, tokensTable, encryptor)

	var documents store.DocumentStore
	if devMode {
		documents = storememory.New()
		fmt.Println("Using in-memory document store (DEV_MODE=true)")
	} else {
		documents = dynamo.New(dynamoClient, os.Getenv("DRIVE_TABLE_PREFIX"))
	}

	blobs := newBlobStore(ctx, devMode, googleIdentity)

	// The server keeps its own mirror so listings are served from the
	// replica, the same way the browser renders from its local copy.
	m := mirror.New(documents)
	if err := m.Start(ctx); err != nil {
		log.Printf("WARNING: mirror start failed: %v", err)
	}

	coordinator := drive.New(documents, blobs)
	uploads := upload.NewManager(documents, blobs, nil)

	return &App{
		authHandler:      handler.NewAuthHandler(googleIdentity, jwtSecret),
		driveHandler:     handler.NewDriveHandler(m, coordinator, jwtSecret),
		uploadHandler:    handler.NewUploadHandler(uploads, jwtSecret),
		mirror:           m,
		apiGatewaySecret: apiGatewaySecret,
	}
}

// newBlobStore picks the blob backend. Production stores blobs in a
// Google Drive folder owned by the service account named by
// BLOB_SERVICE_USER; when that drive client cannot be built the app
// degrades to in-memory blobs rather than failing startup.
func newBlobStore(ctx context.Context, devMode bool, g *identity.Google) blob.Store {
	if devMode {
		fmt.Println("Using in-memory blob store (DEV_MODE=true)")
		return blob.NewMemory()
	}

	serviceUser := os.Getenv("BLOB_SERVICE_USER")
	if serviceUser == "" {
		log.Printf("WARNING: BLOB_SERVICE_USER not set, using in-memory blob store")
		return blob.NewMemory()
	}
	httpClient, err := g.HTTPClient(ctx, serviceUser)
	if err != nil {
		log.Printf("WARNING: drive client for blob store: %v", err)
		return blob.NewMemory()
	}
	service, err := drivev3.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		log.Printf("WARNING: drive service for blob store: %v", err)
		return blob.NewMemory()
	}
	return blob.NewGoogleDrive(service, os.Getenv("BLOB_FOLDER_ID"))
}

func paramName(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func redirectURL(devMode bool) string {
	if url := os.Getenv("GOOGLE_REDIRECT_URL"); url != "" {
		return url
	}
	if devMode {
		return "http://localhost:8080/auth/callback"
	}
	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	return frontendURL + "/api/auth/callback"
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	fmt.Printf("Request: %s %s\n", method, path)

	// CORS preflight
	if method == "OPTIONS" {
		return corsResponse(events.APIGatewayProxyResponse{StatusCode: 204}), nil
	}

	// Only CloudFront knows this header value; direct API Gateway
	// access is blocked in production.
	if os.Getenv("DEV_MODE") != "true" {
		if req.Headers["X-Origin-Verify"] != app.apiGatewaySecret && req.Headers["x-origin-verify"] != app.apiGatewaySecret {
			fmt.Printf("Security Block: Missing or invalid X-Origin-Verify header\n")
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}, nil
		}
	}

	// Strip /api prefix if present (CloudFront proxying)
	if strings.HasPrefix(path, "/api") {
		path = strings.TrimPrefix(path, "/api")
	}
	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}

	// /auth
	if strings.HasPrefix(path, "/auth") {
		if path == "/auth/login" && method == "GET" {
			return corsResponse(must(app.authHandler.Login(ctx, req))), nil
		}
		if path == "/auth/callback" && method == "GET" {
			return corsResponse(must(app.authHandler.Callback(ctx, req))), nil
		}
		if path == "/auth/logout" && method == "POST" {
			return corsResponse(must(app.authHandler.Logout(ctx, req))), nil
		}
		if path == "/auth/me" && method == "GET" {
			return corsResponse(must(app.authHandler.Me(ctx, req))), nil
		}
	}

	// /drive
	if path == "/drive" && method == "GET" {
		return corsResponse(must(app.driveHandler.List(ctx, req))), nil
	}
	if path == "/drive/usage" && method == "GET" {
		return corsResponse(must(app.driveHandler.Usage(ctx, req))), nil
	}

	// /files
	if strings.HasPrefix(path, "/files/") {
		if path == "/files/bulk/restore" && method == "POST" {
			return corsResponse(must(app.driveHandler.BulkRestore(ctx, req))), nil
		}
		if path == "/files/bulk/delete" && method == "POST" {
			return corsResponse(must(app.driveHandler.BulkDelete(ctx, req))), nil
		}

		parts := strings.Split(strings.Trim(path, "/"), "/")
		if len(parts) >= 2 {
			req.PathParameters["id"] = parts[1]

			if len(parts) == 3 && method == "POST" {
				switch parts[2] {
				case "trash":
					return corsResponse(must(app.driveHandler.TrashFile(ctx, req))), nil
				case "restore":
					return corsResponse(must(app.driveHandler.RestoreFile(ctx, req))), nil
				}
			}
			if len(parts) == 2 {
				if method == "PATCH" {
					return corsResponse(must(app.driveHandler.PatchFile(ctx, req))), nil
				}
				if method == "DELETE" {
					return corsResponse(must(app.driveHandler.DeleteFile(ctx, req))), nil
				}
			}
		}
	}

	// /folders
	if path == "/folders" && method == "POST" {
		return corsResponse(must(app.driveHandler.CreateFolder(ctx, req))), nil
	}
	if strings.HasPrefix(path, "/folders/") {
		parts := strings.Split(strings.Trim(path, "/"), "/")
		if len(parts) == 2 {
			req.PathParameters["id"] = parts[1]
			if method == "PATCH" {
				return corsResponse(must(app.driveHandler.PatchFolder(ctx, req))), nil
			}
			if method == "DELETE" {
				return corsResponse(must(app.driveHandler.DeleteFolder(ctx, req))), nil
			}
		}
	}

	// /upload
	if path == "/upload" && method == "POST" {
		return corsResponse(must(app.uploadHandler.Upload(ctx, req))), nil
	}
	if path == "/upload/active" && method == "GET" {
		return corsResponse(must(app.uploadHandler.Active(ctx, req))), nil
	}

	return corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = os.Getenv("FRONTEND_URL")
	if resp.Headers["Access-Control-Allow-Origin"] == "" {
		resp.Headers["Access-Control-Allow-Origin"] = "http://localhost:3000"
	}
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,PUT,DELETE,OPTIONS,PATCH"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, converting a handler error into a
// 500.
func must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		fmt.Printf("Handler error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
