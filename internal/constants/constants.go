package constants

// Centralized constants for env keys, headers, routes and fetch defaults.
const (
	// Environment variable keys
	EnvSessionSecret       = "SESSION_SECRET"
	EnvGoogleClientID      = "GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret  = "GOOGLE_CLIENT_SECRET"
	EnvSessionSecureCookie = "SESSION_SECURE_COOKIE"
	EnvConfigPath          = "GALLERY_CONFIG"
	EnvDBPath              = "GALLERY_DB"

	// HTTP headers and content types
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"

	ContentTypeJSON = "application/json"
	ContentTypePNG  = "image/png"

	CacheControlHeader     = "Cache-Control"
	CacheControlThumbnails = "public, max-age=86400"

	// Session / Cookie names
	CookieSessionName = "g_session"

	// Google OAuth constants
	GoogleOAuthRedirect = "postmessage"
	GoogleUserInfoURL   = "https://www.googleapis.com/oauth2/v2/userinfo"
)

var (
	// Scopes for Google userinfo
	GoogleUserInfoScopes = []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"}
)

// Routes used by the backend router
const (
	RouteAPIPrefix          = "/api"
	RoutePhotos             = "/photos"
	RoutePhotoThumbnail     = "/photos/:photoID/thumbnail"
	RoutePhotoImage         = "/photos/:photoID/image"
	RouteCacheClear         = "/cache/clear"
	RouteFetchCancelAll     = "/fetch/cancel-all"
	RouteVersion            = "/version"
	RouteMetrics            = "/metrics"
	RouteAuthGoogleCallBack = "/auth/google/oauth2callback"
)

// Common JSON response keys
const (
	JSONKeyError   = "error"
	JSONKeyMessage = "message"
	JSONKeyDetails = "details"
	JSONKeyStatus  = "status"
)

// Common error messages used across API handlers
const (
	ErrInvalidRequest         = "Invalid request"
	ErrMissingGoogleEnv       = "Missing GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET in environment"
	ErrInvalidPhotoID         = "Invalid photo ID"
	ErrPhotoNotFound          = "Photo not found"
	ErrInvalidWidth           = "Invalid width parameter"
	ErrFailedFetchPhotos      = "Failed to fetch photos"
	ErrFailedEncodePhotos     = "Failed to encode photos"
	ErrFailedFetchImage       = "Failed to fetch image"
	ErrFetchTimedOut          = "Image fetch timed out"
	ErrAuthRequired           = "Authentication required"
	ErrInvalidSession         = "Invalid session"
	ErrFailedExchangeToken    = "Failed to exchange token"
	ErrFailedGetUserInfo      = "Failed to get user info"
	ErrFailedReadUserData     = "Failed to read user data: %s"
	ErrNoEmailInGoogleProfile = "No email in Google profile"
	ErrFailedCreateSession    = "Failed to create session"
)

// Common structured-log field names
const (
	LogFieldAddr = "addr"
	LogFieldKey  = "resource_key"
)

// Fetch and cache defaults, overridable via the configuration file.
const (
	DefaultThumbnailWidth  = 240
	DefaultCacheMaxEntries = 256
	DefaultCacheMaxBytes   = 64 << 20
	DefaultFetchTimeoutSec = 30
	DefaultPrefetchWidth   = 240
)
