package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/pricing"
	"github.com/live-vibe/internal/service"
	"github.com/live-vibe/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

// Mock services for testing. Each embeds its interface so unused methods
// panic, which the recovery middleware turns into a 500.

type mockAuthTable struct {
	AuthTableServiceInterface
	signUpFunc func(ctx context.Context, in service.SignUpInput) (*models.AuthUser, error)
	signInFunc func(ctx context.Context, login, password string) (*models.AuthUser, error)
	getFunc    func(ctx context.Context, id int64) (*models.AuthUser, error)
}

func (m *mockAuthTable) SignUp(ctx context.Context, in service.SignUpInput) (*models.AuthUser, error) {
	return m.signUpFunc(ctx, in)
}

func (m *mockAuthTable) SignIn(ctx context.Context, login, password string) (*models.AuthUser, error) {
	return m.signInFunc(ctx, login, password)
}

func (m *mockAuthTable) GetUserByID(ctx context.Context, id int64) (*models.AuthUser, error) {
	return m.getFunc(ctx, id)
}

type mockProfiles struct {
	ProfileServiceInterface
	saveArtistFunc  func(ctx context.Context, p *models.ArtistProfile) (*models.ArtistProfile, error)
	listArtistsFunc func(ctx context.Context, filter models.ArtistFilter) ([]*models.ArtistProfile, error)
	uploadFunc      func(ctx context.Context, in service.UploadPhotoInput) (string, error)
}

func (m *mockProfiles) SaveArtistProfile(ctx context.Context, p *models.ArtistProfile) (*models.ArtistProfile, error) {
	return m.saveArtistFunc(ctx, p)
}

func (m *mockProfiles) ListArtists(ctx context.Context, filter models.ArtistFilter) ([]*models.ArtistProfile, error) {
	return m.listArtistsFunc(ctx, filter)
}

func (m *mockProfiles) UploadProfilePhoto(ctx context.Context, in service.UploadPhotoInput) (string, error) {
	return m.uploadFunc(ctx, in)
}

type mockArt struct {
	ArtServiceInterface
	uploadFunc func(ctx context.Context, in service.UploadArtInput) (*models.ArtPiece, error)
	deleteFunc func(ctx context.Context, userID, id string) error
}

func (m *mockArt) Upload(ctx context.Context, in service.UploadArtInput) (*models.ArtPiece, error) {
	return m.uploadFunc(ctx, in)
}

func (m *mockArt) Delete(ctx context.Context, userID, id string) error {
	return m.deleteFunc(ctx, userID, id)
}

type mockEvents struct {
	EventServiceInterface
	listOpenFunc         func(ctx context.Context, city string, limit, offset int) ([]*models.Event, error)
	listAvailabilityFunc func(ctx context.Context, artistID string, from, to time.Time) ([]*models.ArtistAvailability, error)
	updateStatusFunc     func(ctx context.Context, organizerID, id string, status types.EventStatus) (*models.Event, error)
}

func (m *mockEvents) ListOpenEvents(ctx context.Context, city string, limit, offset int) ([]*models.Event, error) {
	return m.listOpenFunc(ctx, city, limit, offset)
}

func (m *mockEvents) ListAvailability(ctx context.Context, artistID string, from, to time.Time) ([]*models.ArtistAvailability, error) {
	return m.listAvailabilityFunc(ctx, artistID, from, to)
}

func (m *mockEvents) UpdateEventStatus(ctx context.Context, organizerID, id string, status types.EventStatus) (*models.Event, error) {
	return m.updateStatusFunc(ctx, organizerID, id, status)
}

type mockBookings struct {
	BookingServiceInterface
	createFunc  func(ctx context.Context, in service.CreateBookingInput) (*models.Booking, error)
	listFunc    func(ctx context.Context, userID string, role types.UserRole) ([]*models.BookingWithEvent, error)
	respondFunc func(ctx context.Context, in service.RespondInput) (*models.BookingWithEvent, error)
	quoteFunc   func(ctx context.Context, userID, id string) (*pricing.BookingCharge, error)
	payFunc     func(ctx context.Context, in service.PayBookingInput) (*service.PaymentResult, error)
}

func (m *mockBookings) CreateBooking(ctx context.Context, in service.CreateBookingInput) (*models.Booking, error) {
	return m.createFunc(ctx, in)
}

func (m *mockBookings) ListBookings(ctx context.Context, userID string, role types.UserRole) ([]*models.BookingWithEvent, error) {
	return m.listFunc(ctx, userID, role)
}

func (m *mockBookings) RespondToBooking(ctx context.Context, in service.RespondInput) (*models.BookingWithEvent, error) {
	return m.respondFunc(ctx, in)
}

func (m *mockBookings) QuoteBooking(ctx context.Context, userID, id string) (*pricing.BookingCharge, error) {
	return m.quoteFunc(ctx, userID, id)
}

func (m *mockBookings) PayBooking(ctx context.Context, in service.PayBookingInput) (*service.PaymentResult, error) {
	return m.payFunc(ctx, in)
}

type mockSubscriptions struct {
	SubscriptionServiceInterface
	listPlansFunc func(ctx context.Context, planType types.PlanType) ([]*models.SubscriptionPlan, error)
	subscribeFunc func(ctx context.Context, in service.SubscribeInput) (*models.SubscriptionWithPlan, error)
	cancelFunc    func(ctx context.Context, userID string) error
}

func (m *mockSubscriptions) ListPlans(ctx context.Context, planType types.PlanType) ([]*models.SubscriptionPlan, error) {
	return m.listPlansFunc(ctx, planType)
}

func (m *mockSubscriptions) Subscribe(ctx context.Context, in service.SubscribeInput) (*models.SubscriptionWithPlan, error) {
	return m.subscribeFunc(ctx, in)
}

func (m *mockSubscriptions) CancelSubscription(ctx context.Context, userID string) error {
	return m.cancelFunc(ctx, userID)
}

type mockAIStudio struct {
	AIStudioServiceInterface
	usageFunc  func(ctx context.Context, userID string) (*models.AIGenerationUsage, error)
	createFunc func(ctx context.Context, in service.CreateProjectInput) (*models.AIProject, error)
	uploadFunc func(ctx context.Context, userID, fileName, contentType string, data []byte) (string, error)
}

func (m *mockAIStudio) GetUsage(ctx context.Context, userID string) (*models.AIGenerationUsage, error) {
	return m.usageFunc(ctx, userID)
}

func (m *mockAIStudio) CreateProject(ctx context.Context, in service.CreateProjectInput) (*models.AIProject, error) {
	return m.createFunc(ctx, in)
}

func (m *mockAIStudio) UploadAsset(ctx context.Context, userID, fileName, contentType string, data []byte) (string, error) {
	return m.uploadFunc(ctx, userID, fileName, contentType, data)
}

type mockNotifications struct {
	NotificationServiceInterface
	listFunc    func(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error)
	markAllFunc func(ctx context.Context, userID string) (int64, error)
}

func (m *mockNotifications) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	return m.listFunc(ctx, userID, unreadOnly, limit)
}

func (m *mockNotifications) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return m.markAllFunc(ctx, userID)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func testConfig() *ServerConfig {
	return &ServerConfig{
		Host:             "localhost",
		Port:             "0",
		AllowedOrigins:   []string{"https://app.livevibe.test"},
		JWTSecret:        testSecret,
		AnonymousRPS:     1000,
		AuthenticatedRPS: 1000,
		MaxUploadBytes:   1 << 20,
	}
}

// createTestServer creates a server whose services are all empty mocks
func createTestServer(services Services) *Server {
	if services.AuthTable == nil {
		services.AuthTable = &mockAuthTable{}
	}
	if services.Profiles == nil {
		services.Profiles = &mockProfiles{}
	}
	if services.Art == nil {
		services.Art = &mockArt{}
	}
	if services.Events == nil {
		services.Events = &mockEvents{}
	}
	if services.Bookings == nil {
		services.Bookings = &mockBookings{}
	}
	if services.Subscriptions == nil {
		services.Subscriptions = &mockSubscriptions{}
	}
	if services.AIStudio == nil {
		services.AIStudio = &mockAIStudio{}
	}
	if services.Notifications == nil {
		services.Notifications = &mockNotifications{}
	}
	return NewServer(testConfig(), services)
}

func signToken(t *testing.T, userID, userType string, ttl time.Duration) string {
	t.Helper()
	return signClaims(t, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"role":  "authenticated",
		"exp":   time.Now().Add(ttl).Unix(),
		"app_metadata": map[string]interface{}{
			"provider":  "email",
			"user_type": userType,
		},
	})
}

func signClaims(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

// do sends a request through the full handler chain
func do(t *testing.T, s *Server, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ServiceError {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error
}

// TestHealthEndpoint tests the health check endpoint
func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(Services{Health: map[string]HealthChecker{
		"postgres": pingFunc(func(context.Context) error { return nil }),
	}})

	w := do(t, server, "GET", "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, map[string]interface{}{"postgres": "ok"}, response["checks"])
}

func TestHealthEndpoint_Degraded(t *testing.T) {
	server := createTestServer(Services{Health: map[string]HealthChecker{
		"postgres": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}})

	w := do(t, server, "GET", "/health", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "degraded", response["status"])
	assert.Equal(t, "unavailable", response["checks"].(map[string]interface{})["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	server := createTestServer(Services{})

	w := do(t, server, "GET", "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_ProtectedRouteRequiresToken(t *testing.T) {
	server := createTestServer(Services{})

	w := do(t, server, "GET", "/api/subscription", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperrors.CodeUnauthorized, decodeError(t, w).Code)
}

func TestAuth_RejectsBadTokens(t *testing.T) {
	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("a-different-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + otherKey},
		{"expired", "Bearer " + signToken(t, "u1", "artist", -time.Hour)},
		{"no expiry", "Bearer " + noExpiry},
	}

	server := createTestServer(Services{Subscriptions: &mockSubscriptions{
		listPlansFunc: func(ctx context.Context, planType types.PlanType) ([]*models.SubscriptionPlan, error) {
			return nil, nil
		},
	}})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/plans", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthenticator_Verify(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	identity, err := auth.Verify(signToken(t, "org-1", "promoter", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "org-1", identity.UserID)
	assert.Equal(t, "org-1@example.com", identity.Email)
	assert.Equal(t, types.RolePromoter, identity.Role)

	identity, err = auth.Verify(signToken(t, "a-1", "", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, types.RoleArtist, identity.Role, "role defaults to artist")
}

func TestAuthenticator_VerifyPrefersAppMetadata(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	exp := time.Now().Add(time.Hour).Unix()

	identity, err := auth.Verify(signClaims(t, jwt.MapClaims{
		"sub":           "a-1",
		"exp":           exp,
		"app_metadata":  map[string]interface{}{"user_type": "artist"},
		"user_metadata": map[string]interface{}{"user_type": "promoter"},
	}))
	require.NoError(t, err)
	assert.Equal(t, types.RoleArtist, identity.Role, "user_metadata cannot override app_metadata")

	identity, err = auth.Verify(signClaims(t, jwt.MapClaims{
		"sub":           "org-2",
		"exp":           exp,
		"app_metadata":  map[string]interface{}{"provider": "email"},
		"user_metadata": map[string]interface{}{"user_type": "promoter"},
	}))
	require.NoError(t, err)
	assert.Equal(t, types.RolePromoter, identity.Role, "user_metadata is the fallback")

	identity, err = auth.Verify(signClaims(t, jwt.MapClaims{
		"sub":          "a-2",
		"exp":          exp,
		"app_metadata": map[string]interface{}{"user_type": "admin"},
	}))
	require.NoError(t, err)
	assert.Equal(t, types.RoleArtist, identity.Role, "unknown roles are ignored")
}

func TestCORSHeaders(t *testing.T) {
	server := createTestServer(Services{})

	req := httptest.NewRequest("OPTIONS", "/api/bookings", nil)
	req.Header.Set("Origin", "https://app.livevibe.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.livevibe.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest("OPTIONS", "/api/bookings", nil)
	req.Header.Set("Origin", "https://evil.test")
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDHeader(t *testing.T) {
	server := createTestServer(Services{})

	w := do(t, server, "GET", "/health", nil, "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	// GetPlan is not implemented by the mock and panics
	server := createTestServer(Services{})

	w := do(t, server, "GET", "/api/plans/artist_pro", nil, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, w).Code)
}

func TestCompressionMiddleware(t *testing.T) {
	server := createTestServer(Services{Subscriptions: &mockSubscriptions{
		listPlansFunc: func(ctx context.Context, planType types.PlanType) ([]*models.SubscriptionPlan, error) {
			return []*models.SubscriptionPlan{{ID: "artist_starter", Name: "Starter"}}, nil
		},
	}})

	req := httptest.NewRequest("GET", "/api/plans", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(body), "artist_starter")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AnonymousRPS = 1
	server := NewServer(cfg, Services{Subscriptions: &mockSubscriptions{
		listPlansFunc: func(ctx context.Context, planType types.PlanType) ([]*models.SubscriptionPlan, error) {
			return nil, nil
		},
	}})

	for i := 0; i < 10; i++ {
		w := do(t, server, "GET", "/api/plans", nil, "")
		require.Equal(t, http.StatusOK, w.Code, "request %d within burst", i)
	}

	w := do(t, server, "GET", "/api/plans", nil, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, apperrors.CodeRateLimitExceeded, decodeError(t, w).Code)

	// signed-in users have their own bucket
	w = do(t, server, "GET", "/api/plans", nil, signToken(t, "u1", "artist", time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.getLimiter("ip:1.2.3.4", false)
	now = now.Add(5 * time.Minute)
	rl.getLimiter("user:u1", true)
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, rl.Prune())
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "user:u1")
}
