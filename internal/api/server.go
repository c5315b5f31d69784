// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/pricing"
	"github.com/live-vibe/internal/service"
	"github.com/live-vibe/internal/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service interfaces for dependency injection and testing

// AuthTableServiceInterface defines the username/password account operations
type AuthTableServiceInterface interface {
	SignUp(ctx context.Context, in service.SignUpInput) (*models.AuthUser, error)
	SignIn(ctx context.Context, login, password string) (*models.AuthUser, error)
	GetUserByID(ctx context.Context, id int64) (*models.AuthUser, error)
	GetUserByEmail(ctx context.Context, email string) (*models.AuthUser, error)
	UpdateUser(ctx context.Context, id int64, in service.UpdateUserInput) (*models.AuthUser, error)
	DeactivateUser(ctx context.Context, id int64) error
}

// ProfileServiceInterface defines artist and promoter profile operations
type ProfileServiceInterface interface {
	SaveArtistProfile(ctx context.Context, p *models.ArtistProfile) (*models.ArtistProfile, error)
	GetArtistProfile(ctx context.Context, userID string) (*models.ArtistProfile, error)
	ListArtists(ctx context.Context, filter models.ArtistFilter) ([]*models.ArtistProfile, error)
	SavePromoterProfile(ctx context.Context, p *models.PromoterProfile) (*models.PromoterProfile, error)
	GetPromoterProfile(ctx context.Context, userID string) (*models.PromoterProfile, error)
	UploadProfilePhoto(ctx context.Context, in service.UploadPhotoInput) (string, error)
}

// ArtServiceInterface defines portfolio art operations
type ArtServiceInterface interface {
	Upload(ctx context.Context, in service.UploadArtInput) (*models.ArtPiece, error)
	List(ctx context.Context, userID string) ([]*models.ArtPiece, error)
	Delete(ctx context.Context, userID, id string) error
}

// EventServiceInterface defines event and availability operations
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, organizerID string, e *models.Event) (*models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListOrganizerEvents(ctx context.Context, organizerID string, limit, offset int) ([]*models.Event, error)
	ListOpenEvents(ctx context.Context, city string, limit, offset int) ([]*models.Event, error)
	UpdateEventStatus(ctx context.Context, organizerID, id string, status types.EventStatus) (*models.Event, error)
	SetAvailability(ctx context.Context, artistID string, a *models.ArtistAvailability) (*models.ArtistAvailability, error)
	ListAvailability(ctx context.Context, artistID string, from, to time.Time) ([]*models.ArtistAvailability, error)
	DeleteAvailability(ctx context.Context, artistID, id string) error
}

// BookingServiceInterface defines booking lifecycle and payment operations
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*models.Booking, error)
	RespondToBooking(ctx context.Context, in service.RespondInput) (*models.BookingWithEvent, error)
	CancelBooking(ctx context.Context, userID, id string) (*models.BookingWithEvent, error)
	ListBookings(ctx context.Context, userID string, role types.UserRole) ([]*models.BookingWithEvent, error)
	GetBooking(ctx context.Context, userID, id string) (*models.BookingWithEvent, error)
	QuoteBooking(ctx context.Context, userID, id string) (*pricing.BookingCharge, error)
	PayBooking(ctx context.Context, in service.PayBookingInput) (*service.PaymentResult, error)
	ListPayments(ctx context.Context, userID string) ([]*models.PaymentRecord, error)
}

// SubscriptionServiceInterface defines plan catalogue and subscription operations
type SubscriptionServiceInterface interface {
	ListPlans(ctx context.Context, planType types.PlanType) ([]*models.SubscriptionPlan, error)
	GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error)
	GetCurrentSubscription(ctx context.Context, userID string) (*models.SubscriptionWithPlan, error)
	Subscribe(ctx context.Context, in service.SubscribeInput) (*models.SubscriptionWithPlan, error)
	ChangePlan(ctx context.Context, userID, planID string) (*models.SubscriptionWithPlan, error)
	CancelSubscription(ctx context.Context, userID string) error
}

// AIStudioServiceInterface defines AI video project operations
type AIStudioServiceInterface interface {
	GetUsage(ctx context.Context, userID string) (*models.AIGenerationUsage, error)
	CreateProject(ctx context.Context, in service.CreateProjectInput) (*models.AIProject, error)
	ListProjects(ctx context.Context, userID string) ([]*models.AIProject, error)
	GetProject(ctx context.Context, userID, id string) (*models.AIProject, error)
	DeleteProject(ctx context.Context, userID, id string) error
	UploadAsset(ctx context.Context, userID, fileName, contentType string, data []byte) (string, error)
}

// NotificationServiceInterface defines in-app notification operations
type NotificationServiceInterface interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Services groups the services the API serves
type Services struct {
	AuthTable     AuthTableServiceInterface
	Profiles      ProfileServiceInterface
	Art           ArtServiceInterface
	Events        EventServiceInterface
	Bookings      BookingServiceInterface
	Subscriptions SubscriptionServiceInterface
	AIStudio      AIStudioServiceInterface
	Notifications NotificationServiceInterface
	// Health checks keyed by dependency name, e.g. "postgres" or "redis"
	Health map[string]HealthChecker
}

// Server represents the HTTP API server.
type Server struct {
	router        *mux.Router
	handler       http.Handler
	httpServer    *http.Server
	auth          *Authenticator
	rateLimiter   *RateLimiter
	authTable     AuthTableServiceInterface
	profiles      ProfileServiceInterface
	art           ArtServiceInterface
	events        EventServiceInterface
	bookings      BookingServiceInterface
	subscriptions SubscriptionServiceInterface
	aiStudio      AIStudioServiceInterface
	notifications NotificationServiceInterface
	health        map[string]HealthChecker
	config        *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host             string
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	AllowedOrigins   []string
	JWTSecret        string
	AnonymousRPS     int // Requests per second per client IP
	AuthenticatedRPS int // Requests per second per signed-in user
	// MaxUploadBytes caps multipart uploads
	MaxUploadBytes int64
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services Services) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 50 << 20
	}
	s := &Server{
		router:        mux.NewRouter(),
		auth:          NewAuthenticator(config.JWTSecret),
		rateLimiter:   NewRateLimiter(config.AnonymousRPS, config.AuthenticatedRPS),
		authTable:     services.AuthTable,
		profiles:      services.Profiles,
		art:           services.Art,
		events:        services.Events,
		bookings:      services.Bookings,
		subscriptions: services.Subscriptions,
		aiStudio:      services.AIStudio,
		notifications: services.Notifications,
		health:        services.Health,
		config:        config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(s.auth.Middleware)
	s.router.Use(RateLimitMiddleware(s.rateLimiter)) // after auth so users get their own bucket
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	// CORS wraps the router so preflight requests never hit method matching
	s.handler = CORSMiddleware(s.config.AllowedOrigins)(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Username/password accounts
	api.HandleFunc("/auth-table/signup", s.handleAuthSignUp).Methods("POST")
	api.HandleFunc("/auth-table/signin", s.handleAuthSignIn).Methods("POST")
	api.HandleFunc("/auth-table/users/{id:[0-9]+}", s.handleAuthGetUser).Methods("GET")
	api.HandleFunc("/auth-table/users", s.handleAuthGetUserByEmail).Methods("GET").Queries("email", "{email}")
	api.HandleFunc("/auth-table/users/{id:[0-9]+}", s.handleAuthUpdateUser).Methods("PUT")
	api.HandleFunc("/auth-table/users/{id:[0-9]+}", s.handleAuthDeactivateUser).Methods("DELETE")

	// Profiles
	api.HandleFunc("/profiles/artists", s.handleListArtists).Methods("GET")
	api.HandleFunc("/profiles/artist", requireAuth(s.handleSaveArtistProfile)).Methods("PUT")
	api.HandleFunc("/profiles/artist/{userId}", s.handleGetArtistProfile).Methods("GET")
	api.HandleFunc("/profiles/promoter", requireAuth(s.handleSavePromoterProfile)).Methods("PUT")
	api.HandleFunc("/profiles/promoter/{userId}", s.handleGetPromoterProfile).Methods("GET")
	api.HandleFunc("/profiles/photo", requireAuth(s.handleUploadProfilePhoto)).Methods("POST")

	// Art portfolio
	api.HandleFunc("/art", requireAuth(s.handleUploadArt)).Methods("POST")
	api.HandleFunc("/art", requireAuth(s.handleListOwnArt)).Methods("GET")
	api.HandleFunc("/art/user/{userId}", s.handleListUserArt).Methods("GET")
	api.HandleFunc("/art/{id}", requireAuth(s.handleDeleteArt)).Methods("DELETE")

	// Events
	api.HandleFunc("/events", requireAuth(s.handleCreateEvent)).Methods("POST")
	api.HandleFunc("/events", s.handleListOpenEvents).Methods("GET")
	api.HandleFunc("/events/mine", requireAuth(s.handleListMyEvents)).Methods("GET")
	api.HandleFunc("/events/{id}", s.handleGetEvent).Methods("GET")
	api.HandleFunc("/events/{id}/status", requireAuth(s.handleUpdateEventStatus)).Methods("PUT")

	// Artist availability
	api.HandleFunc("/availability", requireAuth(s.handleSetAvailability)).Methods("PUT")
	api.HandleFunc("/availability/{artistId}", s.handleListAvailability).Methods("GET")
	api.HandleFunc("/availability/{id}", requireAuth(s.handleDeleteAvailability)).Methods("DELETE")

	// Bookings and payments
	api.HandleFunc("/bookings", requireAuth(s.handleCreateBooking)).Methods("POST")
	api.HandleFunc("/bookings", requireAuth(s.handleListBookings)).Methods("GET")
	api.HandleFunc("/bookings/{id}", requireAuth(s.handleGetBooking)).Methods("GET")
	api.HandleFunc("/bookings/{id}/respond", requireAuth(s.handleRespondToBooking)).Methods("POST")
	api.HandleFunc("/bookings/{id}/cancel", requireAuth(s.handleCancelBooking)).Methods("POST")
	api.HandleFunc("/bookings/{id}/quote", requireAuth(s.handleQuoteBooking)).Methods("GET")
	api.HandleFunc("/bookings/{id}/pay", requireAuth(s.handlePayBooking)).Methods("POST")
	api.HandleFunc("/payments", requireAuth(s.handleListPayments)).Methods("GET")

	// Plans and subscriptions
	api.HandleFunc("/plans", s.handleListPlans).Methods("GET")
	api.HandleFunc("/plans/{id}", s.handleGetPlan).Methods("GET")
	api.HandleFunc("/subscription", requireAuth(s.handleGetSubscription)).Methods("GET")
	api.HandleFunc("/subscription", requireAuth(s.handleSubscribe)).Methods("POST")
	api.HandleFunc("/subscription/plan", requireAuth(s.handleChangePlan)).Methods("PUT")
	api.HandleFunc("/subscription", requireAuth(s.handleCancelSubscription)).Methods("DELETE")

	// AI studio
	api.HandleFunc("/ai/usage", requireAuth(s.handleGetAIUsage)).Methods("GET")
	api.HandleFunc("/ai/projects", requireAuth(s.handleCreateAIProject)).Methods("POST")
	api.HandleFunc("/ai/projects", requireAuth(s.handleListAIProjects)).Methods("GET")
	api.HandleFunc("/ai/projects/{id}", requireAuth(s.handleGetAIProject)).Methods("GET")
	api.HandleFunc("/ai/projects/{id}", requireAuth(s.handleDeleteAIProject)).Methods("DELETE")
	api.HandleFunc("/ai/assets", requireAuth(s.handleUploadAIAsset)).Methods("POST")

	// Notifications
	api.HandleFunc("/notifications", requireAuth(s.handleListNotifications)).Methods("GET")
	api.HandleFunc("/notifications/read", requireAuth(s.handleMarkAllNotificationsRead)).Methods("POST")
	api.HandleFunc("/notifications/{id}/read", requireAuth(s.handleMarkNotificationRead)).Methods("POST")
}

// handleHealth reports the state of each backing dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.health))
	status, code := "healthy", http.StatusOK
	for name, checker := range s.health {
		if err := checker.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).WithError(err).Warnf("health check %s failed", name)
			checks[name] = "unavailable"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	respondJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "live-vibe",
		"checks":  checks,
	})
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// RateLimiter exposes the limiter so the caller can prune idle entries.
func (s *Server) RateLimiter() *RateLimiter {
	return s.rateLimiter
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
