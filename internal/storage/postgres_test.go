package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/live-vibe/internal/config"
	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "live_vibe_test",
		User:           "livevibe",
		Password:       "livevibe_dev_password",
		SSLMode:        "disable",
		MaxConnections: 5,
	}
}

// setupTestDB connects to a local Postgres and applies migrations, skipping
// the test when no database is reachable.
func setupTestDB(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(cfg.PostgresURL(), "../../"+DefaultMigrationsPath); err != nil {
		t.Skipf("Skipping test - migrations failed: %v", err)
	}
	return db
}

func TestNewPostgresDB(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext(t)
	assert.NoError(t, db.Ping(ctx))
	assert.NotNil(t, db.Pool())
}

func TestPostgresDB_WithTxRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext(t)
	repo := NewNotificationRepository(db)
	userID := "6f1c1c52-3f43-4f59-9d59-a1e4c1f7a001"

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, &models.Notification{UserID: userID, Type: "test", Title: "t", Message: "m"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := repo.ListByUser(ctx, userID, false, 10)
	require.NoError(t, err)
	for _, n := range list {
		assert.NotEqual(t, "test", n.Type)
	}
}

func TestBookingRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext(t)

	events := NewEventRepository(db)
	bookings := NewBookingRepository(db)

	organizer := "6f1c1c52-3f43-4f59-9d59-a1e4c1f7a101"
	artist := "6f1c1c52-3f43-4f59-9d59-a1e4c1f7a102"

	event := &models.Event{
		OrganizerID: organizer,
		Title:       "Rooftop Sessions",
		EventDate:   time.Now().Add(72 * time.Hour),
		VenueName:   "Skyline",
		City:        "Austin",
		Status:      types.EventStatusPublished,
	}
	require.NoError(t, events.Create(ctx, event))

	b := &models.Booking{EventID: event.ID, ArtistID: artist, OrganizerID: organizer, ProposedFee: 40000}
	require.NoError(t, bookings.Create(ctx, b))

	exists, err := bookings.ExistsActive(ctx, event.ID, artist)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, bookings.UpdateResponse(ctx, b.ID, types.BookingStatusAccepted, 45000, nil))

	// a second response is rejected because the booking is no longer pending
	err = bookings.UpdateResponse(ctx, b.ID, types.BookingStatusDeclined, 0, nil)
	assert.Equal(t, apperrors.CodeConflict, apperrors.Categorize(err).Code)

	require.NoError(t, bookings.MarkPaid(ctx, b.ID, "sq_pay_1", time.Now()))
	err = bookings.MarkPaid(ctx, b.ID, "sq_pay_2", time.Now())
	assert.Equal(t, apperrors.CodeConflict, apperrors.Categorize(err).Code)

	got, err := bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, int64(45000), got.Fee())
	assert.Equal(t, "Rooftop Sessions", got.EventTitle)
}

func TestUsageRepository_TryIncrement(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext(t)
	repo := NewUsageRepository(db)

	user := "6f1c1c52-3f43-4f59-9d59-a1e4c1f7a201"
	month := models.MonthYear(time.Now())

	_, err := repo.GetOrCreate(ctx, user, month, 1)
	require.NoError(t, err)

	ok, err := repo.TryIncrement(ctx, user, month)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TryIncrement(ctx, user, month)
	require.NoError(t, err)
	assert.False(t, ok, "limit of one generation must hold")

	require.NoError(t, repo.Refund(ctx, user, month))
	ok, err = repo.TryIncrement(ctx, user, month)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthUserRepository_Duplicates(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext(t)
	repo := NewAuthUserRepository(db)

	suffix := time.Now().Format("150405.000000")
	u := &models.AuthUser{UserName: "nova" + suffix, Email: "nova" + suffix + "@example.com", PasswordHash: "x", Module: "artist", IsActive: true}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotZero(t, u.ID)

	dup := &models.AuthUser{UserName: "other" + suffix, Email: u.Email, PasswordHash: "x", Module: "artist", IsActive: true}
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, "An account with this email already exists", apperrors.Categorize(err).Message)

	got, err := repo.GetByLogin(ctx, u.UserName)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestAIProjectRepository_ListStaleSubmissions(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext(t)
	repo := NewAIProjectRepository(db)
	user := "6f1c1c52-3f43-4f59-9d59-a1e4c1f7a301"

	orphan := &models.AIProject{UserID: user, Title: "Orphan", ProjectType: types.ProjectMusicVideo, Lyrics: "la", Status: types.ProjectProcessing}
	require.NoError(t, repo.Create(ctx, orphan))
	submitted := &models.AIProject{UserID: user, Title: "Submitted", ProjectType: types.ProjectMusicVideo, Lyrics: "la", Status: types.ProjectProcessing}
	require.NoError(t, repo.Create(ctx, submitted))
	require.NoError(t, repo.SetTask(ctx, submitted.ID, "task-stale-1", "prompt", "negative"))

	ids := func(before time.Time) []string {
		list, err := repo.ListStaleSubmissions(ctx, before, 100)
		require.NoError(t, err)
		var out []string
		for _, p := range list {
			if p.UserID == user {
				out = append(out, p.ID)
			}
		}
		return out
	}

	assert.Empty(t, ids(time.Now().Add(-time.Hour)), "recent rows are not stale")
	assert.Equal(t, []string{orphan.ID}, ids(time.Now().Add(time.Minute)))

	require.NoError(t, repo.MarkFailed(ctx, orphan.ID, "abandoned"))
	assert.Empty(t, ids(time.Now().Add(time.Minute)))
}

func TestSubscriptionRepository_RenewAndExpire(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext(t)
	repo := NewSubscriptionRepository(db)

	ended := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	billed := &models.UserSubscription{
		UserID:               "6f1c1c52-3f43-4f59-9d59-a1e4c1f7a401",
		PlanID:               "artist_pro",
		Status:               types.SubscriptionActive,
		BillingCycle:         types.BillingMonthly,
		CurrentPeriodStart:   ended.AddDate(0, -1, 0),
		CurrentPeriodEnd:     ended,
		SquareSubscriptionID: func() *string { id := "sqsub-it-1"; return &id }(),
	}
	prepaid := &models.UserSubscription{
		UserID:             "6f1c1c52-3f43-4f59-9d59-a1e4c1f7a402",
		PlanID:             "artist_pro",
		Status:             types.SubscriptionActive,
		BillingCycle:       types.BillingMonthly,
		CurrentPeriodStart: ended.AddDate(0, -1, 0),
		CurrentPeriodEnd:   ended,
	}
	require.NoError(t, repo.Upsert(ctx, billed))
	require.NoError(t, repo.Upsert(ctx, prepaid))

	_, err := repo.RenewDue(ctx, time.Now(), 1000)
	require.NoError(t, err)
	_, err = repo.ExpireDue(ctx, time.Now(), 1000)
	require.NoError(t, err)

	got, err := repo.GetByUser(ctx, billed.UserID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionActive, got.Status)
	assert.True(t, got.CurrentPeriodStart.Equal(ended))
	assert.True(t, got.CurrentPeriodEnd.Equal(ended.AddDate(0, 1, 0)))

	got, err = repo.GetByUser(ctx, prepaid.UserID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionExpired, got.Status)
}
