package testsupport

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"slimmers/internal"
	"slimmers/internal/config"
	"slimmers/internal/database"
	"slimmers/internal/events"
	"slimmers/internal/users"
)

// SessionCookieName matches the login session cookie configured in routes.go: cfg.AppName + "_session".
const SessionCookieName = "slimmers_session"

// testDBCache caches test databases by root test name so that subtests share one database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager.
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a named in-memory database with every model migrated.
// cache=shared lets the pool's connections see the same database; the pool is
// capped at one connection so concurrent readers queue instead of locking.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("testsupport: failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB.Close()
	})

	return db
}

// SetupTestDBManager creates a test DB manager and switches the config to the test environment.
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()

	cfg := config.GetConfig()
	cfg.Environment = config.Test

	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanTables deletes every row of the given tables and resets their sequences.
func CleanTables(db *gorm.DB, tables ...string) {
	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestUser creates a user with a bcrypt-hashed password and the given role.
func CreateTestUser(t *testing.T, db *gorm.DB, email, password, role string) *users.User {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &users.User{
		Email:             email,
		Name:              strings.Split(email, "@")[0],
		EncryptedPassword: string(hashedPassword),
		Role:              role,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// EventSeed describes an event to insert directly, bypassing ingestion so the
// timestamp can be chosen. Empty strings become NULL columns except Subject,
// which is only NULL when NullSubject is set.
type EventSeed struct {
	Kind          events.Kind
	Subject       string
	NullSubject   bool
	Tag           string
	SessionID     string
	ExerciseName  string
	EquipmentType string
	OccurredAt    time.Time
}

// CreateEvent inserts one event row.
func CreateEvent(t *testing.T, db *gorm.DB, seed EventSeed) *events.Event {
	t.Helper()

	if seed.Kind == "" {
		seed.Kind = events.KindPageVisit
	}
	if seed.SessionID == "" {
		seed.SessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	if seed.OccurredAt.IsZero() {
		seed.OccurredAt = time.Now().UTC()
	}

	event := &events.Event{
		Kind:           seed.Kind,
		ExerciseName:   optional(seed.ExerciseName),
		EquipmentType:  optional(seed.EquipmentType),
		AcquisitionTag: optional(seed.Tag),
		SessionID:      seed.SessionID,
		OccurredAt:     seed.OccurredAt.UTC(),
	}
	if !seed.NullSubject {
		subject := seed.Subject
		event.Subject = &subject
	}

	require.NoError(t, db.Create(event).Error)
	return event
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := internal.NewServerConfig(appConfig)
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	cfg.StaticDirectory = appConfig.PublicDirectory
	cfg.StaticPrefix = appConfig.PublicAssetsUrlPrefix
	cfg.TemplatesDirectory = appConfig.PublicDirectory
	cfg.EnableSecFetchSite = true
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}

// SessionCookie returns a "name=value" cookie that authenticates requests as userID.
// The cookie is minted by a session manager built with the same settings as the app's.
func SessionCookie(t *testing.T, userID uint) string {
	t.Helper()

	sessions := internal.NewSessionManager(config.GetConfig())
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if err := sessions.SetSession(c, userID); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookieName {
			return fmt.Sprintf("%s=%s", cookie.Name, cookie.Value)
		}
	}
	t.Fatalf("testsupport: no %s cookie issued", SessionCookieName)
	return ""
}

// NewJSONRequest builds a browser-like request the way the frontend sends it.
func NewJSONRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 Test Browser")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("X-Forwarded-For", "203.0.113.10")
	return req
}
