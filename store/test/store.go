package test

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	// sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/murmurchat/murmur/internal/profile"
	"github.com/murmurchat/murmur/internal/version"
	"github.com/murmurchat/murmur/store"
	"github.com/murmurchat/murmur/store/db"
)

// NewTestingStore creates a migrated store for the driver named by the DRIVER
// environment variable, defaulting to sqlite.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	profile := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver, error: %+v", err)
	}

	store := store.New(dbDriver, profile)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db, error: %+v", err)
	}
	return store
}

func getUnusedPort() int {
	// Get a random unused port
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		panic(err)
	}
	defer listener.Close()

	// Get the port number
	port := listener.Addr().(*net.TCPAddr).Port
	return port
}

func getTestingProfile(t *testing.T) *profile.Profile {
	// Get a temporary directory for the test data.
	dir := t.TempDir()
	mode := "prod"
	port := getUnusedPort()
	driver := getDriverFromEnv()
	dsn := os.Getenv("DSN")

	// For containerized drivers, get DSN from container
	if dsn == "" {
		switch driver {
		case "mysql":
			dsn = GetMySQLDSN(t)
		case "postgres":
			dsn = GetPostgresDSN(t)
		default:
			dsn = filepath.Join(dir, fmt.Sprintf("murmur_%s.db", mode))
		}
	}

	return &profile.Profile{
		Mode:    mode,
		Port:    port,
		Data:    dir,
		DSN:     dsn,
		Driver:  driver,
		Version: version.GetCurrentVersion(mode),
		Secret:  "test-secret",
	}
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}
