package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octvision/octvision/internal/domain/diagnosis"
	"github.com/octvision/octvision/internal/platform/db"
)

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

func TestMain(m *testing.M) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL not set, skipping integration tests")
		os.Exit(0)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolOptions{DatabaseURL: connStr, PingTimeout: 10 * time.Second})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to postgres: %v\n", err)
		os.Exit(1)
	}

	globalDB = &testDB{Pool: pool, ConnStr: connStr, MigrationsDir: findMigrationsDir()}
	code := m.Run()
	pool.Close()
	os.Exit(code)
}

// findMigrationsDir locates the migrations directory relative to this test file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// uniqueSchema generates a unique schema name for test isolation.
func uniqueSchema(prefix string) string {
	short := strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	return fmt.Sprintf("it_%s_%s", prefix, short)
}

// schemaPool migrates a fresh schema and returns a pool whose connections
// use it. The schema is dropped when the test ends.
func schemaPool(t *testing.T, ctx context.Context, prefix string) *pgxpool.Pool {
	t.Helper()
	schema := uniqueSchema(prefix)

	if _, err := db.NewMigrator(globalDB.Pool, globalDB.MigrationsDir, schema).Up(ctx); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}
	pool, err := db.NewPool(ctx, db.PoolOptions{DatabaseURL: globalDB.ConnStr, MaxConns: 4, Schema: schema})
	if err != nil {
		t.Fatalf("pool for schema %s: %v", schema, err)
	}

	t.Cleanup(func() {
		pool.Close()
		drop := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgx.Identifier{schema}.Sanitize())
		if _, err := globalDB.Pool.Exec(context.Background(), drop); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
	})
	return pool
}

// repos bundles the diagnosis repositories over one pool.
type repos struct {
	scans       diagnosis.ScanRepository
	predictions diagnosis.PredictionRepository
	reports     diagnosis.HealthReportRepository
	tx          *db.TxManager
}

func newRepos(pool *pgxpool.Pool) repos {
	return repos{
		scans:       diagnosis.NewScanRepoPG(pool),
		predictions: diagnosis.NewPredictionRepoPG(pool),
		reports:     diagnosis.NewHealthReportRepoPG(pool),
		tx:          db.NewTxManager(pool),
	}
}

// createTestScan inserts a scan owned by userID with n predictions, each
// with its health report.
func createTestScan(t *testing.T, ctx context.Context, r repos, userID uuid.UUID, n int) (*diagnosis.ScanImage, []*diagnosis.Prediction) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	scan := &diagnosis.ScanImage{
		UserID:       userID,
		StoragePath:  fmt.Sprintf("%s/%s.png", userID, uuid.New()),
		ImageURL:     "memory://octscans/test.png",
		ContentType:  "image/png",
		SizeBytes:    2048,
		ImageQuality: diagnosis.ImageQualityPending,
		UploadDate:   now,
	}
	if err := r.scans.Create(ctx, scan); err != nil {
		t.Fatalf("create scan: %v", err)
	}

	preds := make([]*diagnosis.Prediction, 0, n)
	for i := 0; i < n; i++ {
		p := &diagnosis.Prediction{
			ImageID:         scan.ID,
			DiseaseType:     "DME",
			ConfidenceScore: 0.6,
			SeverityLevel:   diagnosis.SeverityMedium,
			Probabilities:   map[string]float64{"DME": 0.6, "NORMAL": 0.4},
			PredictionDate:  now.Add(time.Duration(i) * time.Second),
		}
		if err := r.predictions.Create(ctx, p); err != nil {
			t.Fatalf("create prediction: %v", err)
		}
		h := &diagnosis.HealthReport{
			PredictionID:   p.ID,
			UserID:         userID,
			FollowUpDate:   diagnosis.FollowUpDate(p.PredictionDate),
			SeverityStatus: p.SeverityLevel,
			ReportDate:     p.PredictionDate,
		}
		if err := r.reports.Create(ctx, h); err != nil {
			t.Fatalf("create health report: %v", err)
		}
		preds = append(preds, p)
	}
	return scan, preds
}

func countRows(t *testing.T, ctx context.Context, pool *pgxpool.Pool, table string, scanID uuid.UUID) int {
	t.Helper()
	queries := map[string]string{
		"oct_images":          `SELECT COUNT(*) FROM oct_images WHERE id = $1`,
		"disease_predictions": `SELECT COUNT(*) FROM disease_predictions WHERE image_id = $1`,
		"health_reports": `SELECT COUNT(*) FROM health_reports h
			JOIN disease_predictions p ON p.id = h.prediction_id WHERE p.image_id = $1`,
	}
	var n int
	if err := pool.QueryRow(ctx, queries[table], scanID).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
