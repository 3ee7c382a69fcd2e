package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	return db
}

func TestOperationName(t *testing.T) {
	tests := []struct {
		op, sql, want string
	}{
		{"create", "", "INSERT"},
		{"query", "", "SELECT"},
		{"update", "", "UPDATE"},
		{"delete", "", "DELETE"},
		{"raw", "  select 1", "SELECT"},
		{"raw", "delete from clients", "DELETE"},
		{"row", "CREATE TABLE x", "OTHER"},
		{"raw", "", "OTHER"},
	}
	for _, tt := range tests {
		t.Run(tt.op+"/"+tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, operationName(tt.op, tt.sql))
		})
	}
}

func TestDBMetrics_RecordsQueries(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	db := openSQLite(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	m, err := NewDBMetrics(provider.Meter("db.client"), sqlDB, DBMetricsConfig{Enabled: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, m.config.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, m.config.PoolStatsInterval)
	require.NoError(t, db.Use(m))

	var n int
	require.NoError(t, db.Raw("SELECT 1").Scan(&n).Error)
	assert.Equal(t, 1, n)

	m.RecordQuery(context.Background(), "SELECT", "", time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.StartPoolStatsCollection(ctx)
	m.Stop()
	m.Stop()
	cancel()

	data := collect(t, reader)
	assert.GreaterOrEqual(t, sumOf(data["db_query_total"]), int64(2))
	assert.Equal(t, int64(1), sumOf(data["db_slow_query_total"]))
	_, ok := data["db_pool_connections"].(metricdata.Gauge[int64])
	assert.True(t, ok)
}

func TestRegisterDBMetrics_DisabledProvider(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{}, zap.NewNop())
	require.NoError(t, err)

	m, err := RegisterDBMetrics(openSQLite(t), mp, DBMetricsConfig{Enabled: true}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDBTracingPlugin(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		p := NewDBTracingPlugin(DBTracingConfig{}, zap.NewNop())
		assert.Equal(t, "postgresql", p.config.DBSystem)
		assert.NoError(t, p.Register(openSQLite(t)))
	})

	t.Run("records statement spans", func(t *testing.T) {
		sr := setupTestTracer(t)

		mockDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{Logger: gormlogger.Discard})
		require.NoError(t, err)

		p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour}, zap.NewNop())
		require.NoError(t, p.Register(db))

		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

		ctx, span := StartSpan(context.Background(), "parent")
		var n int
		require.NoError(t, db.WithContext(ctx).Raw("SELECT 1").Scan(&n).Error)
		span.End()

		assert.Equal(t, 1, n)
		require.NoError(t, mock.ExpectationsWereMet())
		assert.GreaterOrEqual(t, len(sr.Ended()), 2)
	})
}
