package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-eval-service/internal/app"
	"quiz-eval-service/internal/domain"
	"quiz-eval-service/internal/infra/postgres"
	pgmigrations "quiz-eval-service/internal/infra/postgres/migrations"
	infraredis "quiz-eval-service/internal/infra/redis"
)

// scriptedProvider answers from a fixed sequence of letters.
type scriptedProvider struct {
	letters []string
	next    int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Answer(context.Context, domain.Question) (domain.Answer, error) {
	letter := p.letters[p.next%len(p.letters)]
	p.next++
	return domain.Answer{Letter: letter, ElapsedMs: int64(10 * p.next)}, nil
}

func TestPostgresEvaluateAndReport(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, cleanup := startPostgres(t, ctx)
	defer cleanup()
	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	runRoundTrip(t, ctx, postgres.NewRecordStore(pool))
}

func TestRedisEvaluateAndReport(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, cleanup := startRedis(t, ctx)
	defer cleanup()

	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	runRoundTrip(t, ctx, infraredis.NewRecordStore(client, 5*time.Minute))
}

func runRoundTrip(t *testing.T, ctx context.Context, store app.RecordStore) {
	t.Helper()
	provider := &scriptedProvider{letters: []string{"a", "b", "a"}}
	hub := app.NewHub(16, nil, nil)
	_, events, cancel := hub.Subscribe()
	defer cancel()
	<-events

	evaluator := app.NewEvaluator(app.ModeDelegated, provider, store, hub)
	for _, d := range []string{"CompSec", "CompSec", "History"} {
		_, err := evaluator.Evaluate(ctx, domain.Request{
			Question:      "Which letter?",
			A:             "one",
			B:             "two",
			C:             "three",
			D:             "four",
			CorrectAnswer: "a",
			Domain:        d,
		})
		if err != nil {
			t.Fatalf("evaluate %s: %v", d, err)
		}
	}

	saved := 0
	for len(events) > 0 {
		if ev := <-events; ev.Type == domain.EventDB {
			saved++
		}
	}
	if saved != 3 {
		t.Fatalf("expected 3 db events, got %d", saved)
	}

	reporter := app.NewReporter(store)
	compsec, err := reporter.Domain(ctx, "CompSec")
	if err != nil {
		t.Fatalf("domain report: %v", err)
	}
	if compsec.Correct != 1 || compsec.Incorrect != 1 || compsec.Total != 2 {
		t.Fatalf("unexpected CompSec tally %+v", compsec.Tally)
	}
	if len(compsec.ResponseTimes) != 2 || compsec.ResponseTimes[0] != 10 || compsec.ResponseTimes[1] != 20 {
		t.Fatalf("unexpected CompSec response times %v", compsec.ResponseTimes)
	}

	overall, err := reporter.Overall(ctx)
	if err != nil {
		t.Fatalf("overall report: %v", err)
	}
	if overall.Overall != (domain.Tally{Correct: 2, Incorrect: 1, Total: 3}) {
		t.Fatalf("unexpected overall tally %+v", overall.Overall)
	}
	if got := overall.ResponseTimes; len(got) != 3 || got[2] != 30 {
		t.Fatalf("expected History latency last, got %v", got)
	}
	if overall.ByDomain[domain.Social].Total != 0 {
		t.Fatalf("expected empty Social tally, got %+v", overall.ByDomain[domain.Social])
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	return fmt.Sprintf("redis://%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
