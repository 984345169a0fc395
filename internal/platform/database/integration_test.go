package database_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobpg "github.com/jinford/profile-scraper/internal/module/job/adapter/pg"
	jobdomain "github.com/jinford/profile-scraper/internal/module/job/domain"
	scrapingpg "github.com/jinford/profile-scraper/internal/module/scraping/adapter/pg"
	scrapingapp "github.com/jinford/profile-scraper/internal/module/scraping/application"
	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
	scrapingtesting "github.com/jinford/profile-scraper/internal/module/scraping/testing"
	"github.com/jinford/profile-scraper/internal/platform/database"
)

var testDB *database.Database

func TestMain(m *testing.M) {
	os.Exit(runWithPostgres(m))
}

// runWithPostgres はPostgreSQLコンテナを起動してテストを実行します
// Dockerが利用できない場合、統合テストはスキップされます
func runWithPostgres(m *testing.M) int {
	pool, err := dockertest.NewPool("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "docker unavailable: %v\n", err)
		return m.Run()
	}
	if err := pool.Client.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "docker unavailable: %v\n", err)
		return m.Run()
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=scraper",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=scraper",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		return m.Run()
	}
	defer func() {
		if err := pool.Purge(resource); err != nil {
			fmt.Fprintf(os.Stderr, "failed to purge postgres: %v\n", err)
		}
	}()
	_ = resource.Expire(300)

	var port int
	fmt.Sscanf(resource.GetPort("5432/tcp"), "%d", &port)
	params := database.ConnectionParams{
		Host:     "localhost",
		Port:     port,
		User:     "scraper",
		Password: "secret",
		DBName:   "scraper",
		SSLMode:  "disable",
	}

	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		db, err := database.New(context.Background(), params)
		if err != nil {
			return err
		}
		testDB = db
		return nil
	}); err != nil {
		fmt.Fprintf(os.Stderr, "postgres did not become ready: %v\n", err)
		return m.Run()
	}
	defer testDB.Close()

	if err := database.Migrate(context.Background(), testDB.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		return 1
	}

	return m.Run()
}

func requireDB(t *testing.T) *database.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if testDB == nil {
		t.Skip("postgres is not available")
	}
	return testDB
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newPersister(db *database.Database) *scrapingapp.Persister {
	uow := database.NewScrapeUnitOfWork(database.NewTransactionProvider(db.Pool))
	return scrapingapp.NewPersister(uow, scrapingpg.NewRepository(db.Pool), testLogger())
}

func TestMigrate_Idempotent(t *testing.T) {
	db := requireDB(t)

	// Execute
	err := database.Migrate(context.Background(), db.Pool)

	// Assert
	assert.NoError(t, err)
	assert.True(t, db.HealthCheck(context.Background()))
}

func TestPersister_Postgres(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	// Setup
	p := newPersister(db)
	username := "pg_" + time.Now().Format("150405.000000")
	profileURL := "https://instagram.com/" + username
	posts := scrapingtesting.NewTestPosts(username, 2)
	comment := scraping.InteractionData{
		PostURL:      posts[0].PostURL,
		Type:         scraping.InteractionTypeComment,
		UserURL:      "https://instagram.com/bob",
		UserUsername: "bob",
		CommentText:  scrapingtesting.StrPtr("nice"),
		CommentLikes: 3,
	}
	aggregate := scraping.InteractionData{
		PostURL: posts[1].PostURL,
		Type:    scraping.InteractionTypeLike,
		Count:   scrapingtesting.IntPtr(20),
	}

	// Execute
	profile, err := p.SaveProfile(ctx, profileURL, *scrapingtesting.NewTestProfileInfo(username))
	require.NoError(t, err)
	_, err = p.SavePostsAndInteractions(ctx, profile, posts, []scraping.InteractionData{comment, aggregate})
	require.NoError(t, err)

	updatedInfo := scrapingtesting.NewTestProfileInfo(username)
	updatedInfo.Bio = scrapingtesting.StrPtr("second")
	again, err := p.SaveProfile(ctx, profileURL, *updatedInfo)
	require.NoError(t, err)
	stats, err := p.SavePostsAndInteractions(ctx, again, posts, []scraping.InteractionData{comment, aggregate})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, profile.ID, again.ID)
	assert.Equal(t, 2, stats.PostsReused)
	assert.Equal(t, 1, stats.InteractionsCreated, "only the aggregate row is appended")

	svc := scrapingapp.NewResultService(scrapingpg.NewRepository(db.Pool))
	tree, err := svc.ProfileTree(ctx, profileURL)
	require.NoError(t, err)
	assert.Equal(t, "second", *tree.Profile.Bio)
	assert.Equal(t, 2, tree.TotalPosts)
	assert.Equal(t, 3, tree.TotalInteractions)

	paged, err := svc.ProfilePosts(ctx, username, scraping.Page{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, posts[1].PostURL, paged[0].PostURL)
}

func TestPersister_Postgres_Rollback(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	// Setup
	p := newPersister(db)
	username := "rb_" + time.Now().Format("150405.000000")
	profile, err := p.SaveProfile(ctx, "https://instagram.com/"+username, scraping.ProfileInfo{Username: username})
	require.NoError(t, err)
	posts := scrapingtesting.NewTestPosts(username, 1)
	comment := scraping.InteractionData{
		PostURL: posts[0].PostURL,
		Type:    scraping.InteractionTypeComment,
		UserURL: "https://instagram.com/bob",
	}
	// 存在しないプロフィールIDで外部キー制約違反を起こす
	profile.ID = uuid.New()

	// Execute
	_, err = p.SavePostsAndInteractions(ctx, profile, posts, []scraping.InteractionData{comment})

	// Assert
	require.Error(t, err)
	found, err := scrapingpg.NewRepository(db.Pool).FindPostByURL(ctx, posts[0].PostURL)
	require.NoError(t, err)
	assert.True(t, found.IsAbsent())
}

func TestSessionState_Postgres(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	// Setup
	repo := scrapingpg.NewRepository(db.Pool)
	name := "session_" + time.Now().Format("150405.000000")

	// Execute
	missing, err := repo.LoadSessionState(ctx, name)
	require.NoError(t, err)
	require.NoError(t, repo.SaveSessionState(ctx, name, []byte(`{"cookies":[{"name":"a","value":"1"}]}`)))
	require.NoError(t, repo.SaveSessionState(ctx, name, []byte(`{"cookies":[{"name":"a","value":"2"}]}`)))
	loaded, err := repo.LoadSessionState(ctx, name)
	require.NoError(t, err)

	// Assert
	assert.True(t, missing.IsAbsent())
	state, ok := loaded.Get()
	require.True(t, ok)
	assert.JSONEq(t, `{"cookies":[{"name":"a","value":"2"}]}`, string(state))
}

func TestJobRepository_Postgres(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	// Setup
	repo := jobpg.NewJobRepository(db.Pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := jobdomain.NewJob("https://instagram.com/alice", now)

	// Execute
	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, job.Start(now.Add(time.Second)))
	require.NoError(t, repo.Update(ctx, job, jobdomain.StatusPending))
	require.NoError(t, job.Fail(now.Add(2*time.Second), errors.New("backend exhausted")))
	require.NoError(t, repo.Update(ctx, job, jobdomain.StatusRunning))

	stale := *job
	stale.Status = jobdomain.StatusCompleted
	staleErr := repo.Update(ctx, &stale, jobdomain.StatusRunning)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	jobs, err := repo.List(ctx, 5)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, jobdomain.StatusFailed, got.Status)
	assert.ErrorIs(t, staleErr, jobdomain.ErrInvalidTransition)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "backend exhausted", *got.ErrorMessage)
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(now.Add(time.Second)))
	assert.NotEmpty(t, jobs)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, jobdomain.ErrJobNotFound)
}

func TestTransact_RollbackJobs(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	// Setup
	provider := database.NewTransactionProvider(db.Pool)
	job := jobdomain.NewJob("https://instagram.com/rollback", time.Now().UTC())
	errAbort := errors.New("abort")

	// Execute
	_, err := database.Transact(ctx, provider, func(a *database.Adapter) (struct{}, error) {
		if err := a.Jobs.Create(ctx, job); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, errAbort
	})

	// Assert
	assert.ErrorIs(t, err, errAbort)
	_, err = jobpg.NewJobRepository(db.Pool).Get(ctx, job.ID)
	assert.ErrorIs(t, err, jobdomain.ErrJobNotFound)
}
