package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/log"
)

// startPostgres brings up a disposable database, runs migrations, and
// returns a connected store.
func startPostgres(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("fisco"),
		postgres.WithUsername("fisco"),
		postgres.WithPassword("fisco"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	if err := Migrate(dsn, log.NewNop()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	t.Cleanup(pool.Close)

	store, err := NewPostgres(pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	return store
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	t.Parallel()

	store := startPostgres(t)
	ctx := context.Background()
	id := uuid.New()

	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(unknown) = %v, want ErrNotFound", err)
	}

	state := &State{
		SessionID: id,
		UserID:    "user-1",
		Messages: []chat.Message{
			chat.User("Cos'è l'IVA?"),
			chat.Assistant("L'IVA è l'imposta sul valore aggiunto."),
		},
	}
	if err := store.Put(ctx, state); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "user-1" || len(got.Messages) != 2 {
		t.Errorf("Get() = %+v, want stored conversation", got)
	}
	firstWrite := got.UpdatedAt

	// Upsert: same session id, longer conversation.
	state.Messages = append(state.Messages, chat.User("E l'aliquota?"))
	if err := store.Put(ctx, state); err != nil {
		t.Fatalf("Put() upsert error = %v", err)
	}
	got, err = store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() after upsert error = %v", err)
	}
	if len(got.Messages) != 3 {
		t.Errorf("Messages = %d, want 3 after upsert", len(got.Messages))
	}
	if got.UpdatedAt.Before(firstWrite) {
		t.Error("UpdatedAt went backwards after upsert")
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, id); err != nil {
		t.Errorf("Delete(absent) error = %v", err)
	}
}

func TestConvertToMigrateURL(t *testing.T) {
	t.Parallel()

	got, err := convertToMigrateURL("postgres://u:p@localhost:5432/fisco?sslmode=disable")
	if err != nil {
		t.Fatalf("convertToMigrateURL() error = %v", err)
	}
	if want := "pgx5://u:p@localhost:5432/fisco?sslmode=disable"; got != want {
		t.Errorf("convertToMigrateURL() = %q, want %q", got, want)
	}

	if _, err := convertToMigrateURL("mysql://localhost/db"); err == nil {
		t.Error("convertToMigrateURL(mysql) = nil error, want scheme rejection")
	}
}
