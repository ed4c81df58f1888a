package storeservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"devver/internal/config"
	"devver/internal/db"
	"devver/internal/models"
)

func newTestStore(t *testing.T) *StoreService {
	t.Helper()
	database, err := db.Open(&config.Config{DB_Driver: "sqlite", DB_Path: filepath.Join(t.TempDir(), "store.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	return NewStoreService(database)
}

func digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func TestSaveFile(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips bytes by digest", func(t *testing.T) {
		store := newTestStore(t)
		content := []byte("export const answer = 42\n")

		inserted, err := store.SaveFile(ctx, digest(content), content)
		require.NoError(t, err)
		require.True(t, inserted)

		got, err := store.GetFile(ctx, digest(content))
		require.NoError(t, err)
		require.Equal(t, content, got)
	})

	t.Run("is idempotent per hash", func(t *testing.T) {
		store := newTestStore(t)
		content := []byte("same bytes")

		_, err := store.SaveFile(ctx, digest(content), content)
		require.NoError(t, err)
		inserted, err := store.SaveFile(ctx, digest(content), content)
		require.NoError(t, err)
		require.False(t, inserted)

		count, err := store.CountFiles(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)
	})

	t.Run("stores empty files", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.SaveFile(ctx, digest(nil), nil)
		require.NoError(t, err)

		got, err := store.GetFile(ctx, digest(nil))
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("reports missing blobs", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.GetFile(ctx, digest([]byte("nope")))
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBranches(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	require.NoError(t, store.SaveBranch(ctx, "demo", "main", "abc123ef"))
	require.NoError(t, store.SaveBranch(ctx, "demo", "feature", "1111aaaa"))
	require.NoError(t, store.SaveBranch(ctx, "other", "main", "2222bbbb"))
	require.NoError(t, store.SaveBranch(ctx, "demo", "main", "def456ab"))

	branches, err := store.GetBranches(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, branches, 2)
	require.Equal(t, "main", branches[0].Branch)
	require.Equal(t, "def456ab", branches[0].CommitHash)
	require.Equal(t, "feature", branches[1].Branch)
	require.True(t, branches[0].LastDeployedAt.After(branches[0].CreatedAt))

	main, err := store.GetBranch(ctx, "demo", "main")
	require.NoError(t, err)
	require.Equal(t, "def456ab", main.CommitHash)

	_, err = store.GetBranch(ctx, "demo", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	empty, err := store.GetBranches(ctx, "unknown")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDeploymentFiles(t *testing.T) {
	ctx := context.Background()

	t.Run("replace leaves no residue from the previous deployment", func(t *testing.T) {
		store := newTestStore(t)

		first := []models.ManifestEntry{
			{Path: "src/main.ts", Hash: digest([]byte("v1"))},
			{Path: "package.json", Hash: digest([]byte("{}"))},
			{Path: "old.txt", Hash: digest([]byte("old"))},
		}
		require.NoError(t, store.SaveDeploymentFiles(ctx, "demo", "main", "abc123ef", first))

		second := []models.ManifestEntry{
			{Path: "src/main.ts", Hash: digest([]byte("v2"))},
			{Path: "package.json", Hash: digest([]byte("{}"))},
		}
		require.NoError(t, store.SaveDeploymentFiles(ctx, "demo", "main", "def456ab", second))

		got, err := store.GetDeploymentFiles(ctx, "demo", "main")
		require.NoError(t, err)
		require.Equal(t, []models.ManifestEntry{
			{Path: "package.json", Hash: digest([]byte("{}"))},
			{Path: "src/main.ts", Hash: digest([]byte("v2"))},
		}, got)
	})

	t.Run("branches on the same commit keep separate manifests", func(t *testing.T) {
		store := newTestStore(t)
		files := []models.ManifestEntry{{Path: "index.html", Hash: digest([]byte("<h1>hi</h1>"))}}

		require.NoError(t, store.SaveDeploymentFiles(ctx, "demo", "main", "abc123ef", files))
		require.NoError(t, store.SaveDeploymentFiles(ctx, "demo", "preview", "abc123ef", files))

		main, err := store.GetDeploymentFiles(ctx, "demo", "main")
		require.NoError(t, err)
		preview, err := store.GetDeploymentFiles(ctx, "demo", "preview")
		require.NoError(t, err)
		require.Equal(t, files, main)
		require.Equal(t, files, preview)
	})

	t.Run("empty file list clears the manifest", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.SaveDeploymentFiles(ctx, "demo", "main", "abc123ef",
			[]models.ManifestEntry{{Path: "a", Hash: digest([]byte("a"))}}))
		require.NoError(t, store.SaveDeploymentFiles(ctx, "demo", "main", "def456ab", nil))

		got, err := store.GetDeploymentFiles(ctx, "demo", "main")
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("failed insert keeps the previous manifest", func(t *testing.T) {
		store := newTestStore(t)
		previous := []models.ManifestEntry{{Path: "a", Hash: digest([]byte("a"))}}
		require.NoError(t, store.SaveDeploymentFiles(ctx, "demo", "main", "abc123ef", previous))

		duplicate := []models.ManifestEntry{
			{Path: "b", Hash: digest([]byte("b"))},
			{Path: "b", Hash: digest([]byte("b2"))},
		}
		require.Error(t, store.SaveDeploymentFiles(ctx, "demo", "main", "def456ab", duplicate))

		got, err := store.GetDeploymentFiles(ctx, "demo", "main")
		require.NoError(t, err)
		require.Equal(t, previous, got)
	})
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Ping(context.Background()))
}
