package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonroom/anonroom/internal/broadcast"
	"github.com/anonroom/anonroom/internal/config"
	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/moderation"
	"github.com/anonroom/anonroom/internal/repository"
)

func newRoomService(t *testing.T) (*RoomService, *repository.InMemoryRoomRepository) {
	t.Helper()
	messages := repository.NewInMemoryMessageRepository()
	rooms := repository.NewInMemoryRoomRepository(messages)
	svc := NewRoomService(rooms, testModerationGate(t), broadcast.NewHub(slog.Default()), 100, slog.Default())
	return svc, rooms
}

func TestCreateRoom(t *testing.T) {
	svc, _ := newRoomService(t)
	ctx := context.Background()

	creator := domain.NewSession("digest", "10.0.0.1", "ua")
	room, err := svc.CreateRoom(ctx, "  General  ", creator)
	require.NoError(t, err)

	assert.Equal(t, "General", room.Name)
	assert.Len(t, room.ShareToken, 6)
	assert.Regexp(t, "^[a-z0-9]{6}$", room.ShareToken)
	assert.Equal(t, creator.ID, room.CreatorSessionID)
	assert.True(t, room.Kept())

	got, err := svc.GetRoom(ctx, room.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)
}

func TestCreateRoomValidation(t *testing.T) {
	svc, _ := newRoomService(t)
	ctx := context.Background()
	creator := domain.NewSession("digest", "10.0.0.1", "ua")

	_, err := svc.CreateRoom(ctx, "", creator)
	assert.True(t, domain.IsValidation(err))

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'r'
	}
	_, err = svc.CreateRoom(ctx, string(long), creator)
	assert.True(t, domain.IsValidation(err))

	_, err = svc.CreateRoom(ctx, "room <script>x</script>", creator)
	assert.ErrorIs(t, err, domain.ErrSpamDetected)
}

func TestCreateRoomAppliesRateLimit(t *testing.T) {
	messages := repository.NewInMemoryMessageRepository()
	rooms := repository.NewInMemoryRoomRepository(messages)
	limiter := moderation.NewMemoryRateLimiter()
	t.Cleanup(limiter.Stop)
	limits := config.RateLimitsConfig{
		RoomCreation: config.WindowLimit{Limit: 2, Window: time.Hour},
	}
	gate := moderation.NewGate(config.ModerationConfig{}, limits, limiter, messages, slog.Default())
	svc := NewRoomService(rooms, gate, broadcast.NewHub(slog.Default()), 100, slog.Default())

	ctx := context.Background()
	creator := domain.NewSession("digest", "10.0.0.1", "ua")

	_, err := svc.CreateRoom(ctx, "one", creator)
	require.NoError(t, err)
	_, err = svc.CreateRoom(ctx, "two", creator)
	require.NoError(t, err)
	_, err = svc.CreateRoom(ctx, "three", creator)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

// conflictingRoomRepo forces share-token collisions for the first n creates.
type conflictingRoomRepo struct {
	repository.RoomRepository
	conflicts int
	attempts  int
}

func (r *conflictingRoomRepo) Create(ctx context.Context, room *domain.Room) error {
	r.attempts++
	if r.attempts <= r.conflicts {
		return repository.ErrShareTokenExists
	}
	return r.RoomRepository.Create(ctx, room)
}

func TestCreateRoomRetriesOnShareTokenConflict(t *testing.T) {
	inner := repository.NewInMemoryRoomRepository(repository.NewInMemoryMessageRepository())
	rooms := &conflictingRoomRepo{RoomRepository: inner, conflicts: 3}
	svc := NewRoomService(rooms, testModerationGate(t), broadcast.NewHub(slog.Default()), 100, slog.Default())

	room, err := svc.CreateRoom(context.Background(), "retry", domain.NewSession("d", "ip", "ua"))
	require.NoError(t, err)
	assert.Equal(t, 4, rooms.attempts)
	assert.NotEmpty(t, room.ShareToken)
}

func TestCreateRoomGivesUpAfterRepeatedConflicts(t *testing.T) {
	inner := repository.NewInMemoryRoomRepository(repository.NewInMemoryMessageRepository())
	rooms := &conflictingRoomRepo{RoomRepository: inner, conflicts: 100}
	svc := NewRoomService(rooms, testModerationGate(t), broadcast.NewHub(slog.Default()), 100, slog.Default())

	_, err := svc.CreateRoom(context.Background(), "doomed", domain.NewSession("d", "ip", "ua"))
	assert.Error(t, err)
	assert.Equal(t, maxShareTokenAttempts, rooms.attempts)
}

func TestCreateRoomConcurrentTokensAreDistinct(t *testing.T) {
	svc, _ := newRoomService(t)
	ctx := context.Background()

	const n = 24
	tokens := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creator := domain.NewSession("digest", "10.0.0.1", "ua")
			room, err := svc.CreateRoom(ctx, "concurrent", creator)
			assert.NoError(t, err, "creator %d", i)
			if room != nil {
				tokens <- room.ShareToken
			}
		}(i)
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool, n)
	for token := range tokens {
		assert.False(t, seen[token], "duplicate share token %q", token)
		seen[token] = true
	}
	assert.Len(t, seen, n)
}

func TestGetRoomHidesDiscarded(t *testing.T) {
	svc, rooms := newRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "fading", domain.NewSession("d", "ip", "ua"))
	require.NoError(t, err)

	require.NoError(t, rooms.Discard(ctx, room.ID, time.Now()))

	_, err = svc.GetRoom(ctx, room.ShareToken)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestGetRoomUnknownToken(t *testing.T) {
	svc, _ := newRoomService(t)

	_, err := svc.GetRoom(context.Background(), "zzzzzz")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestListRoomsPagination(t *testing.T) {
	svc, rooms := newRoomService(t)
	ctx := context.Background()
	creator := domain.NewSession("d", "ip", "ua")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		room := domain.NewRoom("room", creator.ID)
		room.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, rooms.Create(ctx, room))
	}

	page, hasMore, err := svc.ListRooms(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, hasMore)
	// newest first
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	page, hasMore, err = svc.ListRooms(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.False(t, hasMore)

	page, hasMore, err = svc.ListRooms(ctx, 2, 100)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.False(t, hasMore)
}

func TestListRoomsBeforeCursor(t *testing.T) {
	svc, rooms := newRoomService(t)
	ctx := context.Background()
	creator := domain.NewSession("d", "ip", "ua")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		room := domain.NewRoom("room", creator.ID)
		room.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, rooms.Create(ctx, room))
	}

	first, hasMore, cursor, err := svc.ListRoomsBefore(ctx, 2, time.Time{})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, hasMore)

	second, hasMore, cursor, err := svc.ListRoomsBefore(ctx, 2, cursor)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.True(t, hasMore)
	assert.True(t, second[0].CreatedAt.Before(first[1].CreatedAt))

	third, hasMore, _, err := svc.ListRoomsBefore(ctx, 2, cursor)
	require.NoError(t, err)
	assert.Len(t, third, 1)
	assert.False(t, hasMore)
}

func TestSubscribeRequiresKeptRoom(t *testing.T) {
	svc, rooms := newRoomService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "live", domain.NewSession("d", "ip", "ua"))
	require.NoError(t, err)

	sub, err := svc.Subscribe(ctx, room.ShareToken)
	require.NoError(t, err)
	sub.Close()

	require.NoError(t, rooms.Discard(ctx, room.ID, time.Now()))
	_, err = svc.Subscribe(ctx, room.ShareToken)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}
