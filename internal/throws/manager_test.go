package throws

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"steadystream/internal/logging"
	"steadystream/internal/models"
	"steadystream/internal/realtime"
	"steadystream/internal/store"
	"steadystream/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type recordingEvents struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingEvents) LogEvent(_ context.Context, _ uuid.UUID, name string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

// racingStore behaves as if another send inserted the same throw between the
// existence check and the insert
type racingStore struct {
	*store.Store
	insertErr error
}

func (s racingStore) FindThrow(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (*models.Throw, error) {
	return nil, store.ErrNotFound
}

func (s racingStore) InsertThrow(ctx context.Context, t *models.Throw) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.Store.InsertThrow(ctx, t)
}

type fixture struct {
	db        *gorm.DB
	st        *store.Store
	manager   *Manager
	publisher *recordingPublisher
	events    *recordingEvents

	alice, bob *models.Profile
	post       *models.Post
}

func setup(t *testing.T) *fixture {
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	publisher := &recordingPublisher{}
	events := &recordingEvents{}

	f := &fixture{
		db:        db,
		st:        st,
		manager:   NewManager(st, publisher, events, nil, logging.Discard()),
		publisher: publisher,
		events:    events,
		alice:     testutil.CreateProfile(t, db, "alice"),
		bob:       testutil.CreateProfile(t, db, "bob"),
	}
	testutil.Mutual(t, db, f.alice, f.bob)
	f.post = testutil.CreatePost(t, db, f.alice, "sunset", time.Now().UTC())
	return f
}

func (f *fixture) request(message string, isPublic bool) SendRequest {
	return SendRequest{
		PostID:      f.post.ID,
		ThrowerID:   f.alice.ID,
		RecipientID: f.bob.ID,
		Message:     message,
		IsPublic:    isPublic,
	}
}

func (f *fixture) throwCount(t *testing.T) int64 {
	var count int64
	require.NoError(t, f.db.Model(&models.Throw{}).Count(&count).Error)
	return count
}

func TestSendThrow_Success(t *testing.T) {
	f := setup(t)

	throw, err := f.manager.SendThrow(context.Background(), f.request("  you'll love this  ", true))
	require.NoError(t, err)

	assert.Equal(t, f.post.ID, throw.PostID)
	assert.Equal(t, f.alice.ID, throw.PostOwnerID)
	require.NotNil(t, throw.Message)
	assert.Equal(t, "you'll love this", *throw.Message)
	assert.True(t, throw.IsPublic)
	assert.False(t, throw.IsRead)

	var stored models.Throw
	require.NoError(t, f.db.First(&stored, "id = ?", throw.ID).Error)
	assert.Equal(t, f.bob.ID, stored.RecipientID)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, realtime.Event{
		Type:        realtime.EventThrowInserted,
		ThrowID:     throw.ID,
		PostID:      f.post.ID,
		ThrowerID:   f.alice.ID,
		RecipientID: f.bob.ID,
	}, f.publisher.events[0])
	assert.Equal(t, []string{"throw_with_message"}, f.events.names)
}

func TestSendThrow_EmptyMessageIsPrivate(t *testing.T) {
	f := setup(t)

	for _, message := range []string{"", "   ", "\n\t "} {
		t.Run("message "+message, func(t *testing.T) {
			f.db.Where("1 = 1").Delete(&models.Throw{})

			throw, err := f.manager.SendThrow(context.Background(), f.request(message, true))
			require.NoError(t, err)
			assert.Nil(t, throw.Message)
			assert.False(t, throw.IsPublic)

			var stored models.Throw
			require.NoError(t, f.db.First(&stored, "id = ?", throw.ID).Error)
			assert.False(t, stored.IsPublic)
		})
	}
	assert.Equal(t, "throw", f.events.names[0])
}

func TestSendThrow_Duplicate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.manager.SendThrow(ctx, f.request("first", false))
	require.NoError(t, err)

	_, err = f.manager.SendThrow(ctx, f.request("second", true))
	assert.ErrorIs(t, err, ErrDuplicateThrow)
	assert.Equal(t, int64(1), f.throwCount(t))
	assert.Len(t, f.publisher.events, 1)
}

func TestSendThrow_DuplicateFromConstraint(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// the first send lands through the real store
	_, err := f.manager.SendThrow(ctx, f.request("", false))
	require.NoError(t, err)

	// the second skips the existence check and hits the unique index
	racing := NewManager(racingStore{Store: f.st}, nil, nil, nil, logging.Discard())
	_, err = racing.SendThrow(ctx, f.request("", false))
	assert.ErrorIs(t, err, ErrDuplicateThrow)
	assert.Equal(t, int64(1), f.throwCount(t))
}

func TestSendThrow_UniqueIndexRejectsSecondInsert(t *testing.T) {
	f := setup(t)

	first := models.NewThrow(f.post, f.alice.ID, f.bob.ID, "", false)
	require.NoError(t, f.st.InsertThrow(context.Background(), first))

	second := models.NewThrow(f.post, f.alice.ID, f.bob.ID, "again", true)
	err := f.st.InsertThrow(context.Background(), second)
	assert.ErrorIs(t, err, store.ErrDuplicateThrow)
}

func TestSendThrow_ConcurrentSends(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const senders = 8
	var wg sync.WaitGroup
	results := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.SendThrow(ctx, f.request("", false))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateThrow):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, senders-1, dup)
	assert.Equal(t, int64(1), f.throwCount(t))
}

func TestSendThrow_PersistError(t *testing.T) {
	f := setup(t)

	m := NewManager(racingStore{Store: f.st, insertErr: errors.New("disk full")}, nil, nil, nil, logging.Discard())
	_, err := m.SendThrow(context.Background(), f.request("hi", false))

	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.EqualError(t, persistErr.Err, "disk full")
	assert.NotErrorIs(t, err, ErrDuplicateThrow)
}

func TestSendThrow_MessageLength(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.manager.SendThrow(ctx, f.request(strings.Repeat("a", models.MaxThrowMessageLength+1), false))
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.Equal(t, int64(0), f.throwCount(t))

	// limit counts characters, not bytes
	exact := strings.Repeat("é", models.MaxThrowMessageLength)
	throw, err := f.manager.SendThrow(ctx, f.request(exact, false))
	require.NoError(t, err)
	assert.Equal(t, exact, *throw.Message)
}

func TestSendThrow_KeepsMessageAsTyped(t *testing.T) {
	f := setup(t)

	throw, err := f.manager.SendThrow(context.Background(), f.request("  if a<b then swap ", true))
	require.NoError(t, err)
	assert.Equal(t, "if a<b then swap", *throw.Message)

	var stored models.Throw
	require.NoError(t, f.db.First(&stored, "id = ?", throw.ID).Error)
	assert.Equal(t, "if a<b then swap", *stored.Message)
}

func TestSendThrow_RejectsMarkup(t *testing.T) {
	f := setup(t)

	_, err := f.manager.SendThrow(context.Background(), f.request("<i>look</i><script>alert(1)</script>", false))
	assert.ErrorIs(t, err, ErrMarkup)
	assert.Equal(t, int64(0), f.throwCount(t))

	// markup never shortens an over-long message under the limit
	long := "<b>" + strings.Repeat("a", models.MaxThrowMessageLength) + "</b>"
	_, err = f.manager.SendThrow(context.Background(), f.request(long, false))
	assert.Error(t, err)
	assert.Equal(t, int64(0), f.throwCount(t))
}

func TestSendThrow_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	carol := testutil.CreateProfile(t, f.db, "carol")
	testutil.Follow(t, f.db, f.alice, carol)

	t.Run("self", func(t *testing.T) {
		req := f.request("", false)
		req.RecipientID = f.alice.ID
		_, err := f.manager.SendThrow(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})

	t.Run("unknown post", func(t *testing.T) {
		req := f.request("", false)
		req.PostID = uuid.New()
		_, err := f.manager.SendThrow(ctx, req)
		assert.ErrorIs(t, err, ErrPostNotFound)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		req := f.request("", false)
		req.RecipientID = uuid.New()
		_, err := f.manager.SendThrow(ctx, req)
		assert.ErrorIs(t, err, ErrRecipientNotFound)
	})

	t.Run("one-way follow", func(t *testing.T) {
		req := f.request("", false)
		req.RecipientID = carol.ID
		_, err := f.manager.SendThrow(ctx, req)
		assert.ErrorIs(t, err, ErrNotMutual)
	})

	t.Run("throws off", func(t *testing.T) {
		require.NoError(t, f.db.Model(f.bob).Update("throw_privacy", models.ThrowPrivacyOff).Error)
		_, err := f.manager.SendThrow(ctx, f.request("", false))
		assert.ErrorIs(t, err, ErrThrowsDisabled)
	})

	assert.Equal(t, int64(0), f.throwCount(t))
	assert.Empty(t, f.publisher.events)
}

func TestHasThrown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	thrown, err := f.manager.HasThrown(ctx, f.post.ID, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, thrown)

	_, err = f.manager.SendThrow(ctx, f.request("", false))
	require.NoError(t, err)

	thrown, err = f.manager.HasThrown(ctx, f.post.ID, f.alice.ID)
	require.NoError(t, err)
	assert.True(t, thrown)

	thrown, err = f.manager.HasThrown(ctx, f.post.ID, f.bob.ID)
	require.NoError(t, err)
	assert.False(t, thrown)
}

func TestRecipients(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	carol := testutil.CreateProfile(t, f.db, "carol")
	dave := testutil.CreateProfile(t, f.db, "dave")
	testutil.Mutual(t, f.db, f.alice, carol)
	testutil.Follow(t, f.db, f.alice, dave)
	require.NoError(t, f.db.Model(carol).Update("throw_privacy", models.ThrowPrivacyOff).Error)

	recipients, err := f.manager.Recipients(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, f.bob.ID, recipients[0].ID)
}

func TestSentReceivedAndMarkRead(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	throw, err := f.manager.SendThrow(ctx, f.request("hello", false))
	require.NoError(t, err)

	sent, err := f.manager.Sent(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].Post)
	require.NotNil(t, sent[0].Post.Author)
	assert.Equal(t, f.alice.ID, sent[0].Post.Author.ID)

	received, err := f.manager.Received(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.False(t, received[0].IsRead)

	// only the recipient can mark a throw read
	n, err := f.manager.MarkRead(ctx, f.alice.ID, []uuid.UUID{throw.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = f.manager.MarkRead(ctx, f.bob.ID, []uuid.UUID{throw.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	received, err = f.manager.Received(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.True(t, received[0].IsRead)
}
