package feeds

import (
	"context"
	"errors"
	"testing"
	"time"

	"steadystream/internal/logging"
	"steadystream/internal/models"
	"steadystream/internal/store"
	"steadystream/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockStore is a mock implementation of the feed store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) FollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, userID)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

func (m *MockStore) PostsByAuthors(ctx context.Context, authorIDs []uuid.UUID) ([]models.Post, error) {
	args := m.Called(ctx, authorIDs)
	posts, _ := args.Get(0).([]models.Post)
	return posts, args.Error(1)
}

func (m *MockStore) ThrowsToRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Throw, error) {
	args := m.Called(ctx, recipientID)
	throws, _ := args.Get(0).([]models.Throw)
	return throws, args.Error(1)
}

func (m *MockStore) PublicThrowsForOwners(ctx context.Context, ownerIDs []uuid.UUID) ([]models.Throw, error) {
	args := m.Called(ctx, ownerIDs)
	throws, _ := args.Get(0).([]models.Throw)
	return throws, args.Error(1)
}

func (m *MockStore) ThrownPostIDs(ctx context.Context, throwerID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	args := m.Called(ctx, throwerID, postIDs)
	thrown, _ := args.Get(0).(map[uuid.UUID]bool)
	return thrown, args.Error(1)
}

type recordedEvent struct {
	userID   uuid.UUID
	name     string
	metadata map[string]interface{}
}

type eventRecorder struct {
	events []recordedEvent
}

func (r *eventRecorder) LogEvent(_ context.Context, userID uuid.UUID, name string, metadata map[string]interface{}) {
	r.events = append(r.events, recordedEvent{userID: userID, name: name, metadata: metadata})
}

type testDB struct {
	t  *testing.T
	db *gorm.DB
}

func (f *testDB) profile(name string) *models.Profile {
	return testutil.CreateProfile(f.t, f.db, name)
}

func (f *testDB) post(owner *models.Profile, caption string, createdAt time.Time) *models.Post {
	return testutil.CreatePost(f.t, f.db, owner, caption, createdAt)
}

func (f *testDB) follow(follower, following *models.Profile) {
	testutil.Follow(f.t, f.db, follower, following)
}

func (f *testDB) throw(post *models.Post, thrower, recipient *models.Profile, message string, isPublic bool) *models.Throw {
	return testutil.CreateThrow(f.t, f.db, post, thrower, recipient, message, isPublic)
}

func newTestService(t *testing.T) (*FeedService, *testDB) {
	db := testutil.SetupTestDB(t)
	return NewFeedService(store.New(db), logging.Discard(), nil, nil), &testDB{t: t, db: db}
}

func postIDs(items []FeedItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.Post.ID
	}
	return ids
}

func TestComposeFeed_Scenario(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).UTC()

	viewer := fx.profile("viewer")
	alice := fx.profile("alice")
	bob := fx.profile("bob")
	fx.follow(viewer, alice)

	p1 := fx.post(alice, "p1", base)

	items, err := svc.ComposeFeed(ctx, viewer.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, p1.ID, items[0].Post.ID)
	assert.Equal(t, alice.ID, items[0].Author.ID)
	assert.False(t, items[0].HasViewerThrown)

	// bob is not followed but privately throws one of their own posts to the viewer
	p2 := fx.post(bob, "p2", base.Add(time.Minute))
	throw := fx.throw(p2, bob, viewer, "for you", false)

	items, err = svc.ComposeFeed(ctx, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p2.ID, p1.ID}, postIDs(items))

	thrown := items[0]
	require.Len(t, thrown.ThrownBy, 1)
	assert.Equal(t, bob.ID, thrown.ThrownBy[0].ID)
	require.NotNil(t, thrown.ThrowID)
	assert.Equal(t, throw.ID, *thrown.ThrowID)
	require.Len(t, thrown.ThrowData, 1)
	assert.Equal(t, viewer.ID, thrown.ThrowData[0].RecipientID)
	assert.Len(t, thrown.VisibleMessages(viewer.ID), 1)
	assert.Empty(t, thrown.VisibleMessages(alice.ID))

	// the viewer throws p1 onwards
	carol := fx.profile("carol")
	fx.throw(p1, viewer, carol, "", false)

	items, err = svc.ComposeFeed(ctx, viewer.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, p1.ID, items[1].Post.ID)
	assert.True(t, items[1].HasViewerThrown)
	assert.False(t, items[0].HasViewerThrown)
}

func TestComposeFeed_IncludesOwnAndFollowedPosts(t *testing.T) {
	svc, fx := newTestService(t)
	base := time.Now().Add(-time.Hour).UTC()

	viewer := fx.profile("viewer")
	alice := fx.profile("alice")
	stranger := fx.profile("stranger")
	fx.follow(viewer, alice)

	own := fx.post(viewer, "own", base)
	followed := fx.post(alice, "followed", base.Add(time.Minute))
	fx.post(stranger, "hidden", base.Add(2*time.Minute))

	items, err := svc.ComposeFeed(context.Background(), viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{followed.ID, own.ID}, postIDs(items))
}

func TestComposeFeed_MergesThrowsIntoExistingPosts(t *testing.T) {
	svc, fx := newTestService(t)
	base := time.Now().Add(-time.Hour).UTC()

	viewer := fx.profile("viewer")
	alice := fx.profile("alice")
	bob := fx.profile("bob")
	fx.follow(viewer, alice)

	post := fx.post(alice, "shared", base)
	// bob throws the same post to the viewer and publicly to alice
	toViewer := fx.throw(post, bob, viewer, "look", false)
	public := fx.throw(post, bob, alice, "so good", true)

	items, err := svc.ComposeFeed(context.Background(), viewer.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Nil(t, item.ThrowID)
	require.Len(t, item.ThrownBy, 1, "throwers are deduplicated by id")
	assert.Equal(t, bob.ID, item.ThrownBy[0].ID)
	require.Len(t, item.ThrowData, 2)

	byID := map[uuid.UUID]ThrowData{}
	for _, td := range item.ThrowData {
		byID[td.ThrowID] = td
	}
	assert.Equal(t, viewer.ID, byID[toViewer.ID].RecipientID)
	assert.Equal(t, alice.ID, byID[public.ID].RecipientID)
	assert.Len(t, item.VisibleMessages(viewer.ID), 2)
}

func TestComposeFeed_PublicThrowAddressedToViewerAppearsOnce(t *testing.T) {
	svc, fx := newTestService(t)
	base := time.Now().Add(-time.Hour).UTC()

	viewer := fx.profile("viewer")
	alice := fx.profile("alice")
	fx.follow(viewer, alice)

	post := fx.post(alice, "p", base)
	fx.throw(post, alice, viewer, "public and mine", true)

	items, err := svc.ComposeFeed(context.Background(), viewer.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Len(t, items[0].ThrowData, 1)
}

func TestComposeFeed_PrivateMessagesToOthersStayHidden(t *testing.T) {
	svc, fx := newTestService(t)
	base := time.Now().Add(-time.Hour).UTC()

	viewer := fx.profile("viewer")
	alice := fx.profile("alice")
	bob := fx.profile("bob")
	carol := fx.profile("carol")
	fx.follow(viewer, alice)

	post := fx.post(alice, "p", base)
	fx.throw(post, bob, carol, "secret", false)
	fx.throw(post, bob, alice, "everyone can read", true)

	items, err := svc.ComposeFeed(context.Background(), viewer.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// the private throw to carol is not fetched for the viewer at all
	require.Len(t, items[0].ThrowData, 1)
	visible := items[0].VisibleMessages(viewer.ID)
	require.Len(t, visible, 1)
	assert.Equal(t, "everyone can read", *visible[0].Message)
}

func TestComposeFeed_NoDuplicatePosts(t *testing.T) {
	svc, fx := newTestService(t)
	base := time.Now().Add(-time.Hour).UTC()

	viewer := fx.profile("viewer")
	friends := []*models.Profile{fx.profile("a"), fx.profile("b"), fx.profile("c")}
	for _, f := range friends {
		fx.follow(viewer, f)
	}

	post := fx.post(friends[0], "popular", base)
	fx.post(friends[1], "other", base.Add(time.Second))
	fx.throw(post, friends[1], viewer, "", false)
	fx.throw(post, friends[2], viewer, "hey", true)
	fx.throw(post, friends[1], friends[2], "public", true)

	items, err := svc.ComposeFeed(context.Background(), viewer.ID)
	require.NoError(t, err)

	seen := map[uuid.UUID]bool{}
	for _, item := range items {
		assert.False(t, seen[item.Post.ID], "post %s appears twice", item.Post.ID)
		seen[item.Post.ID] = true
	}
	assert.Len(t, items, 2)
}

func TestComposeFeed_EmptyFeed(t *testing.T) {
	svc, fx := newTestService(t)

	items, err := svc.ComposeFeed(context.Background(), fx.profile("lonely").ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestComposeFeed_FollowsFailureIsFatal(t *testing.T) {
	st := &MockStore{}
	viewer := uuid.New()
	st.On("FollowingIDs", mock.Anything, viewer).Return(nil, errors.New("connection refused"))

	svc := NewFeedService(st, logging.Discard(), nil, nil)
	items, err := svc.ComposeFeed(context.Background(), viewer)

	assert.Error(t, err)
	assert.Nil(t, items)
	st.AssertNotCalled(t, "PostsByAuthors", mock.Anything, mock.Anything)
}

func TestComposeFeed_PostsFailureIsFatal(t *testing.T) {
	st := &MockStore{}
	viewer := uuid.New()
	st.On("FollowingIDs", mock.Anything, viewer).Return([]uuid.UUID{}, nil)
	st.On("PostsByAuthors", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	svc := NewFeedService(st, logging.Discard(), nil, nil)
	_, err := svc.ComposeFeed(context.Background(), viewer)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load posts")
}

func TestComposeFeed_ThrowFailuresDegrade(t *testing.T) {
	st := &MockStore{}
	viewer := uuid.New()
	author := models.Profile{ID: uuid.New(), Name: "alice"}
	post := models.Post{ID: uuid.New(), UserID: author.ID, Author: &author, CreatedAt: time.Now()}

	st.On("FollowingIDs", mock.Anything, viewer).Return([]uuid.UUID{author.ID}, nil)
	st.On("PostsByAuthors", mock.Anything, mock.Anything).Return([]models.Post{post}, nil)
	st.On("ThrowsToRecipient", mock.Anything, viewer).Return(nil, errors.New("boom"))
	st.On("PublicThrowsForOwners", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	st.On("ThrownPostIDs", mock.Anything, viewer, []uuid.UUID{post.ID}).Return(nil, errors.New("boom"))

	svc := NewFeedService(st, logging.Discard(), nil, nil)
	items, err := svc.ComposeFeed(context.Background(), viewer)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, post.ID, items[0].Post.ID)
	assert.False(t, items[0].HasViewerThrown)
	st.AssertExpectations(t)
}

func TestComposeFeed_DropsEntriesWithoutAuthor(t *testing.T) {
	st := &MockStore{}
	viewer := uuid.New()
	author := models.Profile{ID: uuid.New(), Name: "alice"}
	thrower := models.Profile{ID: uuid.New(), Name: "bob"}
	orphan := models.Post{ID: uuid.New(), UserID: uuid.New(), CreatedAt: time.Now()}
	kept := models.Post{ID: uuid.New(), UserID: author.ID, Author: &author, CreatedAt: time.Now()}

	st.On("FollowingIDs", mock.Anything, viewer).Return([]uuid.UUID{author.ID, orphan.UserID}, nil)
	st.On("PostsByAuthors", mock.Anything, mock.Anything).Return([]models.Post{orphan, kept}, nil)
	st.On("ThrowsToRecipient", mock.Anything, viewer).Return([]models.Throw{
		{ID: uuid.New(), PostID: orphan.ID, Post: &orphan, ThrowerID: thrower.ID, Thrower: &thrower, RecipientID: viewer},
	}, nil)
	st.On("PublicThrowsForOwners", mock.Anything, mock.Anything).Return(nil, nil)
	st.On("ThrownPostIDs", mock.Anything, viewer, []uuid.UUID{kept.ID}).Return(map[uuid.UUID]bool{}, nil)

	svc := NewFeedService(st, logging.Discard(), nil, nil)
	items, err := svc.ComposeFeed(context.Background(), viewer)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{kept.ID}, postIDs(items))
}

func TestComposeFeed_RecordsSlowLoad(t *testing.T) {
	st := &MockStore{}
	viewer := uuid.New()
	st.On("FollowingIDs", mock.Anything, viewer).Return([]uuid.UUID{}, nil)
	st.On("PostsByAuthors", mock.Anything, mock.Anything).Return([]models.Post{}, nil)
	st.On("ThrowsToRecipient", mock.Anything, viewer).Return(nil, nil)
	st.On("PublicThrowsForOwners", mock.Anything, mock.Anything).Return(nil, nil)

	recorder := &eventRecorder{}
	svc := NewFeedService(st, logging.Discard(), nil, recorder)

	clock := time.Now()
	svc.now = func() time.Time {
		clock = clock.Add(1500 * time.Millisecond)
		return clock
	}

	_, err := svc.ComposeFeed(context.Background(), viewer)
	require.NoError(t, err)
	assert.Empty(t, recorder.events)

	svc.SlowThreshold = time.Second
	_, err = svc.ComposeFeed(context.Background(), viewer)
	require.NoError(t, err)
	require.Len(t, recorder.events, 1)
	assert.Equal(t, "slow_feed_load", recorder.events[0].name)
	assert.Equal(t, int64(1500), recorder.events[0].metadata["duration_ms"])
}

func TestVisibleMessages(t *testing.T) {
	viewer := uuid.New()
	other := uuid.New()
	msg := func(s string) *string { return &s }

	item := FeedItem{ThrowData: []ThrowData{
		{ThrowID: uuid.New(), Thrower: models.Profile{ID: other}, RecipientID: uuid.New(), Message: msg("public"), IsPublic: true},
		{ThrowID: uuid.New(), Thrower: models.Profile{ID: other}, RecipientID: uuid.New(), Message: msg("private to someone else")},
		{ThrowID: uuid.New(), Thrower: models.Profile{ID: viewer}, RecipientID: other, Message: msg("sent by viewer")},
		{ThrowID: uuid.New(), Thrower: models.Profile{ID: other}, RecipientID: viewer, Message: msg("to viewer")},
		{ThrowID: uuid.New(), Thrower: models.Profile{ID: other}, RecipientID: viewer, Message: msg("   ")},
		{ThrowID: uuid.New(), Thrower: models.Profile{ID: other}, RecipientID: viewer},
	}}

	var got []string
	for _, td := range item.VisibleMessages(viewer) {
		got = append(got, *td.Message)
	}
	assert.Equal(t, []string{"public", "sent by viewer", "to viewer"}, got)
}

func TestApplyThrow(t *testing.T) {
	a := FeedItem{Post: models.Post{ID: uuid.New()}}
	b := FeedItem{Post: models.Post{ID: uuid.New()}}
	items := []FeedItem{a, b}

	updated := ApplyThrow(items, b.Post.ID)

	assert.False(t, updated[0].HasViewerThrown)
	assert.True(t, updated[1].HasViewerThrown)
	assert.False(t, items[1].HasViewerThrown, "input is not modified")

	unchanged := ApplyThrow(items, uuid.New())
	assert.Equal(t, items, unchanged)
}
