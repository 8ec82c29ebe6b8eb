package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/auth"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/credentials"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/metrics"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/password"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/profiles"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeUploader maps local paths to URLs; paths listed in fail are rejected.
type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeUploader) Upload(ctx context.Context, localPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, localPath)
	if f.fail[localPath] {
		return "", errors.New("storage unavailable")
	}
	return "https://cdn.example.com/" + localPath, nil
}

var testAuthConfig = auth.Config{
	AccessSecret:  []byte("access-secret"),
	AccessTTL:     15 * time.Minute,
	RefreshSecret: []byte("refresh-secret"),
	RefreshTTL:    24 * time.Hour,
}

type fixture struct {
	svc      *UserService
	repo     *accounts.MemoryRepository
	profiles *profiles.MemoryRepository
	uploader *fakeUploader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := accounts.NewMemoryRepository()
	prof := profiles.NewMemoryRepository(repo)
	up := &fakeUploader{fail: map[string]bool{}}
	store := credentials.NewStore(repo, password.NewBcryptHasher(bcrypt.MinCost))
	svc := NewUserService(store, auth.NewIssuer(testAuthConfig), prof, up, logging.NewDiscardLogger())
	return &fixture{svc: svc, repo: repo, profiles: prof, uploader: up}
}

func registerInput() RegisterInput {
	return RegisterInput{
		Username:   "Alice",
		Email:      "alice@example.com",
		FullName:   "Alice A",
		Password:   "s3cret!",
		AvatarPath: "avatar.png",
	}
}

func (f *fixture) register(t *testing.T) string {
	t.Helper()
	v, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	return v.ID
}

func (f *fixture) login(t *testing.T) *LoginResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "s3cret!"})
	require.NoError(t, err)
	return res
}

func (f *fixture) storedToken(t *testing.T, id string) *string {
	t.Helper()
	a, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return a.RefreshToken
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	in := registerInput()
	in.CoverImagePath = "cover.png"

	v, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "alice", v.Username)
	assert.Equal(t, "https://cdn.example.com/avatar.png", v.AvatarURL)
	assert.Equal(t, "https://cdn.example.com/cover.png", v.CoverImageURL)

	a, err := f.repo.FindByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", a.PasswordHash)
	assert.Nil(t, a.RefreshToken)
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"blank username", func(in *RegisterInput) { in.Username = "  " }},
		{"blank email", func(in *RegisterInput) { in.Email = "" }},
		{"blank fullname", func(in *RegisterInput) { in.FullName = "\t" }},
		{"blank password", func(in *RegisterInput) { in.Password = "" }},
		{"missing avatar", func(in *RegisterInput) { in.AvatarPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := registerInput()
			tt.mutate(&in)

			_, err := f.svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Empty(t, f.uploader.calls)
		})
	}
}

func TestRegister_DuplicateCheckedBeforeUpload(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	f.uploader.calls = nil

	in := registerInput()
	in.Username = "someone-else"
	in.Email = " ALICE@example.com "
	_, err := f.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, common.ErrDuplicateIdentifier)
	assert.Empty(t, f.uploader.calls, "no upload for a duplicate")
}

func TestRegister_AvatarUploadFailureCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.uploader.fail["avatar.png"] = true

	_, err := f.svc.Register(context.Background(), registerInput())
	assert.ErrorIs(t, err, common.ErrUploadFailed)
	assert.Equal(t, "upload failed: avatar", err.Error())

	exists, _ := f.repo.ExistsByIdentifier(context.Background(), "alice", "")
	assert.False(t, exists)
}

func TestRegister_CoverUploadFailureIsTolerated(t *testing.T) {
	f := newFixture(t)
	f.uploader.fail["cover.png"] = true
	in := registerInput()
	in.CoverImagePath = "cover.png"

	v, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "", v.CoverImageURL)
}

// --- Login ---

func TestLogin_StoresReturnedRefreshToken(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)

	res := f.login(t)
	assert.Equal(t, id, res.User.ID)
	assert.NotEmpty(t, res.AccessToken)

	stored := f.storedToken(t, id)
	require.NotNil(t, stored)
	assert.Equal(t, res.RefreshToken, *stored)

	claims, err := auth.NewIssuer(testAuthConfig).Verify(res.AccessToken, auth.Access)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestLogin_ByEmailCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "ALICE@example.com", Password: "s3cret!"})
	assert.NoError(t, err)
}

func TestLogin_SameErrorForUnknownAndWrongPassword(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)

	_, errUnknown := f.svc.Login(context.Background(), LoginInput{Username: "bob", Password: "s3cret!"})
	_, errWrong := f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "nope"})

	assert.ErrorIs(t, errUnknown, common.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, common.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
	assert.Nil(t, f.storedToken(t, id), "failed login must not write a token")
}

func TestLogin_RequiresIdentifier(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), LoginInput{Password: "x"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	first := f.login(t)
	second := f.login(t)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err := f.svc.RefreshSession(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrSessionExpiredOrReused)
}

// --- RefreshSession ---

func TestRefreshSession_RotatesAndIsSingleUse(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)
	res := f.login(t)

	pair, err := f.svc.RefreshSession(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, pair.RefreshToken, *f.storedToken(t, id))

	_, err = f.svc.RefreshSession(context.Background(), res.RefreshToken)
	assert.ErrorIs(t, err, common.ErrSessionExpiredOrReused)
	assert.Equal(t, pair.RefreshToken, *f.storedToken(t, id), "reuse must not mutate the stored token")
}

func TestRefreshSession_UnauthorizedWithoutMutation(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)
	res := f.login(t)

	expired, err := auth.NewIssuer(auth.Config{
		AccessSecret:  testAuthConfig.AccessSecret,
		AccessTTL:     time.Minute,
		RefreshSecret: testAuthConfig.RefreshSecret,
		RefreshTTL:    -time.Minute,
	}).IssueRefresh(id)
	require.NoError(t, err)

	forged, err := auth.NewIssuer(auth.Config{
		AccessSecret:  []byte("x"),
		AccessTTL:     time.Minute,
		RefreshSecret: []byte("other-secret"),
		RefreshTTL:    time.Hour,
	}).IssueRefresh(id)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":         "",
		"malformed":     "not.a.jwt",
		"expired":       expired,
		"bad signature": forged,
		"access token":  res.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.RefreshSession(context.Background(), token)
			assert.ErrorIs(t, err, common.ErrorUnauthorized)
			assert.Equal(t, res.RefreshToken, *f.storedToken(t, id))
		})
	}
}

func TestRefreshSession_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	token, err := auth.NewIssuer(testAuthConfig).IssueRefresh("ghost")
	require.NoError(t, err)

	_, err = f.svc.RefreshSession(context.Background(), token)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRefreshSession_ConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	res := f.login(t)

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RefreshSession(context.Background(), res.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, common.ErrSessionExpiredOrReused):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, rejected)
}

// --- Logout ---

func TestLogout_ThenRefreshFails(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)
	res := f.login(t)

	require.NoError(t, f.svc.Logout(context.Background(), id))
	assert.Nil(t, f.storedToken(t, id))

	_, err := f.svc.RefreshSession(context.Background(), res.RefreshToken)
	assert.ErrorIs(t, err, common.ErrSessionExpiredOrReused)
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)

	require.NoError(t, f.svc.Logout(context.Background(), id))
	require.NoError(t, f.svc.Logout(context.Background(), id))
	require.NoError(t, f.svc.Logout(context.Background(), "ghost"))
}

// --- ChangePassword ---

func TestChangePassword_MismatchLeavesHashUnchanged(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)
	before, _ := f.repo.FindByID(context.Background(), id)

	err := f.svc.ChangePassword(context.Background(), id, ChangePasswordInput{
		OldPassword: "s3cret!", NewPassword: "a", ConfirmPassword: "b",
	})
	assert.ErrorIs(t, err, common.ErrValidation)

	after, _ := f.repo.FindByID(context.Background(), id)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)

	err := f.svc.ChangePassword(context.Background(), id, ChangePasswordInput{
		OldPassword: "wrong", NewPassword: "n3w", ConfirmPassword: "n3w",
	})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestChangePassword_SuccessRevokesSession(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)
	res := f.login(t)

	require.NoError(t, f.svc.ChangePassword(context.Background(), id, ChangePasswordInput{
		OldPassword: "s3cret!", NewPassword: "n3w-pass", ConfirmPassword: "n3w-pass",
	}))

	assert.Nil(t, f.storedToken(t, id))
	_, err := f.svc.RefreshSession(context.Background(), res.RefreshToken)
	assert.ErrorIs(t, err, common.ErrSessionExpiredOrReused)

	_, err = f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "s3cret!"})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "n3w-pass"})
	assert.NoError(t, err)
}

// --- Profile ---

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)
	in := registerInput()
	in.Username, in.Email = "bob", "bob@example.com"
	_, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(context.Background(), id, "", "x@example.com")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.UpdateProfile(context.Background(), id, "Alice", "bob@example.com")
	assert.ErrorIs(t, err, common.ErrDuplicateIdentifier)

	v, err := f.svc.UpdateProfile(context.Background(), id, "Alice Z", "alice.z@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice Z", v.FullName)
	assert.Equal(t, "alice.z@example.com", v.Email)
}

func TestCurrentAccount(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)

	v, err := f.svc.CurrentAccount(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "alice", v.Username)

	_, err = f.svc.CurrentAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateImages(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)

	v, err := f.svc.UpdateCoverImage(context.Background(), id, "new-cover.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/new-cover.png", v.CoverImageURL)
	assert.Equal(t, "https://cdn.example.com/avatar.png", v.AvatarURL, "cover update must not touch the avatar")

	v, err = f.svc.UpdateAvatar(context.Background(), id, "new-avatar.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/new-avatar.png", v.AvatarURL)

	_, err = f.svc.UpdateAvatar(context.Background(), id, "")
	assert.ErrorIs(t, err, common.ErrValidation)

	f.uploader.fail["broken.png"] = true
	_, err = f.svc.UpdateCoverImage(context.Background(), id, "broken.png")
	assert.ErrorIs(t, err, common.ErrUploadFailed)
	assert.NotContains(t, err.Error(), "storage unavailable")
}

func TestWriteOperationsAreCounted(t *testing.T) {
	f := newFixture(t)
	id := f.register(t)
	ctx := context.Background()

	count := func(op, outcome string) float64 {
		return testutil.ToFloat64(metrics.AuthOperations.WithLabelValues(op, outcome))
	}

	before := count("update_profile", metrics.OutcomeSuccess)
	_, err := f.svc.UpdateProfile(ctx, id, "Alice Z", "alice.z@example.com")
	require.NoError(t, err)
	assert.Equal(t, before+1, count("update_profile", metrics.OutcomeSuccess))

	before = count("update_profile", metrics.OutcomeRejected)
	_, err = f.svc.UpdateProfile(ctx, id, "", "")
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, before+1, count("update_profile", metrics.OutcomeRejected))

	before = count("update_avatar", metrics.OutcomeSuccess)
	_, err = f.svc.UpdateAvatar(ctx, id, "a2.png")
	require.NoError(t, err)
	assert.Equal(t, before+1, count("update_avatar", metrics.OutcomeSuccess))

	f.uploader.fail["c2.png"] = true
	before = count("update_cover_image", metrics.OutcomeRejected)
	_, err = f.svc.UpdateCoverImage(ctx, id, "c2.png")
	require.ErrorIs(t, err, common.ErrUploadFailed)
	assert.Equal(t, before+1, count("update_cover_image", metrics.OutcomeRejected))
}

func TestChannelProfileAndHistory(t *testing.T) {
	f := newFixture(t)
	aliceID := f.register(t)
	in := registerInput()
	in.Username, in.Email = "bob", "bob@example.com"
	bob, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)

	f.profiles.Subscribe(aliceID, bob.ID)
	videoID := f.profiles.AddVideo(profiles.Video{OwnerID: bob.ID, Title: "Intro"})
	require.NoError(t, f.repo.AppendWatchHistory(context.Background(), aliceID, videoID))

	p, err := f.svc.ChannelProfile(context.Background(), " BOB ", aliceID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.SubscribersCount)
	assert.True(t, p.IsSubscribed)

	_, err = f.svc.ChannelProfile(context.Background(), " ", aliceID)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.ChannelProfile(context.Background(), "nobody", aliceID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	items, err := f.svc.WatchHistory(context.Background(), aliceID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Intro", items[0].Title)
	assert.True(t, strings.EqualFold("bob", items[0].Owner.Username))
}
