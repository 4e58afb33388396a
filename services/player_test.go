package services

import (
	"testing"
	"time"
	"typerush/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEnsureUser_CreatesOnFirstAccess(t *testing.T) {
	db := newTestDB(t)
	players := NewPlayerService(db, nil, 3, "")

	user, err := players.EnsureUser("user_abc123456")
	require.NoError(t, err)

	assert.Equal(t, "user_abc123456", user.WhopUserID)
	assert.Equal(t, "whop-user_abc", user.Username, "username derives from the id when the lookup is unavailable")
	assert.Equal(t, 3, user.Credits)
	assert.NotEmpty(t, user.ID)
}

func TestEnsureUser_ReturnsExisting(t *testing.T) {
	db := newTestDB(t)
	players := NewPlayerService(db, nil, 3, "")

	first, err := players.EnsureUser("user_1")
	require.NoError(t, err)

	again, err := players.EnsureUser("user_1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnsureUser_InsertRaceFallsBackToWinner(t *testing.T) {
	db := newTestDB(t)
	players := NewPlayerService(db, nil, 3, "")

	// Land a competing row between the miss and this call's insert, the way a
	// concurrent first access would.
	raced := false
	err := db.Callback().Create().Before("gorm:create").Register("competing_insert", func(tx *gorm.DB) {
		if raced {
			return
		}
		raced = true
		now := time.Now()
		_, execErr := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"INSERT INTO users (id, whop_user_id, username, credits, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			uuid.NewString(), "user_raced", "winner", 9, now, now)
		require.NoError(t, execErr)
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Callback().Create().Remove("competing_insert") })

	user, err := players.EnsureUser("user_raced")
	require.NoError(t, err)
	require.True(t, raced)

	assert.Equal(t, "winner", user.Username, "the losing insert adopts the winner's row")
	assert.Equal(t, 9, user.Credits)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnsureUser_DoesNotResetCredits(t *testing.T) {
	db := newTestDB(t)
	players := NewPlayerService(db, nil, 3, "")
	createTestUser(t, db, "user_1", "alice", 42)

	user, err := players.EnsureUser("user_1")
	require.NoError(t, err)
	assert.Equal(t, 42, user.Credits)
}

func TestEarnings(t *testing.T) {
	db := newTestDB(t)
	players := NewPlayerService(db, nil, 0, "")
	user := createTestUser(t, db, "user_1", "alice", 0)

	require.NoError(t, db.Create(&models.Reward{UserID: user.ID, RewardKey: "t1", Amount: 1.5}).Error)
	require.NoError(t, db.Create(&models.Reward{UserID: user.ID, RewardKey: "t2", Amount: 2.0}).Error)

	total, perTier, err := players.Earnings(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.5, total)
	assert.Equal(t, 1.5, perTier["t1"])
	assert.Equal(t, 2.0, perTier["t2"])
}

func TestEarnings_EmptyUser(t *testing.T) {
	db := newTestDB(t)
	players := NewPlayerService(db, nil, 0, "")
	user := createTestUser(t, db, "user_1", "alice", 0)

	total, perTier, err := players.Earnings(user.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, perTier)
}

func TestPersistCompany(t *testing.T) {
	db := newTestDB(t)
	players := NewPlayerService(db, nil, 0, "")
	user := createTestUser(t, db, "user_1", "alice", 0)

	title := "Typerush HQ"
	details := &CompanyDetails{ID: "biz_1", Title: &title, HasTitle: true}
	players.PersistCompany("user_1", details)

	var refreshed models.User
	require.NoError(t, db.First(&refreshed, "id = ?", user.ID).Error)
	require.NotNil(t, refreshed.CompanyID)
	assert.Equal(t, "biz_1", *refreshed.CompanyID)
	require.NotNil(t, refreshed.CompanyTitle)
	assert.Equal(t, "Typerush HQ", *refreshed.CompanyTitle)
	assert.Nil(t, refreshed.CompanyRoute, "absent fields stay untouched")
}

func TestBuildCompanyUpdate_PresenceSemantics(t *testing.T) {
	t.Parallel()

	route := "typerush"
	details := &CompanyDetails{
		ID:       "biz_1",
		Route:    &route,
		HasRoute: true,
		HasTitle: true, // present upstream but null
	}

	payload := BuildCompanyUpdate(details, "")
	assert.Equal(t, "biz_1", payload["company_id"])
	assert.Equal(t, &route, payload["company_route"])

	title, present := payload["company_title"]
	assert.True(t, present, "present-but-null fields overwrite with null")
	assert.Nil(t, title)

	_, present = payload["company_owner_name"]
	assert.False(t, present, "absent fields are not written")
}
