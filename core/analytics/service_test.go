package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence/academy/core/analytics"
	"github.com/cadence/academy/core/certificate"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
	"github.com/cadence/academy/storage/database/inmem"
	"github.com/cadence/academy/tests"
)

func TestService_Overview(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	users := inmemdb.NewUserRepository(db)
	catalog := inmemdb.NewCatalogRepository(db)
	store := inmemdb.NewProgressRepository(db)
	certs := inmemdb.NewCertificateRepository(db)
	svc := analytics.NewService(inmemdb.NewAnalyticsRepository(db))

	ov, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Zero(t, ov.TotalUsers)
	assert.Empty(t, ov.Modules)

	mod1 := testutil.CreateModule(t, catalog, 1, "Foundations")
	mod2 := testutil.CreateModule(t, catalog, 2, "Facilitation")
	sec2a := testutil.CreateSection(t, catalog, mod2.ID, "2A", 1)
	sec2b := testutil.CreateSection(t, catalog, mod2.ID, "2B", 2)

	done := testutil.CreateUser(t, users, "Done", "done@cadence.test", "", user.RoleFacilitator, "")
	failing := testutil.CreateUser(t, users, "Failing", "failing@cadence.test", "", "", "")
	testutil.CreateUser(t, users, "Pending", "pending@cadence.test", "", "", user.StatusPending)
	gone := testutil.CreateUser(t, users, "Gone", "gone@cadence.test", "", "", "")

	testutil.PassUnit(t, store, done.ID, training.ModuleUnit(mod1.ID), 90)
	testutil.PassUnit(t, store, done.ID, training.SectionUnit(sec2a.ID), 85)
	testutil.PassUnit(t, store, done.ID, training.SectionUnit(sec2b.ID), 95)
	testutil.PassUnit(t, store, failing.ID, training.ModuleUnit(mod1.ID), 76)
	testutil.PassUnit(t, store, gone.ID, training.ModuleUnit(mod1.ID), 100)

	for _, usr := range []user.User{done, gone} {
		_, _, err = certs.CreateIfNotExists(ctx, certificate.Certificate{ID: "cert-" + usr.ID, UserID: usr.ID, IssuedAt: time.Now()})
		require.NoError(t, err)
	}

	// deleted users are left out
	now := time.Now()
	gone.DeletedAt = &now
	_, err = users.UpdateUser(ctx, gone)
	require.NoError(t, err)

	ov, err = svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ov.TotalUsers)
	assert.Equal(t, map[string]int{user.StatusActive: 2, user.StatusPending: 1}, ov.UsersByStatus)
	assert.Equal(t, map[string]int{user.RoleFacilitator: 1, user.RoleTrainee: 2}, ov.UsersByRole)
	assert.Equal(t, 1, ov.CertificatesIssued)
	assert.Equal(t, []analytics.ModuleStats{
		{ModuleID: mod1.ID, Number: 1, Title: "Foundations", Started: 2, Completed: 1, AverageScore: 83},
		{ModuleID: mod2.ID, Number: 2, Title: "Facilitation", Started: 1, Completed: 1, AverageScore: 90},
	}, ov.Modules)
}
