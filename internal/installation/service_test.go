package installation

import (
	"context"
	"testing"
	"time"

	"github.com/nexuscentral/nexuscentral/internal/audit"
	"github.com/nexuscentral/nexuscentral/internal/company"
	"github.com/nexuscentral/nexuscentral/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Upsert(ctx context.Context, inst *Installation) error {
	args := m.Called(ctx, inst)
	return args.Error(0)
}

func (m *mockRepo) GetByMachine(ctx context.Context, companyID, machineID string) (*Installation, error) {
	args := m.Called(ctx, companyID, machineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Installation), args.Error(1)
}

func (m *mockRepo) CountActive(ctx context.Context, companyID string) (int, error) {
	args := m.Called(ctx, companyID)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) CountAllActive(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) RecordHeartbeat(ctx context.Context, companyID, machineID, appVersion, ipAddress string, at time.Time) error {
	args := m.Called(ctx, companyID, machineID, appVersion, ipAddress, at)
	return args.Error(0)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) Lookup(ctx context.Context, code string) (*company.Company, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*company.Company), args.Error(1)
}

func (m *mockDirectory) GrantedChannels(ctx context.Context, companyID string) ([]string, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

const testMachineID = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func testCompany(t *testing.T, v *vault.Vault, maxInstalls int) *company.Company {
	t.Helper()
	enc, err := v.EncryptCredential(vault.DatabaseCredential{
		Host: "db.internal.test", Port: 5432, Database: "nexus_apex_1234",
		Username: "nexus_apex_1234_user", Password: "pw",
	})
	require.NoError(t, err)

	future := time.Now().Add(24 * time.Hour)
	return &company.Company{
		ID:                 "c-1",
		Code:               "APEX-1234",
		Name:               "Acme Dental",
		DatabaseConfig:     enc,
		Settings:           company.Settings{AllowAutoUpdates: true, UpdateChannel: "stable"},
		SubscriptionStatus: company.StatusActive,
		MaxInstallations:   maxInstalls,
		ExpiresAt:          &future,
	}
}

func newFixture(t *testing.T) (*Service, *mockRepo, *mockDirectory, *vault.Vault) {
	t.Helper()
	v, err := vault.New("test-secret")
	require.NoError(t, err)
	repo := new(mockRepo)
	dir := new(mockDirectory)
	auditLogger := new(mockAudit)
	auditLogger.On("Log", mock.Anything, mock.Anything).Maybe()
	return NewService(repo, dir, v, auditLogger), repo, dir, v
}

// TestPurpose: Validates successful first-time admission below the seat cap.
// Scope: Unit Test
// Expected: Row upserted with is_active=true, decrypted credential and
// resolved channel returned.
// Test Case ID: INS-01
func TestInstallation_Validate_AdmitsNewMachine(t *testing.T) {
	svc, repo, dir, v := newFixture(t)
	ctx := context.Background()
	c := testCompany(t, v, 2)

	dir.On("Lookup", ctx, "APEX-1234").Return(c, nil)
	dir.On("GrantedChannels", ctx, "c-1").Return([]string(nil), nil)
	repo.On("CountActive", ctx, "c-1").Return(1, nil)
	repo.On("Upsert", ctx, mock.MatchedBy(func(i *Installation) bool {
		return i.CompanyID == "c-1" && i.MachineID == testMachineID && i.IsActive
	})).Return(nil)

	res, err := svc.Validate(ctx, AdmissionRequest{
		Code: "APEX-1234", MachineID: testMachineID, Hostname: "RECEPTION-PC", IPAddress: "203.0.113.9",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Dental", res.CompanyName)
	assert.Equal(t, "nexus_apex_1234", res.Credential.Database)
	assert.Equal(t, "stable", res.UpdateChannel)
	repo.AssertExpectations(t)
}

// TestPurpose: Validates seat-limit enforcement with idempotent
// re-admission for already-bound machines.
// Scope: Unit Test
// Expected: At the cap, an unknown machine fails ErrSeatLimitExceeded; a
// bound machine re-validates without consuming a seat.
// Test Case ID: INS-02
func TestInstallation_Validate_SeatLimit(t *testing.T) {
	svc, repo, dir, v := newFixture(t)
	ctx := context.Background()
	c := testCompany(t, v, 2)

	dir.On("Lookup", ctx, "APEX-1234").Return(c, nil)
	dir.On("GrantedChannels", ctx, "c-1").Return([]string(nil), nil)
	repo.On("CountActive", ctx, "c-1").Return(2, nil)

	// Unknown third machine is rejected.
	repo.On("GetByMachine", ctx, "c-1", "unknown-machine").Return(nil, ErrInstallationNotFound).Once()
	_, err := svc.Validate(ctx, AdmissionRequest{Code: "APEX-1234", MachineID: "unknown-machine"})
	assert.ErrorIs(t, err, ErrSeatLimitExceeded)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)

	// A bound active machine still re-validates at the cap.
	repo.On("GetByMachine", ctx, "c-1", testMachineID).Return(&Installation{MachineID: testMachineID, IsActive: true}, nil).Once()
	repo.On("Upsert", ctx, mock.Anything).Return(nil).Once()
	_, err = svc.Validate(ctx, AdmissionRequest{Code: "APEX-1234", MachineID: testMachineID})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

// TestPurpose: Validates that a deactivated row does not grant re-admission
// at the seat cap.
// Scope: Unit Test
// Expected: At the cap, a machine whose row is inactive is rejected with
// ErrSeatLimitExceeded, the denial is audited and no row is written.
// Test Case ID: INS-08
func TestInstallation_Validate_SeatLimit_InactiveRow(t *testing.T) {
	v, err := vault.New("test-secret")
	require.NoError(t, err)
	repo := new(mockRepo)
	dir := new(mockDirectory)
	auditLogger := new(mockAudit)
	svc := NewService(repo, dir, v, auditLogger)
	ctx := context.Background()
	c := testCompany(t, v, 2)

	dir.On("Lookup", ctx, "APEX-1234").Return(c, nil)
	repo.On("CountActive", ctx, "c-1").Return(2, nil)
	repo.On("GetByMachine", ctx, "c-1", testMachineID).
		Return(&Installation{MachineID: testMachineID, IsActive: false}, nil)
	auditLogger.On("Log", ctx, mock.MatchedBy(func(e audit.Event) bool {
		return e.Action == audit.ActionValidationDenied && e.Details["reason"] == "installation_limit_reached"
	})).Once()

	_, err = svc.Validate(ctx, AdmissionRequest{Code: "APEX-1234", MachineID: testMachineID})
	assert.ErrorIs(t, err, ErrSeatLimitExceeded)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	auditLogger.AssertExpectations(t)
}

// TestPurpose: Validates denial for suspended and expired companies.
// Scope: Unit Test
// Expected: Business denials surface as the company sentinel errors without
// touching the installation store.
// Test Case ID: INS-03
func TestInstallation_Validate_UnusableCompany(t *testing.T) {
	svc, repo, dir, v := newFixture(t)
	ctx := context.Background()

	suspended := testCompany(t, v, 2)
	suspended.SubscriptionStatus = company.StatusSuspended
	dir.On("Lookup", ctx, "SUSP-0001").Return(suspended, nil)

	_, err := svc.Validate(ctx, AdmissionRequest{Code: "SUSP-0001", MachineID: testMachineID})
	assert.ErrorIs(t, err, company.ErrCompanySuspended)

	expired := testCompany(t, v, 2)
	past := time.Now().Add(-time.Hour)
	expired.ExpiresAt = &past
	dir.On("Lookup", ctx, "EXPD-0001").Return(expired, nil)

	_, err = svc.Validate(ctx, AdmissionRequest{Code: "EXPD-0001", MachineID: testMachineID})
	assert.ErrorIs(t, err, company.ErrCompanyExpired)

	repo.AssertNotCalled(t, "CountActive", mock.Anything, mock.Anything)
}

// TestPurpose: Validates the effective update channel resolution order.
// Scope: Unit Test
// Expected: Explicit grant beats the settings bag; settings beat the stable
// default.
// Test Case ID: INS-04
func TestInstallation_Validate_ChannelResolution(t *testing.T) {
	svc, repo, dir, v := newFixture(t)
	ctx := context.Background()

	c := testCompany(t, v, 5)
	c.Settings.UpdateChannel = "beta"
	dir.On("Lookup", ctx, "APEX-1234").Return(c, nil)
	repo.On("CountActive", ctx, "c-1").Return(0, nil)
	repo.On("Upsert", ctx, mock.Anything).Return(nil)

	dir.On("GrantedChannels", ctx, "c-1").Return([]string{"alpha"}, nil).Once()
	res, err := svc.Validate(ctx, AdmissionRequest{Code: "APEX-1234", MachineID: testMachineID})
	require.NoError(t, err)
	assert.Equal(t, "alpha", res.UpdateChannel)

	dir.On("GrantedChannels", ctx, "c-1").Return([]string(nil), nil).Once()
	res, err = svc.Validate(ctx, AdmissionRequest{Code: "APEX-1234", MachineID: testMachineID})
	require.NoError(t, err)
	assert.Equal(t, "beta", res.UpdateChannel)
}

// TestPurpose: Validates heartbeat force-update and settings-change
// signaling with best-effort row updates.
// Scope: Unit Test
// Expected: Below-force-version clients get ForceUpdate; stale settings
// versions get SettingsChanged; a missing row never fails the call.
// Test Case ID: INS-05
func TestInstallation_Heartbeat(t *testing.T) {
	svc, repo, dir, v := newFixture(t)
	ctx := context.Background()

	c := testCompany(t, v, 2)
	c.Settings.ForceUpdateVersion = "2.0.0"
	c.Settings.SettingsVersion = "4"
	dir.On("Lookup", ctx, "APEX-1234").Return(c, nil)

	// Row update fails: heartbeat still succeeds.
	repo.On("RecordHeartbeat", ctx, "c-1", testMachineID, "1.9.0", "203.0.113.9", mock.Anything).
		Return(ErrInstallationNotFound)

	res, err := svc.Heartbeat(ctx, HeartbeatRequest{
		Code: "APEX-1234", MachineID: testMachineID, AppVersion: "1.9.0",
		SettingsVersion: "3", IPAddress: "203.0.113.9",
	})
	require.NoError(t, err)
	assert.True(t, res.ForceUpdate)
	assert.True(t, res.SettingsChanged)
	assert.Equal(t, company.StatusActive, res.SubscriptionStatus)
}

// TestPurpose: Validates heartbeat quiescence when the client is current.
// Scope: Unit Test
// Expected: No force-update at or above the required version; no settings
// change when versions match.
// Test Case ID: INS-06
func TestInstallation_Heartbeat_NoSignals(t *testing.T) {
	svc, repo, dir, v := newFixture(t)
	ctx := context.Background()

	c := testCompany(t, v, 2)
	c.Settings.ForceUpdateVersion = "2.0.0"
	c.Settings.SettingsVersion = "4"
	dir.On("Lookup", ctx, "APEX-1234").Return(c, nil)
	repo.On("RecordHeartbeat", ctx, "c-1", testMachineID, "2.0.0", "", mock.Anything).Return(nil)

	res, err := svc.Heartbeat(ctx, HeartbeatRequest{
		Code: "APEX-1234", MachineID: testMachineID, AppVersion: "2.0.0", SettingsVersion: "4",
	})
	require.NoError(t, err)
	assert.False(t, res.ForceUpdate)
	assert.False(t, res.SettingsChanged)
}

// TestPurpose: Validates heartbeat rejection for unknown tenants.
// Scope: Unit Test
// Expected: Unknown company codes are a hard failure and the attempt is
// audited as a denial.
// Test Case ID: INS-07
func TestInstallation_Heartbeat_UnknownTenant(t *testing.T) {
	v, err := vault.New("test-secret")
	require.NoError(t, err)
	repo := new(mockRepo)
	dir := new(mockDirectory)
	auditLogger := new(mockAudit)
	svc := NewService(repo, dir, v, auditLogger)
	ctx := context.Background()

	dir.On("Lookup", ctx, "NOPE-0000").Return(nil, company.ErrCompanyNotFound)
	auditLogger.On("Log", ctx, mock.MatchedBy(func(e audit.Event) bool {
		return e.Action == audit.ActionValidationDenied && e.Details["reason"] == "unknown_code"
	})).Once()

	_, err = svc.Heartbeat(ctx, HeartbeatRequest{Code: "NOPE-0000", MachineID: testMachineID})
	assert.ErrorIs(t, err, company.ErrCompanyNotFound)
	auditLogger.AssertExpectations(t)
}
