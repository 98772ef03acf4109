package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nexuscentral/nexuscentral/internal/audit"
	"github.com/nexuscentral/nexuscentral/internal/company"
	"github.com/nexuscentral/nexuscentral/internal/installation"
	"github.com/nexuscentral/nexuscentral/internal/observability/metrics"
	"github.com/nexuscentral/nexuscentral/internal/ratelimit"
	"github.com/nexuscentral/nexuscentral/internal/update"
	"github.com/nexuscentral/nexuscentral/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const (
	testAdminSecret = "test-admin-secret"
	testMachineID   = "a3f8c2e1d4b5a6978877665544332211a3f8c2e1d4b5a6978877665544332211"
)

// In-memory repositories backing the full service stack under httptest.

type memCompanies struct {
	byCode map[string]*company.Company
	grants map[string][]string
}

func newMemCompanies() *memCompanies {
	return &memCompanies{byCode: map[string]*company.Company{}, grants: map[string][]string{}}
}

func (m *memCompanies) Create(_ context.Context, c *company.Company) error {
	m.byCode[c.Code] = c
	return nil
}

func (m *memCompanies) GetByCode(_ context.Context, code string) (*company.Company, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, company.ErrCompanyNotFound
	}
	return c, nil
}

func (m *memCompanies) ExistsByCode(_ context.Context, code string) (bool, error) {
	_, ok := m.byCode[code]
	return ok, nil
}

func (m *memCompanies) Count(_ context.Context) (int, error) {
	return len(m.byCode), nil
}

func (m *memCompanies) ListWithCounts(_ context.Context) ([]*company.WithInstallations, error) {
	var out []*company.WithInstallations
	for _, c := range m.byCode {
		out = append(out, &company.WithInstallations{Company: *c})
	}
	return out, nil
}

func (m *memCompanies) GrantedChannels(_ context.Context, companyID string) ([]string, error) {
	return m.grants[companyID], nil
}

type memInstalls struct {
	rows map[string]*installation.Installation
}

func newMemInstalls() *memInstalls {
	return &memInstalls{rows: map[string]*installation.Installation{}}
}

func (m *memInstalls) key(companyID, machineID string) string {
	return companyID + "/" + machineID
}

func (m *memInstalls) Upsert(_ context.Context, inst *installation.Installation) error {
	m.rows[m.key(inst.CompanyID, inst.MachineID)] = inst
	return nil
}

func (m *memInstalls) GetByMachine(_ context.Context, companyID, machineID string) (*installation.Installation, error) {
	inst, ok := m.rows[m.key(companyID, machineID)]
	if !ok {
		return nil, installation.ErrInstallationNotFound
	}
	return inst, nil
}

func (m *memInstalls) CountActive(_ context.Context, companyID string) (int, error) {
	n := 0
	for _, inst := range m.rows {
		if inst.CompanyID == companyID && inst.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *memInstalls) CountAllActive(_ context.Context) (int, error) {
	n := 0
	for _, inst := range m.rows {
		if inst.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *memInstalls) RecordHeartbeat(_ context.Context, companyID, machineID, appVersion, ipAddress string, at time.Time) error {
	inst, ok := m.rows[m.key(companyID, machineID)]
	if !ok {
		return installation.ErrInstallationNotFound
	}
	inst.AppVersion = appVersion
	inst.IPAddress = ipAddress
	inst.LastHeartbeat = at
	return nil
}

type memChannels struct {
	byName map[string]*update.Channel
}

func newMemChannels() *memChannels {
	return &memChannels{byName: map[string]*update.Channel{}}
}

func (m *memChannels) GetByName(_ context.Context, name string) (*update.Channel, error) {
	ch, ok := m.byName[name]
	if !ok {
		return nil, update.ErrChannelNotFound
	}
	return ch, nil
}

func (m *memChannels) GetByVersion(_ context.Context, version string) (*update.Channel, error) {
	for _, ch := range m.byName {
		if ch.CurrentVersion == version {
			return ch, nil
		}
	}
	return nil, update.ErrChannelNotFound
}

func (m *memChannels) List(_ context.Context) ([]*update.Channel, error) {
	var out []*update.Channel
	for _, ch := range m.byName {
		out = append(out, ch)
	}
	return out, nil
}

func (m *memChannels) Publish(_ context.Context, ch *update.Channel) error {
	m.byName[ch.Name] = ch
	return nil
}

type noopAudit struct{}

func (noopAudit) Log(context.Context, audit.Event) {}

type fixture struct {
	router    http.Handler
	companies *memCompanies
	installs  *memInstalls
	channels  *memChannels
}

func newFixture(t *testing.T, governor *ratelimit.Governor) *fixture {
	t.Helper()

	v, err := vault.New("test-secret")
	require.NoError(t, err)

	companies := newMemCompanies()
	installs := newMemInstalls()
	channels := newMemChannels()

	companyService := company.NewService(companies, v, noopAudit{}, "db.internal.test", 2)
	installationService := installation.NewService(installs, companyService, v, noopAudit{})
	updateService := update.NewService(channels, companyService, noopAudit{}, "http://localhost:8080")

	meter, err := metrics.New(context.Background(), metrics.Config{Enabled: true}, "nexuscentral-test")
	require.NoError(t, err)
	m, err := NewMetrics(meter)
	require.NoError(t, err)

	h := NewHandler(companyService, installationService, updateService, noopAudit{}, testAdminSecret, m)
	if governor == nil {
		governor = ratelimit.NewGovernor(nil, ratelimit.Rule{MaxRequests: 100000, Window: time.Minute})
	}

	return &fixture{
		router:    NewRouter(h, governor),
		companies: companies,
		installs:  installs,
		channels:  channels,
	}
}

func (f *fixture) do(t *testing.T, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) register(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/company/register", map[string]any{
		"company_name": "Acme Dental",
		"email":        "admin@acme.example",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		CompanyCode string `json:"company_code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.CompanyCode
}

// TestPurpose: Validates tenant registration over HTTP: 201 with the
// one-time plaintext credential, 400 on malformed input.
// Scope: Integration Test (httptest)
// Expected: Response carries company_code matching the issued format and a
// complete database_config; invalid email is rejected before the service.
// Test Case ID: HTTP-01
func TestHTTP_RegisterCompany(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/company/register", map[string]any{
		"company_name":      "Acme Dental",
		"email":             "admin@acme.example",
		"subscription_tier": "professional",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		CompanyCode    string                   `json:"company_code"`
		DatabaseConfig vault.DatabaseCredential `json:"database_config"`
		Subscription   struct {
			Status string `json:"status"`
			Tier   string `json:"tier"`
		} `json:"subscription"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Regexp(t, `^[A-Z]+-\d{4}$`, resp.CompanyCode)
	assert.NotEmpty(t, resp.DatabaseConfig.Password)
	assert.Equal(t, "trial", resp.Subscription.Status)
	assert.Equal(t, "professional", resp.Subscription.Tier)

	// Malformed email never reaches the service.
	rec = f.do(t, http.MethodPost, "/api/company/register", map[string]any{
		"company_name": "Acme Dental",
		"email":        "not-an-email",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestPurpose: Validates installation admission: 200 with decrypted
// credential, 404 for unknown codes, 400 for malformed machine IDs.
// Scope: Integration Test (httptest)
// Expected: Valid admission returns database_config and update_channel;
// a 20-char machine_id fails validation.
// Test Case ID: HTTP-02
func TestHTTP_ValidateInstallation(t *testing.T) {
	f := newFixture(t, nil)
	code := f.register(t)

	rec := f.do(t, http.MethodPost, "/api/company/validate", map[string]any{
		"company_code": code,
		"machine_id":   testMachineID,
		"hostname":     "FRONT-DESK-01",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Valid          bool                     `json:"valid"`
		DatabaseConfig vault.DatabaseCredential `json:"database_config"`
		UpdateChannel  string                   `json:"update_channel"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.NotEmpty(t, resp.DatabaseConfig.Database)
	assert.Equal(t, "stable", resp.UpdateChannel)

	rec = f.do(t, http.MethodPost, "/api/company/validate", map[string]any{
		"company_code": "FAST-0000",
		"machine_id":   testMachineID,
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/company/validate", map[string]any{
		"company_code": code,
		"machine_id":   "too-short",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestPurpose: Validates the seat limit boundary over HTTP.
// Scope: Integration Test (httptest)
// Expected: With max 2 seats, the third distinct machine gets 403; an
// already-bound machine still re-validates at the cap.
// Test Case ID: HTTP-03
func TestHTTP_ValidateInstallation_SeatLimit(t *testing.T) {
	f := newFixture(t, nil)
	code := f.register(t)

	second := strings.Replace(testMachineID, "a3f8", "b4a9", 1)
	third := strings.Replace(testMachineID, "a3f8", "c5ba", 1)

	for _, machine := range []string{testMachineID, second} {
		rec := f.do(t, http.MethodPost, "/api/company/validate", map[string]any{
			"company_code": code,
			"machine_id":   machine,
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/company/validate", map[string]any{
		"company_code": code,
		"machine_id":   third,
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Known machine refreshes, not a new seat.
	rec = f.do(t, http.MethodPost, "/api/company/validate", map[string]any{
		"company_code": code,
		"machine_id":   testMachineID,
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestPurpose: Validates heartbeat processing over HTTP.
// Scope: Integration Test (httptest)
// Expected: 200 with force_update/settings_changed flags; 404 for an
// unknown tenant code.
// Test Case ID: HTTP-04
func TestHTTP_Heartbeat(t *testing.T) {
	f := newFixture(t, nil)
	code := f.register(t)

	rec := f.do(t, http.MethodPost, "/api/company/heartbeat", map[string]any{
		"company_code": code,
		"machine_id":   testMachineID,
		"app_version":  "1.4.2",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status             string `json:"status"`
		ForceUpdate        bool   `json:"force_update"`
		SubscriptionStatus string `json:"subscription_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.ForceUpdate)
	assert.Equal(t, "trial", resp.SubscriptionStatus)

	rec = f.do(t, http.MethodPost, "/api/company/heartbeat", map[string]any{
		"company_code": "FAST-0000",
		"machine_id":   testMachineID,
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestPurpose: Validates update check semantics: offer vs 204.
// Scope: Integration Test (httptest)
// Expected: Outdated caller gets 200 with version and download URL; current
// caller gets 204 with an empty body; missing params get 400.
// Test Case ID: HTTP-05
func TestHTTP_CheckForUpdate(t *testing.T) {
	f := newFixture(t, nil)
	code := f.register(t)
	f.channels.byName["stable"] = &update.Channel{
		ID: "ch-1", Name: "stable", CurrentVersion: "2.0.0",
		FileURL: "https://cdn.example.com/nexus-setup-2.0.0.exe", FileSize: 1024,
		PublishedAt: time.Now(),
	}

	rec := f.do(t, http.MethodGet, "/api/updates/check?company_code="+code+"&version=1.0.0", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info update.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "2.0.0", info.Version)
	assert.Contains(t, info.URL, "/api/updates/download/2.0.0")

	rec = f.do(t, http.MethodGet, "/api/updates/check?company_code="+code+"&version=2.0.0", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = f.do(t, http.MethodGet, "/api/updates/check?company_code="+code, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestPurpose: Validates the static manifest and download endpoints.
// Scope: Integration Test (httptest)
// Expected: latest.yml is served as text/yaml and opens with the channel
// version; download is a 302 to the external artifact.
// Test Case ID: HTTP-06
func TestHTTP_ManifestAndDownload(t *testing.T) {
	f := newFixture(t, nil)
	code := f.register(t)
	f.channels.byName["stable"] = &update.Channel{
		ID: "ch-1", Name: "stable", CurrentVersion: "2.0.0",
		FileURL: "https://cdn.example.com/nexus-setup-2.0.0.exe", FileSize: 1024,
		PublishedAt: time.Now(),
	}

	rec := f.do(t, http.MethodGet, "/api/updates/latest.yml?company_code="+code, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/yaml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "version: 2.0.0\n"))

	rec = f.do(t, http.MethodGet, "/api/updates/latest.yml", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/updates/download/2.0.0?company_code="+code, nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://cdn.example.com/nexus-setup-2.0.0.exe", rec.Header().Get("Location"))

	// Missing company_code is a malformed request, not a denial.
	rec = f.do(t, http.MethodGet, "/api/updates/download/2.0.0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestPurpose: Validates uniform admin authentication, publish included.
// Scope: Integration Test (httptest)
// Security: No admin route may respond without the exact shared secret.
// Expected: 403 without or with a wrong secret on every admin route; with
// the secret, publish round-trips into stats and the channel list.
// Test Case ID: HTTP-07
func TestHTTP_AdminSurface(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t)

	adminHeader := map[string]string{"X-Admin-Secret": testAdminSecret}

	for _, target := range []string{"/api/admin/companies", "/api/admin/updates", "/api/admin/stats"} {
		rec := f.do(t, http.MethodGet, target, nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, target)

		rec = f.do(t, http.MethodGet, target, nil, map[string]string{"X-Admin-Secret": "wrong"})
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
	}

	rec := f.do(t, http.MethodPost, "/api/admin/updates", map[string]any{"version": "3.1.0"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/updates", map[string]any{
		"version":   "3.1.0",
		"channel":   "stable",
		"file_url":  "https://cdn.example.com/nexus-setup-3.1.0.exe",
		"file_size": 2048,
	}, adminHeader)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/stats", nil, adminHeader)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		TotalCompanies int    `json:"total_companies"`
		LatestVersion  string `json:"latest_version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalCompanies)
	assert.Equal(t, "3.1.0", stats.LatestVersion)

	rec = f.do(t, http.MethodGet, "/api/admin/companies", nil, adminHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme Dental")
}

// TestPurpose: Validates governor enforcement at the HTTP boundary.
// Scope: Integration Test (httptest)
// Expected: The third request inside the window gets 429 with Retry-After
// and X-RateLimit headers; admitted requests report the remaining budget.
// Test Case ID: HTTP-08
func TestHTTP_RateLimiting(t *testing.T) {
	governor := ratelimit.NewGovernor(
		[]ratelimit.Rule{{Prefix: "/api/company/heartbeat", MaxRequests: 2, Window: time.Minute}},
		ratelimit.Rule{MaxRequests: 100000, Window: time.Minute},
	)
	f := newFixture(t, governor)
	code := f.register(t)

	body := map[string]any{"company_code": code, "machine_id": testMachineID}

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/api/company/heartbeat", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := f.do(t, http.MethodPost, "/api/company/heartbeat", body, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

// TestPurpose: Validates the health endpoint.
// Scope: Integration Test (httptest)
// Expected: 200 with the service name.
// Test Case ID: HTTP-09
func TestHTTP_HealthCheck(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nexuscentral")
}

// TestPurpose: Validates the domain request counters.
// Scope: Integration Test (httptest)
// Expected: Validation requests, update checks and governor rejections each
// increment their counter exactly once per occurrence.
// Test Case ID: HTTP-10
func TestHTTP_RequestCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	governor := ratelimit.NewGovernor(
		[]ratelimit.Rule{{Prefix: "/api/updates/check", MaxRequests: 1, Window: time.Hour}},
		ratelimit.Rule{MaxRequests: 100000, Window: time.Minute},
	)
	f := newFixture(t, governor)
	code := f.register(t)

	rec := f.do(t, http.MethodPost, "/api/company/validate", map[string]any{
		"company_code": code,
		"machine_id":   testMachineID,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/updates/check?company_code="+code+"&version=1.0.0", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Second check inside the window is rejected before the handler runs.
	rec = f.do(t, http.MethodGet, "/api/updates/check?company_code="+code+"&version=1.0.0", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), totals["nexuscentral_validation_requests_total"])
	assert.Equal(t, int64(1), totals["nexuscentral_update_checks_total"])
	assert.Equal(t, int64(1), totals["nexuscentral_ratelimit_rejections_total"])
}
