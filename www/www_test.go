package www

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"rackcore/capacity"
	"rackcore/config"
	"rackcore/engine"
	"rackcore/report"
	"rackcore/store"
)

type testServer struct {
	t       *testing.T
	eng     *engine.Engine
	handler http.Handler
	cookies []*http.Cookie
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "www.db")
	cfg.Web.SessionSecret = "test-secret"
	if mutate != nil {
		mutate(cfg)
	}
	db, err := store.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eng := engine.New(engine.Config{AppConfig: cfg, DB: db, LogFunc: func(string, ...any) {}})
	eng.Start()
	t.Cleanup(eng.Stop)

	handler, stop := NewRouter(eng)
	t.Cleanup(stop)
	return &testServer{t: t, eng: eng, handler: handler}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createRack(name string, sizeU int, powerW *float64) store.Rack {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/racks", map[string]any{
		"name": name, "size_u": sizeU, "total_power_capacity_w": powerW,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[store.Rack](s.t, rec)
}

func (s *testServer) createEquipment(name string, rackID *int64, sizeU int, powerW float64) store.Equipment {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/equipment", map[string]any{
		"name": name, "rack_id": rackID, "size_u": sizeU,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	e := decode[store.Equipment](s.t, rec)
	if powerW > 0 {
		rec = s.do(http.MethodPost, fmt.Sprintf("/api/equipment/%d/metrics", e.ID), map[string]any{"value": powerW})
		require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
		e = decode[store.Equipment](s.t, rec)
	}
	return e
}

func ptr[T any](v T) *T { return &v }

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["database"])
}

func TestRackCRUD(t *testing.T) {
	s := newTestServer(t, nil)
	rack := s.createRack("R01", 0, nil)
	assert.Equal(t, 42, rack.SizeU, "default rack height")

	rec := s.do(http.MethodPatch, fmt.Sprintf("/api/racks/%d", rack.ID), map[string]any{"total_power_capacity_w": 3000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[store.Rack](t, rec)
	require.NotNil(t, updated.TotalPowerCapacityW)
	assert.Equal(t, 3000.0, *updated.TotalPowerCapacityW)

	rec = s.do(http.MethodGet, "/api/racks", nil)
	assert.Len(t, decode[[]store.Rack](t, rec), 1)

	rec = s.do(http.MethodPost, "/api/racks", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/racks", map[string]any{"name": "R01"})
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate rack name")

	rec = s.do(http.MethodDelete, fmt.Sprintf("/api/racks/%d", rack.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, fmt.Sprintf("/api/racks/%d", rack.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	audit, err := s.eng.DB().ListAuditLog(10)
	require.NoError(t, err)
	assert.Len(t, audit, 3)
}

func TestLayoutValidateUtilization(t *testing.T) {
	s := newTestServer(t, nil)
	rack := s.createRack("R01", 2, ptr(1000.0))
	s.createEquipment("a", &rack.ID, 1, 150)
	s.createEquipment("b", &rack.ID, 1, 900)

	rec := s.do(http.MethodGet, fmt.Sprintf("/api/racks/%d/layout", rack.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	layout := decode[capacity.RackLayout](t, rec)
	assert.Equal(t, 2, layout.UsedU)
	assert.Equal(t, 0, layout.AvailableU)
	assert.Equal(t, 1050.0, layout.TotalPowerW)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/racks/%d/validate", rack.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[capacity.ValidationResult](t, rec)
	assert.False(t, res.Valid)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, capacity.PowerExceeded, res.Issues[0].Kind)
	assert.Equal(t, 50.0, res.Issues[0].Amount)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/racks/%d/utilization", rack.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	u := decode[capacity.Utilization](t, rec)
	assert.Equal(t, 105.0, u.PowerUtilization)
	assert.Equal(t, 100.0, u.SpaceUtilization)

	rec = s.do(http.MethodGet, "/api/utilization", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]capacity.Utilization](t, rec), 1)
}

func TestNotFoundMapping(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/racks/99/layout", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/racks/99/utilization", nil).Code)

	rec := s.do(http.MethodGet, "/api/racks/99/validate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	res := decode[capacity.ValidationResult](t, rec)
	assert.False(t, res.Valid)

	rack := s.createRack("R01", 42, nil)
	rec = s.do(http.MethodPost, "/api/equipment/404/move", map[string]any{"target_rack_id": rack.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/racks/abc/layout", nil).Code)
}

func TestMoveEquipment(t *testing.T) {
	s := newTestServer(t, nil)
	src := s.createRack("src", 42, nil)
	dst := s.createRack("dst", 42, ptr(500.0))
	s.createEquipment("hog", &dst.ID, 1, 600)
	small := s.createEquipment("small", &src.ID, 2, 10)

	rec := s.do(http.MethodPost, fmt.Sprintf("/api/equipment/%d/move", small.ID), map[string]any{"target_rack_id": dst.ID})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	res := decode[capacity.MoveResult](t, rec)
	assert.False(t, res.Moved)
	require.NotEmpty(t, res.Reasons)

	e, err := s.eng.DB().GetEquipment(small.ID)
	require.NoError(t, err)
	assert.Equal(t, src.ID, *e.RackID)

	roomy := s.createRack("roomy", 42, ptr(5000.0))
	rec = s.do(http.MethodPost, fmt.Sprintf("/api/equipment/%d/move", small.ID), map[string]any{"target_rack_id": roomy.ID, "position_u": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = decode[capacity.MoveResult](t, rec)
	assert.True(t, res.Moved)
	require.NotNil(t, res.Placement)
	assert.True(t, res.Placement.OK)

	rec = s.do(http.MethodGet, "/api/migrations", nil)
	migs := decode[[]store.Migration](t, rec)
	require.Len(t, migs, 2)
	assert.Equal(t, store.MigrationCommitted, migs[0].Outcome)
	assert.Equal(t, store.MigrationRejected, migs[1].Outcome)
}

func TestCheckConflict(t *testing.T) {
	s := newTestServer(t, nil)
	rack := s.createRack("R01", 10, nil)
	a := s.createEquipment("a", &rack.ID, 2, 0)
	b := s.createEquipment("b", &rack.ID, 3, 0)

	layout := decode[capacity.RackLayout](t, s.do(http.MethodGet, fmt.Sprintf("/api/racks/%d/layout", rack.ID), nil))
	entryB, ok := layout.Entry(b.ID)
	require.True(t, ok)

	rec := s.do(http.MethodGet, fmt.Sprintf("/api/racks/%d/conflicts?equipment=%d&position=%d", rack.ID, a.ID, entryB.PositionU), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	res := decode[capacity.ConflictResult](t, rec)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, b.ID, res.Conflicts[0].EquipmentID)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/racks/%d/conflicts?equipment=%d&position=8", rack.ID, a.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/racks/%d/conflicts?equipment=%d", rack.ID, a.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequiredForWrites(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	s := newTestServer(t, func(c *config.Config) {
		c.Web.AdminUser = "admin"
		c.Web.AdminPasswordHash = string(hash)
	})

	rec := s.do(http.MethodPost, "/api/racks", map[string]any{"name": "R01"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/racks", nil).Code)

	rec = s.do(http.MethodPost, "/login", map[string]any{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/login", map[string]any{"username": "admin", "password": "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)
	s.cookies = rec.Result().Cookies()
	require.NotEmpty(t, s.cookies)

	s.createRack("R01", 42, nil)
	audit, err := s.eng.DB().ListAuditLog(1)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "admin", audit[0].Actor)
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	// Wait for the connection comment so the client is registered.
	select {
	case l := <-lines:
		require.True(t, strings.HasPrefix(l, ":"), l)
	case <-time.After(5 * time.Second):
		t.Fatal("no connect comment")
	}

	s.createRack("R01", 42, nil)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "stream closed")
			if l == "event: rack-updated" {
				return
			}
		case <-deadline:
			t.Fatal("no rack-updated event")
		}
	}
}

func TestFleetUtilizationWorkbook(t *testing.T) {
	s := newTestServer(t, nil)
	rack := s.createRack("R01", 4, ptr(1000.0))
	s.createEquipment("a", &rack.ID, 1, 1200)

	rec := s.do(http.MethodGet, "/api/utilization.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "utilization-")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	name, err := f.GetCellValue(report.SheetUtilization, "B2")
	require.NoError(t, err)
	assert.Equal(t, "R01", name)
	over, err := f.GetCellValue(report.SheetSummary, "B4")
	require.NoError(t, err)
	assert.Equal(t, "1", over)
}

func TestForgedSessionCookieRejected(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	s := newTestServer(t, func(c *config.Config) {
		c.Web.AdminPasswordHash = string(hash)
	})

	forger := sessions.NewCookieStore([]byte(config.DefaultSessionSecret))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := forger.New(req, sessionName)
	require.NoError(t, err)
	session.Values["authenticated"] = true
	session.Values["username"] = "admin"
	require.NoError(t, session.Save(req, rec))
	s.cookies = rec.Result().Cookies()
	require.NotEmpty(t, s.cookies)

	rec = s.do(http.MethodPost, "/api/racks", map[string]any{"name": "R01"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
