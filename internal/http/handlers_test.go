package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slimmers/internal/access"
	"slimmers/internal/bmi"
	"slimmers/internal/config"
	"slimmers/internal/testsupport"
)

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v), string(body))
}

func send(t *testing.T, method, target, cookie string, payload interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := testsupport.NewJSONRequest(method, target, body)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	return req
}

func responseCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sessionCookieName() string {
	return config.GetConfig().AppName + "_session"
}

func get(t *testing.T, target, cookie string) *http.Request {
	t.Helper()
	req := testsupport.NewJSONRequest(http.MethodGet, target, nil)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	return req
}

func TestAnalyticsEndpoints(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanTables(db, "users", "events")

	owner := testsupport.CreateTestUser(t, db, "owner@example.com", "password123", access.RoleSuperAdmin)
	regular := testsupport.CreateTestUser(t, db, "member@example.com", "password123", access.RoleMember)

	now := time.Now().UTC()
	testsupport.CreateEvent(t, db, testsupport.EventSeed{Subject: "/exercises/dumbbells/bicep-curl", Tag: "qr_code", SessionID: "a", OccurredAt: now.Add(-time.Minute)})
	testsupport.CreateEvent(t, db, testsupport.EventSeed{Subject: "/exercises/dumbbells/bicep-curl", SessionID: "b", OccurredAt: now.Add(-time.Minute)})

	app := testsupport.CreateMinimalTestApp(t, db)

	t.Run("anonymous callers get 401", func(t *testing.T) {
		for _, target := range []string{"/api/analytics", "/api/analytics/scans", "/api/analytics/activity"} {
			resp, err := app.Test(get(t, target, ""), -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, target)
		}
	})

	t.Run("members get 403", func(t *testing.T) {
		resp, err := app.Test(get(t, "/api/analytics", testsupport.SessionCookie(t, regular.ID)), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var body map[string]string
		decode(t, resp, &body)
		assert.Equal(t, "Access denied. Super admin only.", body["error"])
	})

	t.Run("super admin gets the report", func(t *testing.T) {
		resp, err := app.Test(get(t, "/api/analytics?path=dumbbells", testsupport.SessionCookie(t, owner.ID)), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var report struct {
			Summary struct {
				Totals struct {
					Tagged   int64 `json:"tagged"`
					Untagged int64 `json:"untagged"`
					Total    int64 `json:"total"`
				} `json:"totals"`
				Breakdown struct {
					Tagged   []map[string]interface{} `json:"tagged"`
					Untagged []map[string]interface{} `json:"untagged"`
				} `json:"breakdown"`
				Timeline []map[string]interface{} `json:"timeline"`
			} `json:"summary"`
			Activity struct {
				Weekly  int64 `json:"weekly_active_sessions"`
				Monthly int64 `json:"monthly_active_sessions"`
			} `json:"activity"`
		}
		decode(t, resp, &report)

		assert.Equal(t, int64(1), report.Summary.Totals.Tagged)
		assert.Equal(t, int64(1), report.Summary.Totals.Untagged)
		assert.Equal(t, int64(2), report.Summary.Totals.Total)
		assert.Len(t, report.Summary.Breakdown.Tagged, 1)
		assert.Len(t, report.Summary.Timeline, 1)
		assert.Equal(t, int64(2), report.Activity.Weekly)
		assert.Equal(t, int64(2), report.Activity.Monthly)
	})

	t.Run("empty range returns empty lists", func(t *testing.T) {
		target := "/api/analytics?startDate=" + now.AddDate(0, 0, 3).Format("2006-01-02")
		resp, err := app.Test(get(t, target, testsupport.SessionCookie(t, owner.ID)), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var raw map[string]map[string]json.RawMessage
		decode(t, resp, &raw)
		assert.JSONEq(t, `{"tagged":[],"untagged":[]}`, string(raw["summary"]["breakdown"]))
		assert.JSONEq(t, `[]`, string(raw["summary"]["timeline"]))
	})

	t.Run("bad date is a 400", func(t *testing.T) {
		resp, err := app.Test(get(t, "/api/analytics/scans?startDate=not-a-date", testsupport.SessionCookie(t, owner.ID)), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("scan report", func(t *testing.T) {
		resp, err := app.Test(get(t, "/api/analytics/scans", testsupport.SessionCookie(t, owner.ID)), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var report map[string]interface{}
		decode(t, resp, &report)
		assert.Contains(t, report, "top_exercises")
		assert.Contains(t, report, "equipment_breakdown")
		assert.Contains(t, report, "scan_timeline")
	})
}

func TestSessionEndpoints(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanTables(db, "users")

	user := testsupport.CreateTestUser(t, db, "lifter@example.com", "password123", access.RoleMember)
	app := testsupport.CreateMinimalTestApp(t, db)

	t.Run("me requires a session", func(t *testing.T) {
		resp, err := app.Test(get(t, "/api/auth/me", ""), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me returns the current user", func(t *testing.T) {
		resp, err := app.Test(get(t, "/api/auth/me", testsupport.SessionCookie(t, user.ID)), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, "lifter@example.com", body["user"]["email"])
		assert.Equal(t, "member", body["user"]["role"])
		assert.NotContains(t, body["user"], "EncryptedPassword")
	})

	t.Run("register creates a member and logs it in", func(t *testing.T) {
		resp, err := app.Test(send(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"name":     "New Lifter",
			"email":    "New@Example.com",
			"password": "password123",
		}), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		cookie := responseCookie(resp, sessionCookieName())
		require.NotNil(t, cookie)
		require.NotEmpty(t, cookie.Value)

		var body map[string]map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, "new@example.com", body["user"]["email"])
		assert.Equal(t, access.RoleMember, body["user"]["role"])

		me, err := app.Test(get(t, "/api/auth/me", cookie.Name+"="+cookie.Value), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, me.StatusCode)
	})

	t.Run("register as the configured admin email grants super admin", func(t *testing.T) {
		cfg := config.GetConfig()
		previous := cfg.AdminEmail
		cfg.AdminEmail = "owner@example.com"
		t.Cleanup(func() { cfg.AdminEmail = previous })

		resp, err := app.Test(send(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"name":     "Owner",
			"email":    "owner@example.com",
			"password": "password123",
		}), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var body map[string]map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, access.RoleSuperAdmin, body["user"]["role"])
	})

	registerFailures := []struct {
		name    string
		payload map[string]string
		status  int
	}{
		{"duplicate email", map[string]string{"name": "Again", "email": "lifter@example.com", "password": "password123"}, http.StatusConflict},
		{"short password", map[string]string{"name": "Shorty", "email": "short@example.com", "password": "short"}, http.StatusBadRequest},
		{"invalid email", map[string]string{"name": "Nobody", "email": "not-an-email", "password": "password123"}, http.StatusBadRequest},
		{"blank name", map[string]string{"name": "  ", "email": "blank@example.com", "password": "password123"}, http.StatusBadRequest},
	}
	for _, tt := range registerFailures {
		t.Run("register rejects "+tt.name, func(t *testing.T) {
			resp, err := app.Test(send(t, http.MethodPost, "/api/auth/register", "", tt.payload), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Nil(t, responseCookie(resp, sessionCookieName()))
		})
	}

	loginCases := []struct {
		name     string
		email    string
		password string
		status   int
	}{
		{"valid credentials", "lifter@example.com", "password123", http.StatusOK},
		{"email is case insensitive", "LIFTER@example.com", "password123", http.StatusOK},
		{"wrong password", "lifter@example.com", "wrong-password", http.StatusUnauthorized},
		{"unknown email", "ghost@example.com", "password123", http.StatusUnauthorized},
		{"missing password", "lifter@example.com", "", http.StatusBadRequest},
	}
	for _, tt := range loginCases {
		t.Run("login with "+tt.name, func(t *testing.T) {
			resp, err := app.Test(send(t, http.MethodPost, "/api/auth/login", "", map[string]string{
				"email":    tt.email,
				"password": tt.password,
			}), -1)
			require.NoError(t, err)
			require.Equal(t, tt.status, resp.StatusCode)

			cookie := responseCookie(resp, sessionCookieName())
			if tt.status != http.StatusOK {
				assert.Nil(t, cookie)
				return
			}
			require.NotNil(t, cookie)
			assert.NotEmpty(t, cookie.Value)
		})
	}

	t.Run("logout clears the session cookie", func(t *testing.T) {
		resp, err := app.Test(send(t, http.MethodPost, "/api/auth/logout", testsupport.SessionCookie(t, user.ID), nil), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		cookie := responseCookie(resp, sessionCookieName())
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
	})
}

func TestBMIHistoryEndpoint(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanTables(db, "users", "bmi_records")

	user := testsupport.CreateTestUser(t, db, "runner@example.com", "password123", access.RoleMember)
	other := testsupport.CreateTestUser(t, db, "other@example.com", "password123", access.RoleMember)

	_, err := bmi.Save(db, logger, user.ID, 80, 180)
	require.NoError(t, err)
	_, err = bmi.Save(db, logger, other.ID, 120, 170)
	require.NoError(t, err)

	app := testsupport.CreateMinimalTestApp(t, db)

	resp, err := app.Test(get(t, "/api/bmi-history", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(get(t, "/api/bmi-history", testsupport.SessionCookie(t, user.ID)), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		History []struct {
			Weight   float64 `json:"weight"`
			Height   float64 `json:"height"`
			Value    float64 `json:"bmi_value"`
			Category string  `json:"category"`
		} `json:"history"`
	}
	decode(t, resp, &body)
	require.Len(t, body.History, 1)
	assert.Equal(t, 24.69, body.History[0].Value)
	assert.Equal(t, bmi.CategoryNormal, body.History[0].Category)
}

func TestBMIWriteEndpoints(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanTables(db, "users", "bmi_records")

	user := testsupport.CreateTestUser(t, db, "runner@example.com", "password123", access.RoleMember)
	other := testsupport.CreateTestUser(t, db, "other@example.com", "password123", access.RoleMember)
	cookie := testsupport.SessionCookie(t, user.ID)

	app := testsupport.CreateMinimalTestApp(t, db)

	t.Run("create stores the computed value", func(t *testing.T) {
		resp, err := app.Test(send(t, http.MethodPost, "/api/bmi-history", cookie, map[string]float64{
			"weight": 80,
			"height": 180,
		}), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var entry struct {
			ID       uint    `json:"id"`
			UserID   uint    `json:"user_id"`
			Value    float64 `json:"bmi_value"`
			Category string  `json:"category"`
		}
		decode(t, resp, &entry)
		assert.NotZero(t, entry.ID)
		assert.Equal(t, user.ID, entry.UserID)
		assert.Equal(t, 24.69, entry.Value)
		assert.Equal(t, bmi.CategoryNormal, entry.Category)

		history, err := bmi.History(db, user.ID)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	invalid := []struct {
		name    string
		payload map[string]float64
	}{
		{"zero weight", map[string]float64{"weight": 0, "height": 180}},
		{"negative height", map[string]float64{"weight": 80, "height": -1}},
		{"missing height", map[string]float64{"weight": 80}},
		{"implausible weight", map[string]float64{"weight": 900, "height": 180}},
	}
	for _, tt := range invalid {
		t.Run("create rejects "+tt.name, func(t *testing.T) {
			resp, err := app.Test(send(t, http.MethodPost, "/api/bmi-history", cookie, tt.payload), -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	t.Run("writes require a session", func(t *testing.T) {
		resp, err := app.Test(send(t, http.MethodPost, "/api/bmi-history", "", map[string]float64{"weight": 80, "height": 180}), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, err = app.Test(send(t, http.MethodDelete, "/api/bmi-history", "", map[string]uint{"recordId": 1}), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("delete of another user's record is a 404", func(t *testing.T) {
		foreign, err := bmi.Save(db, logger, other.ID, 120, 170)
		require.NoError(t, err)

		resp, err := app.Test(send(t, http.MethodDelete, "/api/bmi-history", cookie, map[string]uint{"recordId": foreign.ID}), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		kept, err := bmi.History(db, other.ID)
		require.NoError(t, err)
		assert.Len(t, kept, 1)
	})

	t.Run("delete without a record id is a 400", func(t *testing.T) {
		resp, err := app.Test(send(t, http.MethodDelete, "/api/bmi-history", cookie, map[string]uint{}), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("delete removes the caller's record", func(t *testing.T) {
		own, err := bmi.Save(db, logger, user.ID, 70, 175)
		require.NoError(t, err)

		resp, err := app.Test(send(t, http.MethodDelete, "/api/bmi-history", cookie, map[string]uint{"recordId": own.ID}), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]bool
		decode(t, resp, &body)
		assert.True(t, body["success"])

		history, err := bmi.History(db, user.ID)
		require.NoError(t, err)
		for _, entry := range history {
			assert.NotEqual(t, own.ID, entry.ID)
		}
	})
}

func TestEquipmentEndpoints(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	resp, err := app.Test(get(t, "/api/equipment", ""), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list map[string][]map[string]interface{}
	decode(t, resp, &list)
	assert.Len(t, list["equipment"], 3)

	resp, err = app.Test(get(t, "/api/equipment?type=strength", ""), -1)
	require.NoError(t, err)
	decode(t, resp, &list)
	assert.Len(t, list["equipment"], 2)

	resp, err = app.Test(get(t, "/api/equipment/EQUIPMENT_DUMBBELL", ""), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var show map[string]interface{}
	decode(t, resp, &show)
	assert.Equal(t, "http://localhost:3000/equipments/dumbbells?utm_source=qr_code", show["qr_target"])

	resp, err = app.Test(get(t, "/api/equipment/EQUIPMENT_ROWER", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	resp, err := app.Test(get(t, "/_health", ""), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	decode(t, resp, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "ok", health["db_status"])
}
