package controlapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zeebrow/ec2-price-tracker/internal/controlapi"
	"github.com/Zeebrow/ec2-price-tracker/internal/pagedriver"
	"github.com/Zeebrow/ec2-price-tracker/internal/record"
	"github.com/Zeebrow/ec2-price-tracker/internal/runctl"
	"github.com/Zeebrow/ec2-price-tracker/internal/statusstore"
)

func fakeDriverFactory() runctl.NewDriver {
	return func(ctx context.Context) (pagedriver.Driver, error) {
		return &pagedriver.Fake{
			OperatingSystems: []string{"Linux"},
			Regions:          []string{"us-east-1"},
			Table: map[string][]record.RawRow{
				"Linux|us-east-1": {},
			},
		}, nil
	}
}

func TestHandleStatusReportsIdle(t *testing.T) {
	status := statusstore.NewMemoryStore()
	s := &controlapi.Server{Controller: &runctl.Controller{Status: status, NewDriver: fakeDriverFactory()}}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.NewMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "idle")
}

func TestHandleRunRejectsWhileAlreadyRunning(t *testing.T) {
	status := statusstore.NewMemoryStore()
	require.NoError(t, status.Write(context.Background(), statusstore.Running))
	s := &controlapi.Server{Controller: &runctl.Controller{Status: status, NewDriver: fakeDriverFactory()}}

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	rec := httptest.NewRecorder()
	s.NewMux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleRunAcceptsAndEventuallyReturnsToIdle(t *testing.T) {
	dir := t.TempDir()
	status := statusstore.NewMemoryStore()
	s := &controlapi.Server{
		Controller: &runctl.Controller{Status: status, NewDriver: fakeDriverFactory()},
		Default: runctl.Config{
			ThreadCount: 1,
			StoreCSV:    true,
			CSVDataDir:  dir,
			Date:        "2026-07-31",
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	rec := httptest.NewRecorder()
	s.NewMux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		st, err := status.Read(context.Background())
		return err == nil && st == statusstore.Idle
	}, 5*time.Second, 10*time.Millisecond)
}
