package crud

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"ctp/consts"
	"ctp/database"
	"ctp/dto"
	"ctp/internal/auth"
	"ctp/internal/cache"
	"ctp/internal/permission"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&database.Organization{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.New(rdb)
	perm := permission.New(db, c)

	return New(db, c, perm, true)
}

func organizationIface() EntityInterface[database.Organization, dto.CreateOrganizationReq, dto.UpdateOrganizationReq, dto.OrganizationOut] {
	return EntityInterface[database.Organization, dto.CreateOrganizationReq, dto.UpdateOrganizationReq, dto.OrganizationOut]{
		Path:        "organizations",
		Resource:    consts.ResourceOrganization,
		DefaultSort: "id",
		ToModel:     dto.OrganizationToModel,
		ApplyUpdate: dto.OrganizationApplyUpdate,
		ToOut:       dto.OrganizationToOut,
	}
}

// newTestRouter registers the organizations resource behind middleware that
// sets p as the request principal. A nil p leaves the context empty, the
// same shape an unauthenticated request reaches the dispatcher with.
func newTestRouter(t *testing.T, d *Dispatcher, p *auth.Principal) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/")
	if p != nil {
		group.Use(func(c *gin.Context) {
			c.Set("principal", p)
			c.Next()
		})
	}
	Register(group, d, organizationIface())
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	admin := auth.NewPrincipal(1, true, false, nil, nil)
	r := newTestRouter(t, d, admin)

	w := doJSON(t, r, http.MethodPost, "/organizations", dto.CreateOrganizationReq{Name: "Acme U", Path: "acme"})
	require.Equal(t, http.StatusCreated, w.Code)

	var created dto.OrganizationOut
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "Acme U", created.Name)
	require.NotZero(t, created.ID)

	w = doJSON(t, r, http.MethodGet, "/organizations/"+strconv.Itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var fetched dto.OrganizationOut
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	require.Equal(t, created.ID, fetched.ID)
	require.Equal(t, "Acme U", fetched.Name)
}

func TestCreateWithoutPrincipalIsForbidden(t *testing.T) {
	d := newTestDispatcher(t)
	r := newTestRouter(t, d, nil)

	w := doJSON(t, r, http.MethodPost, "/organizations", dto.CreateOrganizationReq{Name: "Acme U", Path: "acme"})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestListReturnsTotalCountHeader(t *testing.T) {
	d := newTestDispatcher(t)
	admin := auth.NewPrincipal(1, true, false, nil, nil)
	r := newTestRouter(t, d, admin)

	for _, name := range []string{"A", "B", "C"} {
		w := doJSON(t, r, http.MethodPost, "/organizations", dto.CreateOrganizationReq{Name: name, Path: name})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/organizations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "3", w.Header().Get("X-Total-Count"))

	var out []dto.OrganizationOut
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 3)
}

func TestListForbiddenForNonAdminWithoutClaim(t *testing.T) {
	d := newTestDispatcher(t)
	plain := auth.NewPrincipal(2, false, false, nil, nil)
	r := newTestRouter(t, d, plain)

	w := doJSON(t, r, http.MethodGet, "/organizations", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateAppliesPatch(t *testing.T) {
	d := newTestDispatcher(t)
	admin := auth.NewPrincipal(1, true, false, nil, nil)
	r := newTestRouter(t, d, admin)

	w := doJSON(t, r, http.MethodPost, "/organizations", dto.CreateOrganizationReq{Name: "Acme U", Path: "acme"})
	var created dto.OrganizationOut
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	newName := "Acme University"
	w = doJSON(t, r, http.MethodPatch, "/organizations/"+strconv.Itoa(created.ID), dto.UpdateOrganizationReq{Name: &newName})
	require.Equal(t, http.StatusOK, w.Code)

	var updated dto.OrganizationOut
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.Equal(t, newName, updated.Name)
}

func TestDeleteRemovesEntity(t *testing.T) {
	d := newTestDispatcher(t)
	admin := auth.NewPrincipal(1, true, false, nil, nil)
	r := newTestRouter(t, d, admin)

	w := doJSON(t, r, http.MethodPost, "/organizations", dto.CreateOrganizationReq{Name: "Acme U", Path: "acme"})
	var created dto.OrganizationOut
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, r, http.MethodDelete, "/organizations/"+strconv.Itoa(created.ID), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/organizations/"+strconv.Itoa(created.ID), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
