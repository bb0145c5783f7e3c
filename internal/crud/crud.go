// Package crud implements the generic CRUD dispatcher (C6): entity metadata
// is turned into the five uniform REST verbs, wired through the permission
// engine (C4) and the tag-indexed cache (C5).
package crud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ctp/consts"
	"ctp/internal/apierr"
	"ctp/internal/auth"
	"ctp/internal/cache"
	"ctp/internal/metrics"
	"ctp/internal/permission"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// EntityInterface describes one domain entity's REST surface. T is the GORM
// model type; Create/Update are request DTO types; Out is the response DTO.
type EntityInterface[T any, Create any, Update any, Out any] struct {
	// Path is the canonical REST path segment, e.g. "courses".
	Path string
	// Resource identifies the entity to the permission engine.
	Resource consts.ResourceName
	// TTL controls how long a single-entity GET is cached.
	TTL time.Duration

	// ToModel converts a validated create payload into a new T.
	ToModel func(Create) *T
	// ApplyUpdate patches an existing T in place from an update payload.
	ApplyUpdate func(*T, Update)
	// ToOut converts a persisted T into its response shape.
	ToOut func(*T) Out

	// CourseID extracts the course scope of an instance, if course-scoped.
	CourseID func(*T) *int
	// SoftDeletable reports whether delete should set ArchivedAt instead of
	// removing the row.
	SoftDeletable bool
	// DefaultSort is applied to list queries absent a caller-supplied sort.
	DefaultSort string

	// PostCreate runs after a successful create, before the response is
	// sent; it has no error return and cannot undo the create.
	PostCreate func(d *Dispatcher, entity *T)
	// CustomPermissions overrides the default engine check for one action.
	CustomPermissions func(d *Dispatcher, p *auth.Principal, action consts.ActionName, entity *T) (bool, error)
	// Search contributes additional WHERE clauses from query parameters.
	Search func(c *gin.Context, db *gorm.DB) *gorm.DB
	// EntityTags returns the cache tags one instance participates in.
	EntityTags func(*T) []string
}

// Dispatcher wires EntityInterfaces to a gin router group.
type Dispatcher struct {
	DB      *gorm.DB
	Cache   *cache.Cache
	Perm    *permission.Engine
	DevMode bool
}

func New(db *gorm.DB, c *cache.Cache, perm *permission.Engine, devMode bool) *Dispatcher {
	return &Dispatcher{DB: db, Cache: c, Perm: perm, DevMode: devMode}
}

func principalFrom(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get("principal")
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok
}

func writeError(c *gin.Context, d *Dispatcher, err *apierr.Error) {
	status, resp := apierr.Render(err, c.GetString("request_id"), d.DevMode)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "2")
	}
	c.JSON(status, resp)
}

// recordMetrics increments the CRUDRequests counter once the verb handler
// has written its response status.
func recordMetrics(resource consts.ResourceName) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		status := "ok"
		if c.Writer.Status() >= 400 {
			status = "error"
		}
		metrics.CRUDRequests.WithLabelValues(string(resource), c.Request.Method, status).Inc()
	}
}

// Register wires the five uniform verbs for iface onto r.
func Register[T any, Create any, Update any, Out any](r *gin.RouterGroup, d *Dispatcher, iface EntityInterface[T, Create, Update, Out]) {
	group := r.Group("/"+iface.Path, recordMetrics(iface.Resource))

	group.POST("", func(c *gin.Context) { create(c, d, iface) })
	group.GET("/:id", func(c *gin.Context) { get(c, d, iface) })
	group.GET("", func(c *gin.Context) { list(c, d, iface) })
	group.PATCH("/:id", func(c *gin.Context) { update(c, d, iface) })
	group.DELETE("/:id", func(c *gin.Context) { deleteOne(c, d, iface) })
}

func permitted[T any, Create any, Update any, Out any](d *Dispatcher, c *gin.Context, iface EntityInterface[T, Create, Update, Out], action consts.ActionName, entity *T) (bool, error) {
	p, ok := principalFrom(c)
	if !ok {
		return false, nil
	}
	if iface.CustomPermissions != nil {
		return iface.CustomPermissions(d, p, action, entity)
	}

	var courseID *int
	if entity != nil && iface.CourseID != nil {
		courseID = iface.CourseID(entity)
	}
	return d.Perm.Permitted(c.Request.Context(), p, iface.Resource, action, courseID), nil
}

func create[T any, Create any, Update any, Out any](c *gin.Context, d *Dispatcher, iface EntityInterface[T, Create, Update, Out]) {
	var payload Create
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, d, apierr.Validation(apierr.FieldError{Field: "body", Message: err.Error(), Type: "binding"}))
		return
	}

	entity := iface.ToModel(payload)

	ok, err := permitted(d, c, iface, consts.ActionWrite, entity)
	if err != nil {
		writeError(c, d, apierr.New(apierr.ServerFault, err))
		return
	}
	if !ok {
		writeError(c, d, apierr.New(apierr.AuthzForbidden, nil))
		return
	}

	ctx := c.Request.Context()
	if err := d.DB.WithContext(ctx).Create(entity).Error; err != nil {
		writeError(c, d, translateWriteError(err))
		return
	}

	if iface.PostCreate != nil {
		iface.PostCreate(d, entity)
	}
	invalidateListCache(c, d, iface)

	c.JSON(http.StatusCreated, iface.ToOut(entity))
}

func get[T any, Create any, Update any, Out any](c *gin.Context, d *Dispatcher, iface EntityInterface[T, Create, Update, Out]) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeError(c, d, apierr.New(apierr.NotFound, err))
		return
	}

	ctx := c.Request.Context()
	cacheKey := fmt.Sprintf("entity:%s:%d", iface.Path, id)

	var entity T
	if iface.TTL > 0 {
		if hit, err := d.Cache.Get(ctx, cacheKey, &entity); err == nil && hit {
			if ok, _ := permitted(d, c, iface, consts.ActionRead, &entity); ok {
				c.Header("X-Cache", "HIT")
				c.JSON(http.StatusOK, iface.ToOut(&entity))
				return
			}
		}
	}

	if err := d.DB.WithContext(ctx).First(&entity, id).Error; err != nil {
		writeError(c, d, apierr.New(apierr.NotFound, err))
		return
	}

	ok, err := permitted(d, c, iface, consts.ActionRead, &entity)
	if err != nil {
		writeError(c, d, apierr.New(apierr.ServerFault, err))
		return
	}
	if !ok {
		// forbidden-on-existing collapses to 404 to avoid leaking existence
		writeError(c, d, apierr.New(apierr.NotFound, nil))
		return
	}

	if iface.TTL > 0 {
		tags := []string{fmt.Sprintf("%s:list", iface.Path)}
		if iface.EntityTags != nil {
			tags = append(tags, iface.EntityTags(&entity)...)
		}
		_ = d.Cache.Set(ctx, cacheKey, entity, iface.TTL, tags...)
	}

	c.JSON(http.StatusOK, iface.ToOut(&entity))
}

func list[T any, Create any, Update any, Out any](c *gin.Context, d *Dispatcher, iface EntityInterface[T, Create, Update, Out]) {
	p, ok := principalFrom(c)
	if !ok {
		writeError(c, d, apierr.New(apierr.AuthMissingCredential, nil))
		return
	}

	scope := d.Perm.Filter(c.Request.Context(), p, iface.Resource, consts.ActionRead)
	if scope.Kind == permission.Forbidden {
		writeError(c, d, apierr.New(apierr.AuthzForbidden, nil))
		return
	}

	skip, limit := pagingParams(c)

	db := d.DB.WithContext(c.Request.Context()).Model(new(T))
	if scope.Kind == permission.Constrained {
		db = scope.Apply(db)
	}
	if iface.Search != nil {
		db = iface.Search(c, db)
	}

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		writeError(c, d, apierr.New(apierr.ServerFault, err))
		return
	}

	order := iface.DefaultSort
	if order == "" {
		order = "id"
	}

	var entities []T
	if err := db.Order(order).Offset(skip).Limit(limit).Find(&entities).Error; err != nil {
		writeError(c, d, apierr.New(apierr.ServerFault, err))
		return
	}

	out := make([]Out, len(entities))
	for i := range entities {
		out[i] = iface.ToOut(&entities[i])
	}

	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.JSON(http.StatusOK, out)
}

func update[T any, Create any, Update any, Out any](c *gin.Context, d *Dispatcher, iface EntityInterface[T, Create, Update, Out]) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeError(c, d, apierr.New(apierr.NotFound, err))
		return
	}

	ctx := c.Request.Context()
	var entity T
	if err := d.DB.WithContext(ctx).First(&entity, id).Error; err != nil {
		writeError(c, d, apierr.New(apierr.NotFound, err))
		return
	}

	ok, err := permitted(d, c, iface, consts.ActionWrite, &entity)
	if err != nil {
		writeError(c, d, apierr.New(apierr.ServerFault, err))
		return
	}
	if !ok {
		writeError(c, d, apierr.New(apierr.NotFound, nil))
		return
	}

	var payload Update
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, d, apierr.Validation(apierr.FieldError{Field: "body", Message: err.Error(), Type: "binding"}))
		return
	}

	iface.ApplyUpdate(&entity, payload)

	if err := d.DB.WithContext(ctx).Save(&entity).Error; err != nil {
		writeError(c, d, translateWriteError(err))
		return
	}

	invalidateEntityCache(c, d, iface, id, &entity)

	c.JSON(http.StatusOK, iface.ToOut(&entity))
}

func deleteOne[T any, Create any, Update any, Out any](c *gin.Context, d *Dispatcher, iface EntityInterface[T, Create, Update, Out]) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeError(c, d, apierr.New(apierr.NotFound, err))
		return
	}

	ctx := c.Request.Context()
	var entity T
	if err := d.DB.WithContext(ctx).First(&entity, id).Error; err != nil {
		writeError(c, d, apierr.New(apierr.NotFound, err))
		return
	}

	ok, err := permitted(d, c, iface, consts.ActionDelete, &entity)
	if err != nil {
		writeError(c, d, apierr.New(apierr.ServerFault, err))
		return
	}
	if !ok {
		writeError(c, d, apierr.New(apierr.NotFound, nil))
		return
	}

	if iface.SoftDeletable {
		err = d.DB.WithContext(ctx).Model(&entity).Update("archived_at", gorm.Expr("NOW()")).Error
	} else {
		err = d.DB.WithContext(ctx).Delete(&entity).Error
	}
	if err != nil {
		writeError(c, d, apierr.New(apierr.ServerFault, err))
		return
	}

	invalidateEntityCache(c, d, iface, id, &entity)
	c.Status(http.StatusNoContent)
}

func invalidateListCache[T any, Create any, Update any, Out any](c *gin.Context, d *Dispatcher, iface EntityInterface[T, Create, Update, Out]) {
	if iface.TTL > 0 {
		_ = d.Cache.InvalidateTag(c.Request.Context(), fmt.Sprintf("%s:list", iface.Path))
	}
}

func invalidateEntityCache[T any, Create any, Update any, Out any](c *gin.Context, d *Dispatcher, iface EntityInterface[T, Create, Update, Out], id int, entity *T) {
	ctx := c.Request.Context()
	_ = d.Cache.Delete(ctx, fmt.Sprintf("entity:%s:%d", iface.Path, id))
	_ = d.Cache.InvalidateTag(ctx, fmt.Sprintf("%s:list", iface.Path))
	if iface.EntityTags != nil {
		for _, tag := range iface.EntityTags(entity) {
			_ = d.Cache.InvalidateTag(ctx, tag)
		}
	}
}

func pagingParams(c *gin.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	return skip, limit
}

// translateWriteError maps a GORM error to the taxonomy: unique constraint
// violations become 409, everything else a generic server fault (or 503 on
// a driver timeout).
func translateWriteError(err error) *apierr.Error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apierr.New(apierr.ConflictUnique, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.New(apierr.ServiceUnavailable, err)
	}
	return apierr.New(apierr.ServerFault, err)
}
