package router

import (
	"ctp/consts"
	"ctp/database"
	"ctp/dto"
	"ctp/handlers"
	"ctp/internal/auth"
	"ctp/internal/cache"
	"ctp/internal/crud"
	"ctp/internal/permission"
	"ctp/internal/pubsub"
	"ctp/internal/tasktracker"
	"ctp/internal/workflow"
	"ctp/internal/wsgateway"
	"ctp/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Dependencies holds every shared component router.New wires into route
// handlers; main.go constructs one per process and passes it in.
type Dependencies struct {
	DB      *gorm.DB
	Cache   *cache.Cache
	Perm    *permission.Engine
	Auth    *auth.Registry
	Bus     *pubsub.Bus
	Gateway workflow.Gateway
	WS      *wsgateway.Gateway
	DevMode bool
}

func New(deps Dependencies) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "Cache-Control", "X-Session-ID"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH", "HEAD"}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Type", "X-Group-ID"}

	engine.Use(
		middleware.Logging(),
		middleware.GroupID(),
		middleware.SSEPath(),
		cors.New(corsConfig),
		middleware.TracerMiddleware(),
		middleware.Audit(deps.DB),
	)

	engine.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	gateway := deps.Gateway
	if gateway == nil {
		gateway = workflow.NewSQLGateway(deps.DB)
	}
	tracker := tasktracker.New(deps.Bus.Redis, gateway)

	authHandlers := handlers.NewAuthHandlers(deps.DB, deps.DevMode)
	messageHandlers := handlers.NewMessageHandlers(deps.DB, deps.DevMode)
	taskHandlers := handlers.NewTaskHandlers(tracker, gateway, deps.DevMode)

	api := engine.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/login", authHandlers.Login)
	authGroup.POST("/refresh", authHandlers.Refresh)

	authenticated := api.Group("")
	authenticated.Use(middleware.Authenticate(deps.Auth))
	authenticated.POST("/auth/logout", authHandlers.Logout)
	authenticated.GET("/auth/me", authHandlers.Me)

	messages := authenticated.Group("/messages")
	messages.GET("", messageHandlers.List)
	messages.POST("", messageHandlers.Create)
	messages.PATCH("/:id", messageHandlers.Update)
	messages.DELETE("/:id", messageHandlers.Delete)
	messages.POST("/:id/read", messageHandlers.MarkRead)
	messages.GET("/:id/read", messageHandlers.IsRead)

	tasks := authenticated.Group("/tasks")
	tasks.POST("", taskHandlers.Submit)
	tasks.GET("", taskHandlers.List)
	tasks.GET("/:id", taskHandlers.Status)
	tasks.GET("/:id/result", taskHandlers.Result)
	tasks.DELETE("/:id", taskHandlers.Cancel)

	if deps.WS != nil {
		engine.GET("/ws", deps.WS.Handle)
	}

	dispatcher := crud.New(deps.DB, deps.Cache, deps.Perm, deps.DevMode)
	registerCRUD(authenticated.Group(""), dispatcher)

	engine.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return engine
}

// registerCRUD wires the generic dispatcher for every entity whose REST
// surface is a uniform create/read/list/update/delete; entities with
// bespoke write rules (Message, Session) get dedicated handlers instead;
// ApiToken has no REST route.
func registerCRUD(r *gin.RouterGroup, d *crud.Dispatcher) {
	crud.Register(r, d, crud.EntityInterface[database.Organization, dto.CreateOrganizationReq, dto.UpdateOrganizationReq, dto.OrganizationOut]{
		Path:          "organizations",
		Resource:      consts.ResourceOrganization,
		SoftDeletable: true,
		DefaultSort:   "name",
		ToModel:       dto.OrganizationToModel,
		ApplyUpdate:   dto.OrganizationApplyUpdate,
		ToOut:         dto.OrganizationToOut,
	})

	crud.Register(r, d, crud.EntityInterface[database.CourseFamily, dto.CreateCourseFamilyReq, dto.UpdateCourseFamilyReq, dto.CourseFamilyOut]{
		Path:          "course-families",
		Resource:      consts.ResourceCourseFamily,
		SoftDeletable: true,
		DefaultSort:   "name",
		ToModel:       dto.CourseFamilyToModel,
		ApplyUpdate:   dto.CourseFamilyApplyUpdate,
		ToOut:         dto.CourseFamilyToOut,
	})

	crud.Register(r, d, crud.EntityInterface[database.Course, dto.CreateCourseReq, dto.UpdateCourseReq, dto.CourseOut]{
		Path:          "courses",
		Resource:      consts.ResourceCourse,
		SoftDeletable: true,
		DefaultSort:   "name",
		ToModel:       dto.CourseToModel,
		ApplyUpdate:   dto.CourseApplyUpdate,
		ToOut:         dto.CourseToOut,
		CourseID:      dto.CourseOfCourse,
	})

	crud.Register(r, d, crud.EntityInterface[database.CourseContent, dto.CreateCourseContentReq, dto.UpdateCourseContentReq, dto.CourseContentOut]{
		Path:          "course-contents",
		Resource:      consts.ResourceCourseContent,
		SoftDeletable: true,
		DefaultSort:   "path",
		ToModel:       dto.CourseContentToModel,
		ApplyUpdate:   dto.CourseContentApplyUpdate,
		ToOut:         dto.CourseContentToOut,
		CourseID:      dto.CourseContentCourseID,
	})

	crud.Register(r, d, crud.EntityInterface[database.CourseMember, dto.CreateCourseMemberReq, dto.UpdateCourseMemberReq, dto.CourseMemberOut]{
		Path:        "course-members",
		Resource:    consts.ResourceCourseMember,
		DefaultSort: "id",
		ToModel:     dto.CourseMemberToModel,
		ApplyUpdate: dto.CourseMemberApplyUpdate,
		ToOut:       dto.CourseMemberToOut,
		CourseID:    dto.CourseMemberCourseID,
	})

	crud.Register(r, d, crud.EntityInterface[database.User, dto.CreateUserReq, dto.UpdateUserReq, dto.UserOut]{
		Path:        "users",
		Resource:    consts.ResourceUser,
		DefaultSort: "username",
		ToModel:     dto.UserToModel,
		ApplyUpdate: dto.UserApplyUpdate,
		ToOut:       dto.UserToOut,
	})

	crud.Register(r, d, crud.EntityInterface[database.Role, dto.CreateRoleReq, dto.UpdateRoleReq, dto.RoleOut]{
		Path:        "roles",
		Resource:    consts.ResourceRole,
		DefaultSort: "name",
		ToModel:     dto.RoleToModel,
		ApplyUpdate: dto.RoleApplyUpdate,
		ToOut:       dto.RoleToOut,
	})

	crud.Register(r, d, crud.EntityInterface[database.Permission, dto.CreatePermissionReq, dto.UpdatePermissionReq, dto.PermissionOut]{
		Path:        "permissions",
		Resource:    consts.ResourcePermission,
		DefaultSort: "name",
		ToModel:     dto.PermissionToModel,
		ApplyUpdate: dto.PermissionApplyUpdate,
		ToOut:       dto.PermissionToOut,
	})

	crud.Register(r, d, crud.EntityInterface[database.CourseGroup, dto.CreateCourseGroupReq, dto.UpdateCourseGroupReq, dto.CourseGroupOut]{
		Path:        "course-groups",
		Resource:    consts.ResourceCourseGroup,
		DefaultSort: "name",
		ToModel:     dto.CourseGroupToModel,
		ApplyUpdate: dto.CourseGroupApplyUpdate,
		ToOut:       dto.CourseGroupToOut,
		CourseID:    dto.CourseGroupCourseID,
	})

	crud.Register(r, d, crud.EntityInterface[database.SubmissionGroup, dto.CreateSubmissionGroupReq, dto.UpdateSubmissionGroupReq, dto.SubmissionGroupOut]{
		Path:        "submission-groups",
		Resource:    consts.ResourceSubmissionGroup,
		DefaultSort: "id",
		ToModel:     dto.SubmissionGroupToModel,
		ApplyUpdate: dto.SubmissionGroupApplyUpdate,
		ToOut:       dto.SubmissionGroupToOut,
	})

	crud.Register(r, d, crud.EntityInterface[database.SubmissionArtifact, dto.CreateSubmissionArtifactReq, dto.UpdateSubmissionArtifactReq, dto.SubmissionArtifactOut]{
		Path:        "submission-artifacts",
		Resource:    consts.ResourceSubmissionArtifact,
		DefaultSort: "id",
		ToModel:     dto.SubmissionArtifactToModel,
		ApplyUpdate: dto.SubmissionArtifactApplyUpdate,
		ToOut:       dto.SubmissionArtifactToOut,
	})

	crud.Register(r, d, crud.EntityInterface[database.Result, dto.CreateResultReq, dto.UpdateResultReq, dto.ResultOut]{
		Path:        "results",
		Resource:    consts.ResourceResult,
		DefaultSort: "id",
		ToModel:     dto.ResultToModel,
		ApplyUpdate: dto.ResultApplyUpdate,
		ToOut:       dto.ResultToOut,
	})

	crud.Register(r, d, crud.EntityInterface[database.SubmissionGrade, dto.CreateSubmissionGradeReq, dto.UpdateSubmissionGradeReq, dto.SubmissionGradeOut]{
		Path:        "submission-grades",
		Resource:    consts.ResourceSubmissionGrade,
		DefaultSort: "id",
		ToModel:     dto.SubmissionGradeToModel,
		ApplyUpdate: dto.SubmissionGradeApplyUpdate,
		ToOut:       dto.SubmissionGradeToOut,
	})

	crud.Register(r, d, crud.EntityInterface[database.SubmissionReview, dto.CreateSubmissionReviewReq, dto.UpdateSubmissionReviewReq, dto.SubmissionReviewOut]{
		Path:        "submission-reviews",
		Resource:    consts.ResourceSubmissionReview,
		DefaultSort: "id",
		ToModel:     dto.SubmissionReviewToModel,
		ApplyUpdate: dto.SubmissionReviewApplyUpdate,
		ToOut:       dto.SubmissionReviewToOut,
	})
}
