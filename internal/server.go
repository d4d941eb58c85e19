package spycatagency

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/logging"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/metrics"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/models"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/myerrors"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/services"
	"github.com/DmytroHlazyrin/Spy-cat-agency/pkg/catapi"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var Endpoints = struct {
	CatCreate string
	CatGet    string
	CatGetAll string
	CatUpdate string
	CatDelete string

	MissionCreate    string
	MissionGet       string
	MissionGetAll    string
	MissionUpdate    string
	MissionDelete    string
	MissionAssign    string
	MissionComplete  string
	MissionAddTarget string

	TargetUpdate string

	Health  string
	Metrics string
}{
	CatCreate: "/spycat/",
	CatGet:    "/spycat/:id",
	CatUpdate: "/spycat/:id",
	CatDelete: "/spycat/:id",
	CatGetAll: "/spycat/",

	MissionCreate:    "/mission/",
	MissionGet:       "/mission/:id",
	MissionGetAll:    "/mission/",
	MissionUpdate:    "/mission/:id",
	MissionAssign:    "/mission/:id/assign_cat",
	MissionComplete:  "/mission/:id/mark_as_completed",
	MissionAddTarget: "/mission/:id/add_target",
	MissionDelete:    "/mission/:id",

	TargetUpdate: "/target/:id",

	Health:  "/healthz",
	Metrics: "/metrics",
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type BreedStatus interface {
	Status() catapi.Status
}

type Server struct {
	router         *gin.Engine
	httpServer     *http.Server
	catService     services.CatService
	missionService services.MissionService

	logger      *slog.Logger
	metrics     *metrics.Metrics
	db          Pinger
	breeds      BreedStatus
	corsOrigins []string
}

type Option func(*Server)

func WithAddr(addr string) Option {
	return func(s *Server) { s.httpServer.Addr = addr }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithHealthChecks enables the database ping and breed snapshot report on /healthz.
func WithHealthChecks(db Pinger, breeds BreedStatus) Option {
	return func(s *Server) {
		s.db = db
		s.breeds = breeds
	}
}

func NewServer(catService services.CatService, missionService services.MissionService, opts ...Option) *Server {
	server := &Server{
		catService:     catService,
		missionService: missionService,
		httpServer:     &http.Server{Addr: ":8080", ReadHeaderTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), logging.RequestID(), logging.Middleware(server.logger))
	if server.metrics != nil {
		router.Use(server.metrics.Middleware())
	}
	if len(server.corsOrigins) > 0 {
		router.Use(cors.New(corsConfig(server.corsOrigins)))
	}
	server.router = router
	server.httpServer.Handler = router

	server.handle(http.MethodPost, Endpoints.CatCreate, server.handleAddCat)
	server.handle(http.MethodGet, Endpoints.CatGet, server.handleGetCat)
	server.handle(http.MethodGet, Endpoints.CatGetAll, server.handleGetAllCats)
	server.handle(http.MethodPut, Endpoints.CatUpdate, server.handleUpdateCat)
	server.handle(http.MethodDelete, Endpoints.CatDelete, server.handleDeleteCat)

	server.handle(http.MethodPost, Endpoints.MissionCreate, server.handleAddMission)
	server.handle(http.MethodGet, Endpoints.MissionGet, server.handleGetMission)
	server.handle(http.MethodGet, Endpoints.MissionGetAll, server.handleGetAllMissions)
	server.handle(http.MethodPut, Endpoints.MissionUpdate, server.handleUpdateMission)
	server.handle(http.MethodPost, Endpoints.MissionAssign, server.handleAssignMission)
	server.handle(http.MethodPost, Endpoints.MissionComplete, server.handleCompleteMission)
	server.handle(http.MethodPost, Endpoints.MissionAddTarget, server.handleAddTarget)
	server.handle(http.MethodDelete, Endpoints.MissionDelete, server.handleDeleteMission)

	server.handle(http.MethodPut, Endpoints.TargetUpdate, server.handleUpdateTarget)

	router.GET(Endpoints.Health, server.handleHealth)
	if server.metrics != nil {
		router.GET(Endpoints.Metrics, gin.WrapH(server.metrics.Handler()))
	}
	return server
}

// handle registers path with and without the trailing slash so neither form is redirected.
func (s *Server) handle(method, path string, handler gin.HandlerFunc) {
	trimmed := strings.TrimSuffix(path, "/")
	s.router.Handle(method, trimmed, handler)
	s.router.Handle(method, trimmed+"/", handler)
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	if len(origins) == 1 && origins[0] == "*" {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	config.AllowHeaders = append(config.AllowHeaders, logging.RequestIDHeader)
	config.ExposeHeaders = []string{logging.RequestIDHeader}
	return config
}

func (s *Server) handleAddCat(ctx *gin.Context) {
	var cat models.NewCat
	if err := ctx.ShouldBindJSON(&cat); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}

	newCat, err := s.catService.Add(ctx, cat.ToCat())
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, newCat)
}

func (s *Server) handleGetCat(ctx *gin.Context) {
	id, ok := pathId(ctx, "Spy cat not found. Use number as id!")
	if !ok {
		return
	}

	cat, err := s.catService.GetById(ctx, id)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, cat)
}

func (s *Server) handleUpdateCat(ctx *gin.Context) {
	id, ok := pathId(ctx, "Spy cat not found. Use number as id!")
	if !ok {
		return
	}
	var update models.CatUpdate
	if err := ctx.ShouldBindJSON(&update); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}
	updatedCat, err := s.catService.Update(ctx, id, update)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, updatedCat)
}

func (s *Server) handleDeleteCat(ctx *gin.Context) {
	id, ok := pathId(ctx, "Spy cat not found. Use number as id!")
	if !ok {
		return
	}

	if err := s.catService.DeleteById(ctx, id); err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (s *Server) handleGetAllCats(ctx *gin.Context) {
	cats, err := s.catService.GetAll(ctx)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, cats)
}

func (s *Server) handleAddMission(ctx *gin.Context) {
	var mission models.NewMission
	if err := ctx.ShouldBindJSON(&mission); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": "invalid data. New mission should have from 1 to 3 targets: " + err.Error(),
		})
		return
	}
	savedMission, err := s.missionService.Add(ctx, mission)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, savedMission)
}

func (s *Server) handleGetMission(ctx *gin.Context) {
	id, ok := pathId(ctx, "Mission not found. Use number as id!")
	if !ok {
		return
	}

	mission, err := s.missionService.GetById(ctx, id)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, mission)
}

func (s *Server) handleGetAllMissions(ctx *gin.Context) {
	var query models.PaginationQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}
	missions, err := s.missionService.GetAll(ctx, query)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, missions)
}

func (s *Server) handleUpdateMission(ctx *gin.Context) {
	id, ok := pathId(ctx, "Mission not found. Use number as id!")
	if !ok {
		return
	}
	var update models.MissionUpdate
	if err := ctx.ShouldBindJSON(&update); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}
	mission, err := s.missionService.Update(ctx, id, update)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, mission)
}

func (s *Server) handleAssignMission(ctx *gin.Context) {
	missionId, ok := pathId(ctx, "Mission not found. Use number as id!")
	if !ok {
		return
	}
	catId, err := strconv.ParseInt(ctx.Query("cat_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": "cat_id query parameter must be a number.",
		})
		return
	}
	mission, err := s.missionService.Assign(ctx, missionId, catId)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, mission)
}

func (s *Server) handleCompleteMission(ctx *gin.Context) {
	missionId, ok := pathId(ctx, "Mission not found. Use number as id!")
	if !ok {
		return
	}
	mission, err := s.missionService.Complete(ctx, missionId)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, mission)
}

func (s *Server) handleAddTarget(ctx *gin.Context) {
	missionId, ok := pathId(ctx, "Mission not found. Use number as id!")
	if !ok {
		return
	}
	var target models.NewTarget
	if err := ctx.ShouldBindJSON(&target); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": "incorrect target format: " + err.Error(),
		})
		return
	}

	savedTarget, err := s.missionService.AddTarget(ctx, missionId, target)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, savedTarget)
}

func (s *Server) handleDeleteMission(ctx *gin.Context) {
	missionId, ok := pathId(ctx, "Mission not found. Use number as id!")
	if !ok {
		return
	}
	if err := s.missionService.Delete(ctx, missionId); err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "mission deleted",
	})
}

func (s *Server) handleUpdateTarget(ctx *gin.Context) {
	targetId, ok := pathId(ctx, "Target not found. Use number as id!")
	if !ok {
		return
	}
	var update models.TargetUpdate
	if err := ctx.ShouldBindJSON(&update); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}
	target, err := s.missionService.UpdateTarget(ctx, targetId, update)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, target)
}

func (s *Server) handleHealth(ctx *gin.Context) {
	status := http.StatusOK
	body := gin.H{"database": "ok"}
	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(pingCtx); err != nil {
			status = http.StatusServiceUnavailable
			body["database"] = err.Error()
		}
	}
	if s.breeds != nil {
		body["breeds"] = s.breeds.Status()
	}
	ctx.JSON(status, body)
}

// pathId parses the :id parameter. A non-numeric id can never match a row, so it is a 404.
func pathId(ctx *gin.Context, message string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"message": message,
		})
		return 0, false
	}
	return id, true
}

func statusFor(kind myerrors.Kind) int {
	switch kind {
	case myerrors.KindNotFound:
		return http.StatusNotFound
	case myerrors.KindInvalidState, myerrors.KindValidation, myerrors.KindConflict:
		return http.StatusBadRequest
	case myerrors.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(ctx *gin.Context, err error) {
	status := statusFor(myerrors.KindOf(err))
	message := err.Error()
	if status == http.StatusInternalServerError {
		// internal details stay in the log
		_ = ctx.Error(err)
		message = "internal server error"
	}
	var reqErr *myerrors.RequestError
	if errors.As(err, &reqErr) {
		message = reqErr.Message
	}
	ctx.JSON(status, gin.H{
		"message": message,
	})
}

func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Serve is Run on an already open listener.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("http server listening", "addr", listener.Addr().String())
	return s.httpServer.Serve(listener)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
