package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/queue"
	"github.com/z-wentao/ytscribe/pkg/storage"
	"github.com/z-wentao/ytscribe/pkg/subtitles"
	"github.com/z-wentao/ytscribe/pkg/translator"
)

const version = "0.1.0"

// Service 处理器用到的流水线能力，由 pipeline.Pipeline 实现
type Service interface {
	Resolve(rawURL string) (models.VideoReference, error)
	Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error)
	DetectLanguage(ctx context.Context, text string) string
	SupportedLanguages() []translator.Language
}

// App 应用上下文
type App struct {
	store   storage.Store
	queue   queue.Queue
	service Service
	logger  *slog.Logger
}

// setupRouter 设置路由
func (app *App) setupRouter(r *gin.Engine) *gin.Engine {
	api := r.Group("/api")
	{
		api.GET("/ping", app.handlePing)
		api.GET("/languages", app.handleLanguages)
		api.POST("/resolve", app.handleResolve)
		api.POST("/translate", app.handleTranslateText)
		api.POST("/detect", app.handleDetect)

		api.POST("/jobs", app.handleCreateJob)
		api.GET("/jobs", app.handleListJobs)
		api.GET("/jobs/:job_id", app.handleGetJob)
		api.DELETE("/jobs/:job_id", app.handleDeleteJob)
		api.POST("/jobs/:job_id/translate", app.handleTranslateJob)
		api.GET("/jobs/:job_id/subtitles", app.handleSubtitles)
	}
	return r
}

// statusFor 把领域错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch models.ErrorKind(err) {
	case "invalid_reference", "invalid_input", "unsupported_language":
		return http.StatusBadRequest
	case "bot_detected":
		return http.StatusServiceUnavailable
	case "download_error", "translation_error":
		return http.StatusBadGateway
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error": err.Error(),
		"kind":  models.ErrorKind(err),
	})
}

// handlePing 健康检查
func (app *App) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"version": version,
	})
}

// handleLanguages 可翻译的目标语言
func (app *App) handleLanguages(c *gin.Context) {
	langs := app.service.SupportedLanguages()
	c.JSON(http.StatusOK, gin.H{
		"languages": langs,
		"total":     len(langs),
	})
}

type resolveRequest struct {
	URL string `json:"url" binding:"required"`
}

// handleResolve 只解析链接，不创建任务
func (app *App) handleResolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	ref, err := app.service.Resolve(req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"video_id":  ref,
		"watch_url": ref.WatchURL(),
	})
}

type createJobRequest struct {
	URL           string `json:"url" binding:"required"`
	PreferredLang string `json:"preferred_lang"`
}

// handleCreateJob 创建转录任务并加入队列
func (app *App) handleCreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	ref, err := app.service.Resolve(req.URL)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	job := &models.TranscriptionJob{
		JobID:         uuid.New().String(),
		URL:           req.URL,
		VideoID:       ref,
		PreferredLang: strings.TrimSpace(req.PreferredLang),
		Status:        models.StatusPending,
		CreatedAt:     time.Now(),
	}
	if err := app.store.Save(ctx, job); err != nil {
		app.logger.Error("❌ 保存任务失败", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存任务失败"})
		return
	}

	task := queue.Task{JobID: job.JobID, URL: job.URL, PreferredLang: job.PreferredLang}
	if err := app.queue.Enqueue(ctx, task); err != nil {
		app.logger.Error("❌ 任务加入队列失败", slog.Any("error", err))
		app.store.Delete(ctx, job.JobID)
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrFull) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "任务加入队列失败"})
		return
	}

	app.logger.Info("✓ 任务已加入队列", slog.String("job_id", job.JobID), slog.String("video_id", ref.String()))
	c.JSON(http.StatusAccepted, gin.H{
		"job_id":   job.JobID,
		"video_id": ref,
		"status":   job.Status,
		"message":  "已提交，正在处理中...",
	})
}

// handleGetJob 获取任务状态
func (app *App) handleGetJob(c *gin.Context) {
	job, ok := app.loadJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

// handleListJobs 列出所有任务
func (app *App) handleListJobs(c *gin.Context) {
	jobs, err := app.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取任务列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// handleDeleteJob 删除任务
func (app *App) handleDeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if err := app.store.Delete(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除任务失败"})
		return
	}
	c.Status(http.StatusNoContent)
}

type translateJobRequest struct {
	TargetLang string `json:"target_lang" binding:"required"`
	SourceLang string `json:"source_lang"`
}

// handleTranslateJob 翻译已完成任务的文本，译文保存在任务里
func (app *App) handleTranslateJob(c *gin.Context) {
	var req translateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	job, ok := app.loadJob(c)
	if !ok {
		return
	}
	if job.Status != models.StatusCompleted || job.Result == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "任务尚未完成，无法翻译"})
		return
	}

	source := req.SourceLang
	if source == "" {
		source = job.SourceLanguage
	}
	target := strings.ToLower(strings.TrimSpace(req.TargetLang))

	translated, err := app.service.Translate(c.Request.Context(), job.Result, target, source)
	if err != nil {
		app.logger.Error("❌ 翻译失败", slog.String("job_id", job.JobID), slog.Any("error", err))
		respondError(c, err)
		return
	}

	err = app.store.Update(c.Request.Context(), job.JobID, func(j *models.TranscriptionJob) {
		if j.Translations == nil {
			j.Translations = make(map[string]string)
		}
		j.Translations[target] = translated
	})
	if err != nil {
		app.logger.Warn("⚠️ 保存译文失败", slog.String("job_id", job.JobID), slog.Any("error", err))
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":      job.JobID,
		"target_lang": target,
		"translation": translated,
	})
}

type translateTextRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang" binding:"required"`
	SourceLang string `json:"source_lang"`
}

// handleTranslateText 翻译任意文本
func (app *App) handleTranslateText(c *gin.Context) {
	var req translateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	translated, err := app.service.Translate(c.Request.Context(), req.Text, req.TargetLang, req.SourceLang)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"translation": translated})
}

type detectRequest struct {
	Text string `json:"text" binding:"required"`
}

// handleDetect 检测文本语言
func (app *App) handleDetect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": app.service.DetectLanguage(c.Request.Context(), req.Text)})
}

// handleSubtitles 把任务的时间轴导出为 SRT 或 WebVTT
func (app *App) handleSubtitles(c *gin.Context) {
	format, err := subtitles.ParseFormat(c.DefaultQuery("format", "srt"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, ok := app.loadJob(c)
	if !ok {
		return
	}
	if job.Status != models.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "任务尚未完成"})
		return
	}
	if len(job.Cues) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "该任务没有时间轴信息"})
		return
	}

	filename := job.VideoID.String() + "." + string(format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, format.ContentType(), []byte(subtitles.Render(format, job.Cues)))
}

func (app *App) loadJob(c *gin.Context) (*models.TranscriptionJob, bool) {
	job, err := app.store.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "获取任务失败"})
		}
		return nil, false
	}
	return job, true
}
