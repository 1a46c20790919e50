package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jinford/srt-generator/internal/module/transcription/application"
	"github.com/jinford/srt-generator/internal/module/transcription/domain"
	"github.com/jinford/srt-generator/internal/platform/container"
)

var (
	errMissingFile     = errors.New("missing audio file")
	errNoUpload        = errors.New("no previous upload in this session")
	errMissingEditor   = errors.New("editor_name is required")
	errBlankFeedback   = errors.New("username and feedback are required")
	errUnknownArtifact = errors.New("artifact kind must be txt or srt")
)

type API struct {
	feedback     *application.FeedbackRecorder
	sessions     *sessionStore
	pollInterval time.Duration
	pollMaxWait  time.Duration
	now          func() time.Time
}

func NewAPI(c *container.ServiceContainer, sessions *sessionStore) *API {
	poll := c.PollOptions()
	if poll.Interval <= 0 {
		poll.Interval = application.DefaultPollInterval
	}
	if poll.MaxWait <= 0 {
		poll.MaxWait = application.DefaultPollMaxWait
	}
	return &API{
		feedback:     c.Feedback,
		sessions:     sessions,
		pollInterval: poll.Interval,
		pollMaxWait:  poll.MaxWait,
		now:          time.Now,
	}
}

func registerRoutes(r *gin.Engine, api *API) {
	r.GET("/api/health", api.handleHealth)

	apiGroup := r.Group("/api")
	apiGroup.Use(api.sessions.Middleware())
	{
		apiGroup.GET("/jobs", api.handleListJobs)
		apiGroup.POST("/jobs", api.handleCreateJob)
		apiGroup.POST("/jobs/regenerate", api.handleRegenerateJob)

		apiGroup.GET("/jobs/:id", api.handleCheckJob)
		apiGroup.GET("/jobs/:id/artifacts/:kind", api.handleDownloadArtifact)
		apiGroup.POST("/jobs/:id/feedback", api.handleRecordFeedback)
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleListJobs(c *gin.Context) {
	session := currentSession(c)
	c.JSON(http.StatusOK, gin.H{"jobs": session.Registry.ListAll()})
}

func (a *API) handleCreateJob(c *gin.Context) {
	session := currentSession(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, errMissingFile)
		return
	}

	opts, err := optionsFromForm(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	source, err := session.Jobs.Upload(ctx, data, fileHeader.Filename)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	session.setUpload(source, fileHeader.Filename)

	job, err := session.Jobs.Submit(ctx, source, fileHeader.Filename, opts)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"job": job})
}

func (a *API) handleRegenerateJob(c *gin.Context) {
	session := currentSession(c)

	upload := session.previousUpload()
	if upload == nil {
		respondError(c, http.StatusBadRequest, errNoUpload)
		return
	}

	var payload optionsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	opts, err := payload.options()
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	job, err := session.Jobs.Submit(c.Request.Context(), upload.Source, upload.Filename, opts)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"job": job})
}

func (a *API) handleCheckJob(c *gin.Context) {
	session := currentSession(c)

	result, err := session.Jobs.Check(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}

	resp := gin.H{
		"job":             result.Job,
		"terminal":        result.Terminal,
		"poll_after_ms":   a.pollInterval.Milliseconds(),
		"polling_timeout": application.IsPollingOverdue(result.Job, a.pollMaxWait, a.now()),
	}
	if result.PollErr != nil {
		resp["poll_error"] = result.PollErr.Error()
	}
	if len(result.Warnings) > 0 {
		warnings := make([]string, 0, len(result.Warnings))
		for _, w := range result.Warnings {
			warnings = append(warnings, w.Error())
		}
		resp["warnings"] = warnings
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleDownloadArtifact(c *gin.Context) {
	session := currentSession(c)

	kind := c.Param("kind")
	var contentType string
	switch kind {
	case domain.ArtifactTXT:
		contentType = "text/plain; charset=utf-8"
	case domain.ArtifactSRT:
		contentType = "application/x-subrip; charset=utf-8"
	default:
		respondError(c, http.StatusBadRequest, errUnknownArtifact)
		return
	}

	name, content, err := session.Jobs.Artifact(c.Request.Context(), c.Param("id"), kind)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, content)
}

func (a *API) handleRecordFeedback(c *gin.Context) {
	session := currentSession(c)

	var payload struct {
		Username string `json:"username"`
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(payload.Username) == "" || strings.TrimSpace(payload.Feedback) == "" {
		respondError(c, http.StatusBadRequest, errBlankFeedback)
		return
	}

	job, err := session.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}

	location, err := a.feedback.Record(c.Request.Context(), job.Filename, payload.Username, payload.Feedback, job.JobID)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"location": location})
}

// optionsPayload は再生成時の JSON 指定。省略した項目はデフォルト値を使う。
type optionsPayload struct {
	EditorName      string `json:"editor_name"`
	VADFilter       *bool  `json:"vad_filter"`
	MaxWordsPerLine *int   `json:"max_words_per_line"`
	Language        string `json:"language"`
}

func (p optionsPayload) options() (domain.Options, error) {
	opts := domain.DefaultOptions()
	opts.EditorName = strings.TrimSpace(p.EditorName)
	if opts.EditorName == "" {
		return domain.Options{}, errMissingEditor
	}
	if p.VADFilter != nil {
		opts.VADFilter = *p.VADFilter
	}
	if p.MaxWordsPerLine != nil {
		opts.MaxWordsPerLine = *p.MaxWordsPerLine
	}
	if lang := strings.TrimSpace(p.Language); lang != "" {
		opts.Language = lang
	}
	if err := opts.Validate(); err != nil {
		return domain.Options{}, err
	}
	return opts, nil
}

func optionsFromForm(c *gin.Context) (domain.Options, error) {
	payload := optionsPayload{
		EditorName: c.PostForm("editor_name"),
		Language:   c.PostForm("language"),
	}
	if raw := strings.TrimSpace(c.PostForm("vad_filter")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.Options{}, fmt.Errorf("%w: vad_filter must be true or false", domain.ErrInvalidOptions)
		}
		payload.VADFilter = &v
	}
	if raw := strings.TrimSpace(c.PostForm("max_words_per_line")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Options{}, fmt.Errorf("%w: max_words_per_line must be an integer", domain.ErrInvalidOptions)
		}
		payload.MaxWordsPerLine = &v
	}
	return payload.options()
}

// statusFor はドメインエラーを HTTP ステータスに対応付ける
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidOptions), errors.Is(err, domain.ErrInvalidJobID),
		errors.Is(err, application.ErrUnsupportedFile):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSubmission), errors.Is(err, domain.ErrPollingFailure):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrConnectivity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
