package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"taskline/internal/domain"
	"taskline/internal/domain/project"
	"taskline/internal/engine"
	"taskline/internal/events"
	"taskline/internal/logging"
	"taskline/internal/metrics"
	"taskline/internal/projection"
	"taskline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine    engine.Engine
	Repo      repo.Repo
	Projector *projection.Projector
	Metrics   *metrics.Metrics
	BasePath  string
	Version   string
	Auth      AuthConfig
	// WaitForProjection makes command handlers block until the read model
	// has applied the appended events, bounded by ProjectionTimeout.
	WaitForProjection bool
	ProjectionTimeout time.Duration
	Logger            logging.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"unknown_status"`
	Message string         `json:"message" example:"unknown status"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"statusId\":\"8c0e\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// backend is what the route handlers share.
type backend struct {
	engine    engine.Engine
	repo      repo.Repo
	projector *projection.Projector
	wait      bool
	timeout   time.Duration
	logger    logging.Logger
}

// New returns an HTTP handler exposing the Taskline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New("server")
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	timeout := cfg.ProjectionTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	b := backend{
		engine:    cfg.Engine,
		repo:      cfg.Repo,
		projector: cfg.Projector,
		wait:      cfg.WaitForProjection && cfg.Projector != nil,
		timeout:   timeout,
		logger:    logger,
	}
	if b.repo.DB == nil {
		b.repo = cfg.Engine.Repo
	}

	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(cfg.Auth))
	hcfg := huma.DefaultConfig("Taskline API", version)
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerMetrics(router, basePath, cfg.Metrics)
	registerHealth(group)
	registerUsers(group, b)
	registerProjects(group, b)
	registerTasks(group, b)
	registerStatuses(group, b)
	registerEvents(group, b)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// Command validation failures are client errors, including commands against
// aggregates that do not exist. Missing read-model rows are 404.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case domain.IsDomainError(err):
		return newAPIError(http.StatusBadRequest, domainErrorCode(err), msg, nil)
	case errors.Is(err, events.ErrConcurrencyConflict):
		return newAPIError(http.StatusConflict, "concurrency_conflict", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

var domainErrorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrUnknownStatus, "unknown_status"},
	{domain.ErrUnknownMember, "unknown_member"},
	{domain.ErrAlreadyAssigned, "already_assigned"},
	{domain.ErrDuplicateUsername, "duplicate_username"},
	{domain.ErrAlreadyMember, "already_member"},
	{domain.ErrStatusInUse, "status_in_use"},
	{domain.ErrMissingProfile, "missing_profile"},
	{domain.ErrAlreadyExists, "already_exists"},
	{domain.ErrInvalidArgument, "invalid_argument"},
	{domain.ErrNotFound, "not_found"},
}

func domainErrorCode(err error) string {
	for _, c := range domainErrorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "bad_request"
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerMetrics(r chi.Router, basePath string, m *metrics.Metrics) {
	if m == nil {
		return
	}
	r.Handle(path.Join(basePath, "metrics"), m.Handler())
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

// applyAuthSecurity documents the optional actor credentials. An empty
// requirement keeps anonymous calls valid.
func applyAuthSecurity(oas *huma.OpenAPI) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["actorHeader"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Actor-Id",
	}
	oas.Security = []map[string][]string{
		{},
		{"bearerAuth": {}},
		{"actorHeader": {}},
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Taskline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Events record the actor from Authorization: Bearer &lt;token&gt; or X-Actor-Id.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type commandOutput struct {
	Body CommandResponse `json:"body"`
}

// respond waits for the read model when configured and renders the events.
// Events appended by a failed saga, compensations included, are still
// awaited so reads after an error are consistent.
func (b backend) respond(ctx context.Context, recs []events.Record, err error, id func([]events.Record) string) (*commandOutput, error) {
	b.await(ctx, recs)
	if err != nil {
		return nil, handleError(err)
	}
	resID := ""
	if id != nil {
		resID = id(recs)
	}
	return &commandOutput{Body: commandResponse(resID, recs)}, nil
}

func (b backend) await(ctx context.Context, recs []events.Record) {
	if !b.wait || len(recs) == 0 {
		return
	}
	var last int64
	for _, r := range recs {
		if r.Position > last {
			last = r.Position
		}
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.projector.WaitFor(ctx, last); err != nil {
		b.logger.Warnw("read model behind after command", "position", last, "error", err)
	}
}

// aggregateID returns the id of the aggregate the first record belongs to.
func aggregateID(aggregateType string) func([]events.Record) string {
	return func(recs []events.Record) string {
		for _, r := range recs {
			if r.AggregateType == aggregateType {
				return r.AggregateID
			}
		}
		return ""
	}
}

// payloadField returns a string field of the first record of type t.
func payloadField(t domain.EventType, field string) func([]events.Record) string {
	return func(recs []events.Record) string {
		for _, r := range recs {
			if r.Type != string(t) {
				continue
			}
			if v, ok := decodeJSONMap(r.Payload)[field].(string); ok {
				return v
			}
		}
		return ""
	}
}

func registerUsers(api huma.API, b backend) {
	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/users/signup",
		Summary:       "Register a user and its person profile",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body SignupRequest `json:"body"`
	}) (*commandOutput, error) {
		recs, err := b.engine.Signup(ctx, engine.SignupOptions{
			Username:   input.Body.Username,
			FirstName:  input.Body.FirstName,
			MiddleName: input.Body.MiddleName,
			LastName:   input.Body.LastName,
			Password:   input.Body.Password,
			ActorID:    actorID(ctx),
		})
		return b.respond(ctx, recs, err, aggregateID(domain.AggregatePerson))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users/all",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		items, err := b.repo.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]UserResponse, 0, len(items))
		for _, u := range items {
			out = append(out, userResponse(u))
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/get",
		Summary:     "Get a user by username",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Username string `query:"username" required:"true" minLength:"1"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		u, err := b.repo.GetUserByUsername(ctx, input.Username)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-person",
		Method:      http.MethodGet,
		Path:        "/users/person",
		Summary:     "Get the person profile of a user",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Username string `query:"username" required:"true" minLength:"1"`
	}) (*struct {
		Body PersonResponse `json:"body"`
	}, error) {
		p, err := b.repo.GetPersonByUsername(ctx, input.Username)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PersonResponse `json:"body"`
		}{Body: personResponse(p)}, nil
	})
}

type projectPath struct {
	ProjectID string `path:"projectId"`
}

func registerProjects(api huma.API, b backend) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project with its default status and creator membership",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*commandOutput, error) {
		recs, err := b.engine.CreateProject(ctx, engine.ProjectCreateOptions{
			Title:           input.Body.Title,
			CreatorPersonID: input.Body.CreatorPersonID,
			ActorID:         actorID(ctx),
		})
		return b.respond(ctx, recs, err, aggregateID(domain.AggregateProject))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects/all",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectSummaryResponse `json:"body"`
	}, error) {
		items, err := b.repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectSummaryResponse `json:"body"`
		}{Body: mapProjectSummaries(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-person-projects",
		Method:      http.MethodGet,
		Path:        "/projects/users/{personId}",
		Summary:     "List projects the person is a member of",
	}, func(ctx context.Context, input *struct {
		PersonID string `path:"personId"`
	}) (*struct {
		Body []ProjectSummaryResponse `json:"body"`
	}, error) {
		items, err := b.repo.ListProjectsByPerson(ctx, input.PersonID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectSummaryResponse `json:"body"`
		}{Body: mapProjectSummaries(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}",
		Summary:     "Get project with members, statuses and tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, err := b.repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/members",
		Summary:     "List project members",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body []MemberResponse `json:"body"`
	}, error) {
		items, err := b.repo.ListMembers(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MemberResponse `json:"body"`
		}{Body: mapMembers(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-member",
		Method:      http.MethodPost,
		Path:        "/projects/{projectId}/members",
		Summary:     "Add a person as project member",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string           `path:"projectId"`
		Body      AddMemberRequest `json:"body"`
	}) (*commandOutput, error) {
		recs, err := b.engine.AddMember(ctx, input.ProjectID, input.Body.PersonID, actorID(ctx))
		return b.respond(ctx, recs, err, payloadField(project.TypeMemberCreated, "memberId"))
	})
}

func mapProjectSummaries(items []repo.ProjectSummary) []ProjectSummaryResponse {
	out := make([]ProjectSummaryResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectSummaryResponse(p))
	}
	return out
}

type taskPath struct {
	ProjectID string `path:"projectId"`
	TaskID    string `path:"taskId"`
}

func registerTasks(api huma.API, b backend) {
	huma.Register(api, huma.Operation{
		OperationID: "list-all-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/tasks/all",
		Summary:     "List tasks of every project",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		items, err := b.repo.ListAllTasks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/tasks",
		Summary:     "List project tasks",
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		items, err := b.repo.ListTasks(ctx, repo.TaskFilters{ProjectID: input.ProjectID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks-by-status",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/tasks/by_status",
		Summary:     "List project tasks in a status",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"projectId"`
		StatusID  string `query:"statusId" required:"true" minLength:"1"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		items, err := b.repo.ListTasksByStatus(ctx, input.ProjectID, input.StatusID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/tasks/{taskId}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := b.repo.GetTask(ctx, input.ProjectID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task-status",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/tasks/{taskId}/status",
		Summary:     "Get the status of a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body StatusResponse `json:"body"`
	}, error) {
		s, err := b.repo.GetTaskStatus(ctx, input.ProjectID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StatusResponse `json:"body"`
		}{Body: statusResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{projectId}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"projectId"`
		Body      CreateTaskRequest `json:"body"`
	}) (*commandOutput, error) {
		recs, err := b.engine.CreateTask(ctx, engine.TaskCreateOptions{
			ProjectID: input.ProjectID,
			Title:     input.Body.Title,
			StatusID:  input.Body.StatusID,
			Assignees: input.Body.Assignees,
			ActorID:   actorID(ctx),
		})
		return b.respond(ctx, recs, err, payloadField(project.TypeTaskCreated, "taskId"))
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-member",
		Method:      http.MethodPost,
		Path:        "/projects/{projectId}/tasks/{taskId}/assignees",
		Summary:     "Assign a member to a task",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string              `path:"projectId"`
		TaskID    string              `path:"taskId"`
		Body      AssignMemberRequest `json:"body"`
	}) (*commandOutput, error) {
		recs, err := b.engine.AssignMember(ctx, input.ProjectID, input.TaskID, input.Body.MemberID, actorID(ctx))
		return b.respond(ctx, recs, err, nil)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task-status",
		Method:      http.MethodPost,
		Path:        "/projects/{projectId}/tasks/{taskId}/status",
		Summary:     "Move a task to another status",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string                  `path:"projectId"`
		TaskID    string                  `path:"taskId"`
		Body      UpdateTaskStatusRequest `json:"body"`
	}) (*commandOutput, error) {
		recs, err := b.engine.UpdateTaskStatus(ctx, input.ProjectID, input.TaskID, input.Body.StatusID, actorID(ctx))
		return b.respond(ctx, recs, err, nil)
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-task",
		Method:      http.MethodPost,
		Path:        "/projects/{projectId}/tasks/{taskId}/name",
		Summary:     "Rename a task",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"projectId"`
		TaskID    string            `path:"taskId"`
		Body      RenameTaskRequest `json:"body"`
	}) (*commandOutput, error) {
		recs, err := b.engine.RenameTask(ctx, input.ProjectID, input.TaskID, input.Body.Title, actorID(ctx))
		return b.respond(ctx, recs, err, nil)
	})
}

func registerStatuses(api huma.API, b backend) {
	huma.Register(api, huma.Operation{
		OperationID: "list-statuses",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/statuses",
		Summary:     "List project statuses in display order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body []StatusResponse `json:"body"`
	}, error) {
		items, err := b.repo.ListStatuses(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []StatusResponse `json:"body"`
		}{Body: mapStatuses(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-status",
		Method:        http.MethodPost,
		Path:          "/projects/{projectId}/statuses",
		Summary:       "Create status at the end of the order",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string              `path:"projectId"`
		Body      CreateStatusRequest `json:"body"`
	}) (*commandOutput, error) {
		recs, err := b.engine.CreateStatus(ctx, engine.StatusCreateOptions{
			ProjectID: input.ProjectID,
			Name:      input.Body.Name,
			Color:     input.Body.Color,
			ActorID:   actorID(ctx),
		})
		return b.respond(ctx, recs, err, payloadField(project.TypeStatusCreated, "statusId"))
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-status-order",
		Method:      http.MethodPatch,
		Path:        "/projects/{projectId}/statuses",
		Summary:     "Reorder statuses",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string                   `path:"projectId"`
		Body      UpdateStatusOrderRequest `json:"body"`
	}) (*commandOutput, error) {
		recs, err := b.engine.UpdateStatusOrder(ctx, input.ProjectID, input.Body.OrderedStatuses, actorID(ctx))
		return b.respond(ctx, recs, err, nil)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-status",
		Method:      http.MethodDelete,
		Path:        "/projects/{projectId}/statuses/{statusId}",
		Summary:     "Delete a status no task is in",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"projectId"`
		StatusID  string `path:"statusId"`
	}) (*commandOutput, error) {
		recs, err := b.engine.DeleteStatus(ctx, input.ProjectID, input.StatusID, actorID(ctx))
		return b.respond(ctx, recs, err, nil)
	})
}

func registerEvents(api huma.API, b backend) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Tail the event log",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		After int64 `query:"after" minimum:"0"`
		Limit int   `query:"limit" default:"50"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		items, err := b.engine.Store.After(ctx, input.After, limit+1)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextAfter = items[limit-1].Position
		}
		for _, rec := range items {
			resp.Items = append(resp.Items, eventResponse(rec))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 500 {
		return 500
	}
	return in
}
