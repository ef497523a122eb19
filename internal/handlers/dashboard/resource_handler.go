// internal/handlers/dashboard/resource_handler.go
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"helpdesk-dashboard/internal/domain/permission"
	"helpdesk-dashboard/internal/domain/resource"
	"helpdesk-dashboard/internal/guard"
	"helpdesk-dashboard/internal/middleware"
	"helpdesk-dashboard/internal/pkg/apiclient"
	xerrors "helpdesk-dashboard/internal/pkg/errors"
	"helpdesk-dashboard/internal/pkg/querycache"
	"helpdesk-dashboard/internal/pkg/response"
	"helpdesk-dashboard/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ResourceHandler struct {
	cache    querycache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewResourceHandler(cache querycache.Cache, cacheTTL time.Duration, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Actions are the mutations the current user may offer on a screen.
type Actions struct {
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

type ListView struct {
	Resource string          `json:"resource"`
	Items    json.RawMessage `json:"items"`
	Actions  Actions         `json:"actions"`
}

type NavItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func actionsFor(st session.State, res resource.Resource) Actions {
	return Actions{
		Create: guard.Allowed(st, guard.Requirement{Permission: res.Create}),
		Edit:   guard.Allowed(st, guard.Requirement{Permission: res.Edit}),
		Delete: guard.Allowed(st, guard.Requirement{Permission: res.Delete}),
	}
}

// Home is the landing page: the session and the screens it can open.
func (h *ResourceHandler) Home(c *gin.Context) {
	st := middleware.MustGetSession(c).State()

	nav := make([]NavItem, 0, len(resource.Catalog))
	for _, res := range resource.Catalog {
		if guard.Allowed(st, guard.Requirement{Permission: res.View}) {
			nav = append(nav, NavItem{Name: res.Name, Path: "/dashboard/" + res.Name})
		}
	}
	response.Success(c, http.StatusOK, "dashboard", gin.H{
		"session":    st.View(),
		"navigation": nav,
	})
}

// Dialer is the softphone screen; it only needs the caller's identity.
func (h *ResourceHandler) Dialer(c *gin.Context) {
	st := middleware.MustGetSession(c).State()
	response.Success(c, http.StatusOK, "dialer", gin.H{
		"user":        st.User,
		"can_dial":    guard.Allowed(st, guard.Requirement{Permission: permission.UseDialer}),
		"can_message": guard.Allowed(st, guard.Requirement{Permission: permission.SendNotifications}),
	})
}

// List returns a resource collection with the actions the user may take.
func (h *ResourceHandler) List(c *gin.Context) {
	res, ok := h.lookup(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	api := apiclient.NewResourceAPI(middleware.MustGetClient(c), res)
	query := c.Request.URL.Query()

	items, err := querycache.Fetch(ctx, h.cache, middleware.Scope(c), listKey(res, query.Encode()), h.cacheTTL,
		func(ctx context.Context) (json.RawMessage, error) { return api.List(ctx, query) })
	if err != nil {
		h.logger.Warn("list failed", zap.String("resource", res.Name), zap.Error(err))
		h.fail(c, err, fmt.Sprintf("failed to load %s", res.Name))
		return
	}

	st := middleware.MustGetSession(c).State()
	response.Success(c, http.StatusOK, res.Name, ListView{
		Resource: res.Name,
		Items:    items,
		Actions:  actionsFor(st, res),
	})
}

func (h *ResourceHandler) Get(c *gin.Context) {
	res, ok := h.lookup(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	api := apiclient.NewResourceAPI(middleware.MustGetClient(c), res)

	item, err := querycache.Fetch(ctx, h.cache, middleware.Scope(c), itemKey(res, id), h.cacheTTL,
		func(ctx context.Context) (json.RawMessage, error) { return api.Get(ctx, id) })
	if err != nil {
		h.fail(c, err, fmt.Sprintf("failed to load %s %s", res.Name, id))
		return
	}

	st := middleware.MustGetSession(c).State()
	response.Success(c, http.StatusOK, res.Name, gin.H{
		"item":    item,
		"actions": actionsFor(st, res),
	})
}

func (h *ResourceHandler) Create(c *gin.Context) {
	res, ok := h.lookup(c)
	if !ok || !h.permit(c, res, res.Create) {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}
	api := apiclient.NewResourceAPI(middleware.MustGetClient(c), res)
	result, err := api.Create(c.Request.Context(), body)
	h.finishMutation(c, res, result, err, http.StatusCreated, "created successfully", "failed to create")
}

func (h *ResourceHandler) Update(c *gin.Context) {
	res, ok := h.lookup(c)
	if !ok || !h.permit(c, res, res.Edit) {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}
	api := apiclient.NewResourceAPI(middleware.MustGetClient(c), res)
	result, err := api.Update(c.Request.Context(), c.Param("id"), body)
	h.finishMutation(c, res, result, err, http.StatusOK, "updated successfully", "failed to update")
}

func (h *ResourceHandler) Delete(c *gin.Context) {
	res, ok := h.lookup(c)
	if !ok || !h.permit(c, res, res.Delete) {
		return
	}
	api := apiclient.NewResourceAPI(middleware.MustGetClient(c), res)
	result, err := api.Delete(c.Request.Context(), c.Param("id"))
	h.finishMutation(c, res, result, err, http.StatusOK, "deleted successfully", "failed to delete")
}

// finishMutation answers with the backend message, falling back to a generic
// one, and drops the user's cached reads of the resource.
func (h *ResourceHandler) finishMutation(c *gin.Context, res resource.Resource, result *apiclient.MutationResult, err error, status int, okMessage, failMessage string) {
	if err != nil {
		h.logger.Info("mutation failed",
			zap.String("resource", res.Name),
			zap.String("method", c.Request.Method),
			zap.Error(err),
		)
		h.fail(c, err, fmt.Sprintf("%s %s", failMessage, singular(res.Name)))
		return
	}

	if scope := middleware.Scope(c); scope != "" && h.cache != nil {
		if err := h.cache.PurgePrefix(c.Request.Context(), scope, res.Name+":"); err != nil {
			h.logger.Warn("failed to invalidate cached queries", zap.String("resource", res.Name), zap.Error(err))
		}
	}

	message := result.Message
	if message == "" {
		message = fmt.Sprintf("%s %s", singular(res.Name), okMessage)
	}
	response.Success(c, status, message, result.Data)
}

// fail answers a backend failure. When the session expired underneath the
// request the pending sign-in navigation is the answer instead.
func (h *ResourceHandler) fail(c *gin.Context, err error, fallback string) {
	if xerrors.Is(err, xerrors.ErrSessionExpired) {
		if nav, ok := middleware.GetNavigator(c); ok {
			if _, pending := nav.Pending(); pending {
				c.Abort()
				return
			}
		}
	}
	response.Upstream(c, err, fallback)
}

func (h *ResourceHandler) lookup(c *gin.Context) (resource.Resource, bool) {
	res, ok := resource.Lookup(c.Param("resource"))
	if !ok {
		response.NotFound(c, "unknown resource")
	}
	return res, ok
}

// permit is the component-level check for a mutation button; the page guard
// already confirmed the session can view the resource.
func (h *ResourceHandler) permit(c *gin.Context, res resource.Resource, action permission.Key) bool {
	st := middleware.MustGetSession(c).State()
	if guard.Allowed(st, guard.Requirement{Permission: action}) {
		return true
	}
	response.Forbidden(c, fmt.Sprintf("you are not allowed to change %s", res.Name))
	return false
}

func bindBody(c *gin.Context) (json.RawMessage, bool) {
	var body json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		response.ValidationError(c, "request body must be a JSON object", err)
		return nil, false
	}
	return body, true
}

func listKey(res resource.Resource, query string) string {
	return res.Name + ":list:" + query
}

func itemKey(res resource.Resource, id string) string {
	return res.Name + ":item:" + id
}

func singular(name string) string {
	switch {
	case name == "slas":
		return "sla"
	case len(name) > 1 && name[len(name)-1] == 's':
		return name[:len(name)-1]
	}
	return name
}
