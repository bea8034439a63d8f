package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stn/agent-stream-app/internal/app/dto"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/core/flow"
)

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

type renameRequest struct {
	NewName string `json:"new_name" binding:"required"`
}

type importRequest struct {
	Path string `json:"path" binding:"required"`
}

type newNodeRequest struct {
	DefName string `json:"def_name" binding:"required"`
}

// bindJSON binds the request body, answering 400 on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		sendError(c, http.StatusBadRequest, fmt.Sprintf("%v: %v", dto.ErrInvalidInput, err))
		return false
	}
	return true
}

func (h *handler) listAgents(c *gin.Context) {
	defs, err := h.flows.Definitions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	sendSuccess(c, defs)
}

func (h *handler) newNode(c *gin.Context) {
	var req newNodeRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.flows.NewNode(c.Request.Context(), req.DefName)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendCreated(c, n)
}

func (h *handler) listFlows(c *gin.Context) {
	all, err := h.flows.LoadAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	sendSuccess(c, all)
}

func (h *handler) checkFlows(c *gin.Context) {
	broken, err := h.flows.Check(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	sendSuccess(c, broken)
}

func (h *handler) newFlow(c *gin.Context) {
	var req nameRequest
	if !bindJSON(c, &req) {
		return
	}
	f, err := h.flows.NewFlow(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendCreated(c, f)
}

func (h *handler) importFlow(c *gin.Context) {
	var req importRequest
	if !bindJSON(c, &req) {
		return
	}
	f, err := h.flows.Import(c.Request.Context(), req.Path)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendCreated(c, f)
}

func (h *handler) getFlow(c *gin.Context) {
	res, err := h.flows.Load(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	sendSuccess(c, res)
}

// saveFlow stores an editor flow. The name in the path wins over an empty
// body name; a different body name is rejected.
func (h *handler) saveFlow(c *gin.Context) {
	name := c.Param("name")
	policy, err := dto.ParseSavePolicy(c.Query("policy"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var ed flow.EditorFlow
	if !bindJSON(c, &ed) {
		return
	}
	if ed.Name == "" {
		ed.Name = name
	}
	if ed.Name != name {
		sendError(c, http.StatusBadRequest, fmt.Sprintf("flow name %q does not match path %q", ed.Name, name))
		return
	}

	res, err := h.flows.Save(c.Request.Context(), &ed, policy)
	if err != nil && !(res != nil && errors.Is(err, dto.ErrPartialSave)) {
		h.fail(c, err)
		return
	}
	sendSuccess(c, res)
}

func (h *handler) removeFlow(c *gin.Context) {
	if err := h.flows.Remove(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) renameFlow(c *gin.Context) {
	var req renameRequest
	if !bindJSON(c, &req) {
		return
	}
	name, err := h.flows.Rename(c.Request.Context(), c.Param("name"), req.NewName)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendSuccess(c, gin.H{"name": name})
}

func (h *handler) addNode(c *gin.Context) {
	var n flow.Node
	if !bindJSON(c, &n) {
		return
	}
	if err := h.flows.AddNode(c.Request.Context(), c.Param("name"), n); err != nil {
		h.fail(c, err)
		return
	}
	sendCreated(c, n)
}

func (h *handler) removeNode(c *gin.Context) {
	id := c.Param("id")
	if err := h.flows.RemoveNode(c.Request.Context(), c.Param("name"), id); err != nil {
		h.fail(c, err)
		return
	}
	h.registry.Forget(id)
	c.Status(http.StatusNoContent)
}

func (h *handler) addEdge(c *gin.Context) {
	var e flow.Edge
	if !bindJSON(c, &e) {
		return
	}
	if err := h.flows.AddEdge(c.Request.Context(), c.Param("name"), e); err != nil {
		h.fail(c, err)
		return
	}
	sendCreated(c, e)
}

func (h *handler) removeEdge(c *gin.Context) {
	if err := h.flows.RemoveEdge(c.Request.Context(), c.Param("name"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) getGlobalConfig(c *gin.Context) {
	bag, err := h.configs.GlobalConfig(c.Request.Context(), c.Param("agent"))
	if err != nil {
		h.fail(c, err)
		return
	}
	sendSuccess(c, bag)
}

func (h *handler) setGlobalConfig(c *gin.Context) {
	var bag coerce.Bag
	if !bindJSON(c, &bag) {
		return
	}
	if err := h.configs.SetGlobalConfig(c.Request.Context(), c.Param("agent"), bag); err != nil {
		h.fail(c, err)
		return
	}
	h.getGlobalConfig(c)
}

func (h *handler) getCoreSettings(c *gin.Context) {
	core, err := h.configs.CoreSettings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	sendSuccess(c, core)
}

func (h *handler) patchCoreSettings(c *gin.Context) {
	var patch any
	if !bindJSON(c, &patch) {
		return
	}
	core, err := h.configs.PatchCoreSettings(c.Request.Context(), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendSuccess(c, core)
}
