package server

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/agentflow"
)

// graphRequest is the body of compile, create and update calls.
type graphRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Graph       json.RawMessage `json:"graph"`
}

func decodeJSON(body []byte, v any) error {
	if len(body) == 0 {
		return &agentflow.InputError{Msg: "request body is empty"}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &agentflow.InputError{Msg: "invalid JSON body: " + err.Error()}
	}
	return nil
}

func (r graphRequest) graph() (*agentflow.Graph, error) {
	if len(r.Graph) == 0 || string(r.Graph) == "null" {
		return agentflow.NewGraph(nil, nil)
	}
	return agentflow.ParseGraph(r.Graph)
}

func owner(c fiber.Ctx) (string, error) {
	id := c.Get(HeaderOwnerID)
	if id == "" {
		return "", &agentflow.InputError{Msg: "missing " + HeaderOwnerID + " header"}
	}
	return id, nil
}

// ── Stateless ────────────────────────────────────────────────────────

// validateGraph always answers 200 with the validation result; only
// malformed documents are rejected.
func (h *handlers) validateGraph(c fiber.Ctx) error {
	g, err := agentflow.ParseGraph(c.Body())
	if err != nil {
		return err
	}
	return c.JSON(agentflow.Validate(g, h.validateOptions()...))
}

func (h *handlers) compileGraph(c fiber.Ctx) error {
	var req graphRequest
	if err := decodeJSON(c.Body(), &req); err != nil {
		return err
	}
	g, err := req.graph()
	if err != nil {
		return err
	}
	cfg, err := h.compile(g, agentflow.Metadata{Name: req.Name, Description: req.Description})
	if err != nil {
		return err
	}
	return sendConfig(c, cfg)
}

func (h *handlers) compile(g *agentflow.Graph, meta agentflow.Metadata) (*agentflow.Config, error) {
	if res := agentflow.Validate(g, h.validateOptions()...); !res.Valid {
		return nil, res.Err()
	}
	return agentflow.Compile(g, meta)
}

// sendConfig writes the export artifact. With ?download=true it is served as
// an attachment named after the workflow.
func sendConfig(c fiber.Ctx, cfg *agentflow.Config) error {
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	digest, err := cfg.Digest()
	if err != nil {
		return err
	}
	c.Set("X-Config-Digest", digest)
	if download, _ := strconv.ParseBool(c.Query("download")); download {
		c.Attachment(cfg.FileName())
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(data)
}

// ── Stored graphs ────────────────────────────────────────────────────

func (h *handlers) createGraph(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	var req graphRequest
	if err := decodeJSON(c.Body(), &req); err != nil {
		return err
	}
	g, err := req.graph()
	if err != nil {
		return err
	}

	rec, err := h.deps.Store.CreateGraph(c.Context(), &agentflow.GraphRecord{
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Graph:       g,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *handlers) listGraphs(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	recs, err := h.deps.Store.ListGraphs(c.Context(), ownerID)
	if err != nil {
		return err
	}
	return c.JSON(recs)
}

func (h *handlers) getGraph(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	rec, err := h.deps.Store.GetGraph(c.Context(), ownerID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *handlers) updateGraph(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	var req graphRequest
	if err := decodeJSON(c.Body(), &req); err != nil {
		return err
	}
	g, err := req.graph()
	if err != nil {
		return err
	}

	rec, err := h.deps.Store.UpdateGraph(c.Context(), &agentflow.GraphRecord{
		ID:          c.Params("id"),
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Graph:       g,
	})
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// deleteGraph also ends every session started from the graph.
func (h *handlers) deleteGraph(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	if err := h.deps.Store.DeleteGraph(c.Context(), ownerID, id); err != nil {
		return err
	}
	h.deps.Sessions.CloseGraph(id)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) graphConfig(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	rec, err := h.deps.Store.GetGraph(c.Context(), ownerID, c.Params("id"))
	if err != nil {
		return err
	}
	cfg, err := h.compile(rec.Graph, rec.Metadata())
	if err != nil {
		return err
	}
	return sendConfig(c, cfg)
}

// ── Nodes ────────────────────────────────────────────────────────────

func (h *handlers) addNode(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	var node agentflow.WireNode
	if err := decodeJSON(c.Body(), &node); err != nil {
		return err
	}
	id, err := h.deps.Store.AddNode(c.Context(), ownerID, c.Params("id"), node)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *handlers) updateNode(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	var node agentflow.WireNode
	if err := decodeJSON(c.Body(), &node); err != nil {
		return err
	}
	node.ID = c.Params("nodeId")
	if err := h.deps.Store.UpdateNode(c.Context(), ownerID, c.Params("id"), node); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) deleteNode(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	if err := h.deps.Store.DeleteNode(c.Context(), ownerID, c.Params("id"), c.Params("nodeId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ── Edges ────────────────────────────────────────────────────────────

func (h *handlers) addEdge(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	var edge agentflow.WireEdge
	if err := decodeJSON(c.Body(), &edge); err != nil {
		return err
	}
	if edge.Source == "" || edge.Target == "" {
		return &agentflow.InputError{Msg: "edge source and target are required"}
	}
	id, err := h.deps.Store.AddEdge(c.Context(), ownerID, c.Params("id"), edge)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *handlers) deleteEdge(c fiber.Ctx) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	if err := h.deps.Store.DeleteEdge(c.Context(), ownerID, c.Params("id"), c.Params("edgeId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
