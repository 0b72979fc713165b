package server

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/agentflow"
	"github.com/meikuraledutech/agentflow/session"
)

type sessionView struct {
	ID      string            `json:"id"`
	GraphID string            `json:"graphId,omitempty"`
	Name    string            `json:"name"`
	State   session.State     `json:"state"`
	History []session.Message `json:"history"`
}

func viewOf(s *session.Session) sessionView {
	t := s.Target()
	return sessionView{
		ID:      s.ID(),
		GraphID: t.GraphID,
		Name:    t.Resolve().Name,
		State:   s.State(),
		History: s.History(),
	}
}

// startGraphSession compiles a stored graph and opens a session on it.
func (h *handlers) startGraphSession(c fiber.Ctx) error {
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

	s := h.deps.Sessions.Create(session.Target{GraphID: rec.ID, Config: cfg})
	return c.Status(fiber.StatusCreated).JSON(viewOf(s))
}

// startSession opens a session on an unsaved graph, or on the default
// configuration when no graph is given. The graph is not validated.
func (h *handlers) startSession(c fiber.Ctx) error {
	target := session.Target{Config: agentflow.DefaultConfig()}
	if body := c.Body(); len(body) > 0 {
		var req struct {
			Graph json.RawMessage `json:"graph"`
		}
		if err := decodeJSON(body, &req); err != nil {
			return err
		}
		if len(req.Graph) > 0 && string(req.Graph) != "null" {
			g, err := agentflow.ParseGraph(req.Graph)
			if err != nil {
				return err
			}
			target = session.Target{Graph: g}
		}
	}

	s := h.deps.Sessions.Create(target)
	return c.Status(fiber.StatusCreated).JSON(viewOf(s))
}

func (h *handlers) getSession(c fiber.Ctx) error {
	s, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(viewOf(s))
}

func (h *handlers) closeSession(c fiber.Ctx) error {
	if err := h.deps.Sessions.Close(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) sendMessage(c fiber.Ctx) error {
	s, err := h.deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(c.Body(), &req); err != nil {
		return err
	}

	msg, err := s.Submit(c.Context(), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": msg, "state": s.State()})
}

type chatRequest struct {
	WorkflowID string `json:"workflowId"`
	StackID    string `json:"stackId"`
	SessionID  string `json:"sessionId"`
	Message    string `json:"message"`
	History    []struct {
		Role    session.Role `json:"role"`
		Content string       `json:"content"`
	} `json:"history"`
}

// chat answers one message. With a sessionId the live session is used;
// otherwise the turn runs on a throwaway session seeded with the client's
// history, against a stored graph or the default configuration.
func (h *handlers) chat(c fiber.Ctx) error {
	body := c.Body()
	if err := agentflow.CheckChatRequest(body); err != nil {
		return err
	}
	var req chatRequest
	if err := decodeJSON(body, &req); err != nil {
		return err
	}

	if req.SessionID != "" {
		s, err := h.deps.Sessions.Get(req.SessionID)
		if err != nil {
			return err
		}
		msg, err := s.Submit(c.Context(), req.Message)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"response": msg.Content, "sessionId": s.ID()})
	}

	workflowID := req.WorkflowID
	if workflowID == "" {
		workflowID = req.StackID
	}
	target := session.Target{Config: agentflow.DefaultConfig()}
	if workflowID != "" && workflowID != TempWorkflowID {
		ownerID, err := owner(c)
		if err != nil {
			return err
		}
		rec, err := h.deps.Store.GetGraph(c.Context(), ownerID, workflowID)
		if err != nil {
			return err
		}
		target = session.Target{GraphID: rec.ID, Graph: rec.Graph}
	} else {
		workflowID = TempWorkflowID
	}

	history := make([]session.Message, 0, len(req.History))
	now := time.Now()
	for _, m := range req.History {
		if m.Role == session.RoleSystem {
			continue
		}
		history = append(history, session.Message{Role: m.Role, Content: m.Content, Timestamp: now})
	}

	msg, err := h.deps.Sessions.Once(c.Context(), target, history, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"response": msg.Content, "workflowId": workflowID})
}
