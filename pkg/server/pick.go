package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chazu/facepick/pkg/pick"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// PickMessage is sent by the client over a pick session.
type PickMessage struct {
	Type    string        `json:"type"`
	Locator *pick.Locator `json:"locator,omitempty"`
}

// Pick message types.
const (
	PickMove  = "move"
	PickLeave = "leave"
	PickClick = "click"
)

// PickFrame is sent by the server: the state after every change, or an
// error for a message it could not apply.
type PickFrame struct {
	Session string      `json:"session"`
	ID      string      `json:"id"`
	State   *pick.State `json:"state,omitempty"`
	Error   string      `json:"error,omitempty"`
}

const pickReadLimit = 4096

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errNoLocator = errors.New("locator is required")

// pickSession runs one pointer session against the mesh for :id. The
// server sends the initial state, then one frame per state change; moves
// within the same face produce no frame.
func (s *Server) pickSession(c echo.Context) error {
	doc, err := s.lookup(c)
	if doc == nil {
		return err
	}
	buf, err := s.buffer(doc)
	if err != nil {
		return processingFailed(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		c.Logger().Warnf("pick: upgrade: %v", err)
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(pickReadLimit)

	session := uuid.NewString()
	c.Logger().Infof("pick: session %s opened for %s", session, doc.ID)
	defer c.Logger().Infof("pick: session %s closed", session)

	var writeErr error
	send := func(f PickFrame) {
		if writeErr != nil {
			return
		}
		f.Session = session
		f.ID = doc.ID
		writeErr = conn.WriteJSON(f)
	}

	p := pick.New(buf, s.cfg.Tints)
	p.OnChange = func(st pick.State) {
		send(PickFrame{State: &st})
	}

	initial := p.State()
	send(PickFrame{State: &initial})

	for writeErr == nil {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.Logger().Debugf("pick: session %s: %v", session, err)
			}
			return nil
		}
		if err := apply(p, data); err != nil {
			send(PickFrame{Error: err.Error()})
		}
	}
	c.Logger().Debugf("pick: session %s: write: %v", session, writeErr)
	return nil
}

// apply decodes one client message and feeds it to p.
func apply(p *pick.Picker, data []byte) error {
	var msg PickMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	switch msg.Type {
	case PickMove:
		if msg.Locator == nil {
			return errNoLocator
		}
		p.Move(*msg.Locator)
	case PickLeave:
		p.Leave()
	case PickClick:
		if msg.Locator == nil {
			return errNoLocator
		}
		p.Click(*msg.Locator)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}
