package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qrchat/internal/config"
	"github.com/zulandar/qrchat/internal/models"
	"github.com/zulandar/qrchat/internal/store"
)

// sessionCard is the public view of a session shown on the visitor page.
type sessionCard struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PosterURL string `json:"posterUrl"`
	IsActive  bool   `json:"isActive"`
	ShareURL  string `json:"shareUrl"`
}

// adminSession is a session as the organizer dashboard sees it.
type adminSession struct {
	models.Session
	ShareURL string `json:"shareUrl"`
}

func handleSessionCard(st *store.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := st.GetSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		respond(c, http.StatusOK, sessionCard{
			ID:        sess.ID,
			Name:      sess.Name,
			PosterURL: sess.PosterURL,
			IsActive:  sess.IsActive,
			ShareURL:  cfg.ShareURL(sess.ID),
		})
	}
}

// memberBody mirrors the companion block of a registration submission.
type memberBody struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// registerBody is a registration submission.
type registerBody struct {
	Name      string      `json:"name"`
	Phone     string      `json:"phone"`
	Email     string      `json:"email"`
	VisitType string      `json:"visitType"`
	Companion *memberBody `json:"companion"`
}

func handleRegisterVisitor(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body registerBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
		params := store.RegisterVisitorParams{
			Name:      body.Name,
			Phone:     body.Phone,
			Email:     body.Email,
			VisitType: models.VisitType(body.VisitType),
		}
		if body.Companion != nil {
			params.Companion = &store.MemberParams{
				Name:  body.Companion.Name,
				Phone: body.Companion.Phone,
			}
		}
		v, err := st.RegisterVisitor(c.Request.Context(), c.Param("id"), params)
		if err != nil {
			respondErr(c, err)
			return
		}
		respond(c, http.StatusCreated, v)
	}
}

// postMessageBody is a message submission. VisitorID is the identity the
// visitor's device kept from registration.
type postMessageBody struct {
	VisitorID string `json:"visitorId"`
	Body      string `json:"body"`
}

func handlePostMessage(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body postMessageBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
		msg, err := st.PostMessage(c.Request.Context(), c.Param("id"), body.VisitorID, body.Body)
		if err != nil {
			respondErr(c, err)
			return
		}
		respond(c, http.StatusCreated, msg)
	}
}

// createSessionBody is an organizer's session creation request.
type createSessionBody struct {
	Name      string `json:"name"`
	PosterURL string `json:"posterUrl"`
}

func handleCreateSession(st *store.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body createSessionBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
		sess, err := st.CreateSession(c.Request.Context(), store.CreateSessionParams{
			Name:      body.Name,
			PosterURL: body.PosterURL,
			CreatedBy: "admin",
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		respond(c, http.StatusCreated, adminSession{Session: *sess, ShareURL: cfg.ShareURL(sess.ID)})
	}
}

func handleListSessions(st *store.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := st.ListSessions(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]adminSession, len(sessions))
		for i, sess := range sessions {
			out[i] = adminSession{Session: sess, ShareURL: cfg.ShareURL(sess.ID)}
		}
		respond(c, http.StatusOK, out)
	}
}

func handleUpdateSession(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Decode into raw fields so an absent key (leave unchanged) is
		// distinguishable from an explicit null (clear).
		var raw map[string]json.RawMessage
		if err := c.ShouldBindJSON(&raw); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
		var params store.UpdateSessionParams
		var ok bool
		if params.Name, ok = optionalStringField(raw, "name"); !ok {
			respondBadRequest(c, "name must be a string or null")
			return
		}
		if params.PosterURL, ok = optionalStringField(raw, "posterUrl"); !ok {
			respondBadRequest(c, "posterUrl must be a string or null")
			return
		}
		sess, err := st.UpdateSession(c.Request.Context(), c.Param("id"), params)
		if err != nil {
			respondErr(c, err)
			return
		}
		respond(c, http.StatusOK, sess)
	}
}

// optionalStringField reads a string-or-null field from a decoded JSON
// object. Absent keys come back unset; null comes back set-and-empty.
func optionalStringField(raw map[string]json.RawMessage, key string) (store.OptionalString, bool) {
	val, present := raw[key]
	if !present {
		return store.OptionalString{}, true
	}
	if string(val) == "null" {
		return store.OptionalString{Set: true}, true
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return store.OptionalString{}, false
	}
	return store.OptionalString{Set: true, Value: s}, true
}

// setActiveBody toggles the session write gate.
type setActiveBody struct {
	Active *bool `json:"active"`
}

func handleSetActive(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body setActiveBody
		if err := c.ShouldBindJSON(&body); err != nil || body.Active == nil {
			respondBadRequest(c, "active is required")
			return
		}
		sess, err := st.SetActive(c.Request.Context(), c.Param("id"), *body.Active)
		if err != nil {
			respondErr(c, err)
			return
		}
		respond(c, http.StatusOK, sess)
	}
}

func handleDeleteSession(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		respond(c, http.StatusOK, nil)
	}
}

func handleListVisitors(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitors, err := st.ListVisitors(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		respond(c, http.StatusOK, visitors)
	}
}

func handleListMessages(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := st.ListMessages(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		respond(c, http.StatusOK, msgs)
	}
}
