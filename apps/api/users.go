package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/localmart/realtime/pkg/apperr"
	"github.com/localmart/realtime/pkg/model"
)

type loginRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
}

// login is the development stand-in for the external identity service: it
// issues a bearer token carrying user id and role, and registers the user
// in the searchable directory.
func (s *server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperr.E(apperr.InvalidArgument, "user_id is required"))
		return
	}
	// Conversation ids embed user ids with ":" delimiters, so an id
	// containing ":" would produce unparseable conversation ids.
	if !model.ValidUserID(req.UserID) {
		s.fail(c, apperr.E(apperr.InvalidArgument, "user id may only contain letters, digits, '.', '-' and '_'"))
		return
	}
	if req.UserName == "" {
		req.UserName = req.UserID
	}
	if req.Role == "" {
		req.Role = "user"
	}

	token, err := s.authn.GenerateToken(req.UserID, req.UserName, req.Role)
	if err != nil {
		s.fail(c, apperr.Wrap(apperr.Transient, err, "issue token"))
		return
	}

	err = s.session.Query(
		`INSERT INTO users (user_id, user_name, role) VALUES (?, ?, ?)`,
		req.UserID, req.UserName, req.Role).WithContext(c.Request.Context()).Exec()
	if err != nil {
		s.fail(c, apperr.Wrap(apperr.Transient, err, "register user"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type userSummary struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// searchUsers finds conversation partners by id or display-name substring.
// A full-scan filter is fine at directory scale; the real directory lives
// in the identity service.
func (s *server) searchUsers(c *gin.Context) {
	claims := currentUser(c)
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if q == "" {
		s.fail(c, apperr.E(apperr.InvalidArgument, "q is required"))
		return
	}

	iter := s.session.Query(`SELECT user_id, user_name FROM users`).
		WithContext(c.Request.Context()).Iter()

	var out []userSummary
	var u userSummary
	for iter.Scan(&u.UserID, &u.UserName) {
		if u.UserID == claims.UserID {
			continue
		}
		if strings.Contains(strings.ToLower(u.UserID), q) || strings.Contains(strings.ToLower(u.UserName), q) {
			out = append(out, u)
		}
	}
	if err := iter.Close(); err != nil {
		s.fail(c, apperr.Wrap(apperr.Transient, err, "search users"))
		return
	}
	c.JSON(http.StatusOK, out)
}
