// Smoke-tests the REST surface end to end against a running stack:
// logs two users in, resolves their conversation, exercises unread and
// notification endpoints. Exits non-zero on the first failure.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
)

var apiAddr = flag.String("api", "http://localhost:8081", "api address")

func call(method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, *apiAddr+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s -> %d: %s", method, path, resp.StatusCode, raw)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func login(userID, role string) string {
	var resp struct {
		Token string `json:"token"`
	}
	err := call("POST", "/login", "", map[string]string{"user_id": userID, "role": role}, &resp)
	if err != nil {
		log.Fatalf("login %s: %v", userID, err)
	}
	return resp.Token
}

func main() {
	flag.Parse()

	alice := login("alice", "user")
	login("bob", "user")
	svc := login("orders-service", "service")

	var conv struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := call("POST", "/conversations", alice, map[string]string{"other_user_id": "bob"}, &conv); err != nil {
		log.Fatal("start conversation: ", err)
	}
	log.Println("conversation:", conv.ConversationID)

	var counts struct {
		Total int64 `json:"total"`
	}
	if err := call("GET", "/unread", alice, nil, &counts); err != nil {
		log.Fatal("unread: ", err)
	}
	log.Println("unread total:", counts.Total)

	if err := call("POST", "/conversations/"+conv.ConversationID+"/read", alice, nil, nil); err != nil {
		log.Fatal("mark read: ", err)
	}
	// Idempotent: a second reset must also succeed.
	if err := call("POST", "/conversations/"+conv.ConversationID+"/read", alice, nil, nil); err != nil {
		log.Fatal("mark read again: ", err)
	}

	notification := map[string]string{
		"target_user_id": "alice",
		"type":           "order-placed",
		"title":          "New order",
		"body":           "bob placed an order",
	}
	if err := call("POST", "/internal/notifications", svc, notification, nil); err != nil {
		log.Fatal("create notification: ", err)
	}

	var unreadResp struct {
		Unread int64 `json:"unread"`
	}
	if err := call("GET", "/notifications/unread-count", alice, nil, &unreadResp); err != nil {
		log.Fatal("notification count: ", err)
	}
	if unreadResp.Unread < 1 {
		log.Fatal("expected at least one unread notification")
	}

	if err := call("POST", "/notifications/read-all", alice, nil, nil); err != nil {
		log.Fatal("read all: ", err)
	}
	if err := call("GET", "/notifications/unread-count", alice, nil, &unreadResp); err != nil {
		log.Fatal("notification count: ", err)
	}
	if unreadResp.Unread != 0 {
		log.Fatalf("expected zero unread after read-all, got %d", unreadResp.Unread)
	}

	var users []struct {
		UserID string `json:"user_id"`
	}
	if err := call("GET", "/users/search?q=bob", alice, nil, &users); err != nil {
		log.Fatal("search: ", err)
	}
	if len(users) == 0 {
		log.Fatal("expected to find bob")
	}

	log.Println("all checks passed")
}
