// Terminal client for the realtime engine. One process is one device: it
// authenticates, opens a websocket, joins its rooms, and runs a reconciler
// that merges REST snapshots with pushed events. On connection loss it
// reconnects with exponential backoff, re-joins its rooms, and refetches
// counters to correct any drift accumulated while offline.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/localmart/realtime/pkg/model"
	"github.com/localmart/realtime/pkg/reconciler"
	"github.com/localmart/realtime/pkg/unread"
)

type apiClient struct {
	base  string
	token string
}

func (a *apiClient) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.base+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s", method, path, string(raw))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (a *apiClient) login(userID, userName string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := a.do("POST", "/login", map[string]string{"user_id": userID, "user_name": userName}, &resp)
	if err != nil {
		return err
	}
	a.token = resp.Token
	return nil
}

type session struct {
	api   *apiClient
	state *reconciler.State

	userID         string
	conversationID string
}

// refresh pulls the authoritative snapshots back into the reconciler.
// This, not event replay, is the recovery strategy after a reconnect.
func (s *session) refresh() {
	var convs []model.Conversation
	if err := s.api.do("GET", "/conversations", nil, &convs); err == nil {
		s.state.ApplyConversations(convs)
	}

	var counts unread.Counts
	if err := s.api.do("GET", "/unread", nil, &counts); err == nil {
		s.state.ApplyCounts(counts)
	}

	var msgs []model.Message
	if err := s.api.do("GET", "/conversations/"+s.conversationID+"/messages", nil, &msgs); err == nil {
		s.state.ApplyMessages(s.conversationID, msgs)
	}

	var notifs []model.Notification
	var unreadResp struct {
		Unread int64 `json:"unread"`
	}
	if err := s.api.do("GET", "/notifications", nil, &notifs); err == nil {
		if err := s.api.do("GET", "/notifications/unread-count", nil, &unreadResp); err == nil {
			s.state.ApplyNotifications(notifs, unreadResp.Unread)
		}
	}
}

func (s *session) connect(gatewayAddr string) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: gatewayAddr, Path: "/ws"}
	header := http.Header{}
	header.Add("Authorization", "Bearer "+s.api.token)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return nil, err
	}

	// Re-issue joins; the server makes these idempotent.
	conn.WriteJSON(model.NewEvent(model.EventJoinUser, model.JoinUserPayload{UserID: s.userID}))
	conn.WriteJSON(model.Event{Type: model.EventJoinConversations})
	for _, room := range s.state.JoinedRooms() {
		conn.WriteJSON(model.NewEvent(model.EventJoinConversation, model.JoinConversationPayload{ConversationID: room}))
	}
	return conn, nil
}

func (s *session) printEvent(ev model.Event) {
	switch ev.Type {
	case model.EventNewMessage:
		var msg model.Message
		if ev.DecodePayload(&msg) == nil && msg.SenderID != s.userID {
			fmt.Printf("\r%s: %s\n> ", msg.SenderID, msg.Body)
		}
	case model.EventUserTyping:
		var p model.UserTypingPayload
		if ev.DecodePayload(&p) == nil && p.IsTyping {
			fmt.Printf("\r%s is typing...\n> ", p.UserName)
		}
	case model.EventMessageRead:
		var p model.MessageReadPayload
		if ev.DecodePayload(&p) == nil {
			fmt.Printf("\rmessage %d read\n> ", p.MessageID)
		}
	case model.EventNewNotification:
		var n model.Notification
		if ev.DecodePayload(&n) == nil {
			fmt.Printf("\r[%s] %s (unread notifications: %d)\n> ", n.Type, n.Title, s.state.NotificationUnread())
		}
	case model.EventError:
		if msg := s.state.LastError(); msg != "" {
			fmt.Printf("\r!! %s\n> ", msg)
		}
	}
}

func main() {
	gatewayAddr := flag.String("gateway", "localhost:8080", "gateway address")
	apiAddr := flag.String("api", "http://localhost:8081", "api address")
	userID := flag.String("user", "", "user id")
	userName := flag.String("name", "", "display name")
	dmUser := flag.String("dm", "", "user id to chat with")
	flag.Parse()

	if *userID == "" || *dmUser == "" {
		log.Fatal("-user and -dm are required")
	}
	if *userName == "" {
		*userName = *userID
	}

	api := &apiClient{base: *apiAddr}
	if err := api.login(*userID, *userName); err != nil {
		log.Fatal("login failed: ", err)
	}

	s := &session{
		api:            api,
		state:          reconciler.New(*userID),
		userID:         *userID,
		conversationID: model.ConversationID(*userID, *dmUser),
	}
	s.state.OpenConversation(s.conversationID)
	s.state.MarkJoined(s.conversationID)

	outbound := make(chan model.Event, 16)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			switch {
			case text == "":
			case text == "/quit":
				os.Exit(0)
			case text == "/typing":
				outbound <- model.NewEvent(model.EventTyping, model.TypingPayload{
					ConversationID: s.conversationID, IsTyping: true,
				})
			case text == "/read":
				outbound <- model.NewEvent(model.EventMarkMessageRead, model.MarkMessageReadPayload{
					ConversationID: s.conversationID,
				})
				api.do("POST", "/conversations/"+s.conversationID+"/read", nil, nil)
			case text == "/unread":
				fmt.Printf("unread total: %d, notifications: %d\n", s.state.UnreadTotal(), s.state.NotificationUnread())
			default:
				outbound <- model.NewEvent(model.EventSendMessage, model.SendMessagePayload{
					ConversationID: s.conversationID, Body: text,
				})
			}
			fmt.Print("> ")
		}
	}()

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0 // keep reconnecting
	policy.MaxInterval = 30 * time.Second

	for {
		conn, err := s.connect(*gatewayAddr)
		if err != nil {
			wait := policy.NextBackOff()
			log.Printf("connect failed: %v (retrying in %s)", err, wait)
			time.Sleep(wait)
			continue
		}
		policy.Reset()
		s.refresh()
		log.Printf("connected (%d messages, unread total %d)", len(s.state.Messages(s.conversationID)), s.state.UnreadTotal())

		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				var ev model.Event
				if err := conn.ReadJSON(&ev); err != nil {
					return
				}
				if err := s.state.ApplyEvent(ev); err != nil {
					continue
				}
				s.printEvent(ev)
			}
		}()

	writeLoop:
		for {
			select {
			case <-readDone:
				break writeLoop
			case ev := <-outbound:
				if err := conn.WriteJSON(ev); err != nil {
					break writeLoop
				}
			}
		}
		conn.Close()
		log.Println("disconnected, reconnecting...")
	}
}
