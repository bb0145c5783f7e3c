package wsgateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ctp/consts"
	"ctp/internal/auth"
	"ctp/internal/message"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Conn is one authenticated WebSocket connection: a single cooperative
// reader processing inbound frames in order, and a buffered writer so a
// slow client never blocks a broadcast to other subscribers.
type Conn struct {
	gw        *Gateway
	Principal *auth.Principal
	ws        *websocket.Conn
	send      chan []byte
	base      context.Context

	mu            sync.Mutex
	subscriptions map[string]struct{}
}

func (c *Conn) ctx() context.Context { return c.base }

func (c *Conn) writeJSON(f frame, data any) {
	payload := map[string]any{"type": f.Type}
	if f.Channel != "" {
		payload["channel"] = f.Channel
	}
	if len(f.Channels) > 0 {
		payload["channels"] = f.Channels
	}
	for k, v := range toMap(data) {
		payload[k] = v
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- encoded:
	default:
		logrus.Warn("wsgateway: dropping message to a full send buffer")
	}
}

func toMap(data any) map[string]any {
	if data == nil {
		return nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(encoded, &m); err != nil {
		return nil
	}
	return m
}

// writePump drains c.send to the socket; it stops when readPump's cleanup
// closes c.send, or when a write to the closed socket fails.
func (c *Conn) writePump() {
	for payload := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump is the single cooperative frame loop: one outstanding read at a
// time, deadline refreshed on every frame and on system:ping.
func (c *Conn) readPump() {
	defer func() {
		c.gw.removeConnEverywhere(c)
		close(c.send)
		_ = c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(idleTimeout))

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(idleTimeout))

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		c.dispatch(f)
	}
}

func (c *Conn) dispatch(f frame) {
	switch f.Type {
	case "channel:subscribe":
		c.handleSubscribe(f.Channels)
	case "channel:unsubscribe":
		c.handleUnsubscribe(f.Channels)
	case "typing:start":
		c.handleTyping(f.Channel, true)
	case "typing:stop":
		c.handleTyping(f.Channel, false)
	case "read:mark":
		c.handleReadMark(f.Channel, f.MessageID)
	case "system:ping":
		c.writeJSON(frame{Type: "system:pong"}, map[string]any{"timestamp": time.Now().Unix()})
	}
}

func (c *Conn) isSubscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *Conn) handleSubscribe(channels []string) {
	var accepted []string
	for _, channel := range channels {
		scope, id, ok := channelScope(channel)
		if !ok {
			c.writeJSON(frame{Type: "channel:error", Channel: channel}, map[string]any{"reason": "INVALID_CHANNEL"})
			continue
		}

		allowed, err := c.authorizeChannel(scope, id)
		if err != nil || !allowed {
			c.writeJSON(frame{Type: "channel:error", Channel: channel}, map[string]any{"reason": "FORBIDDEN"})
			continue
		}

		c.mu.Lock()
		c.subscriptions[channel] = struct{}{}
		c.mu.Unlock()
		c.gw.subscribe(c, channel)
		accepted = append(accepted, channel)
	}
	if len(accepted) > 0 {
		c.writeJSON(frame{Type: "channel:subscribed", Channels: accepted}, nil)
	}
}

func (c *Conn) handleUnsubscribe(channels []string) {
	for _, channel := range channels {
		c.mu.Lock()
		delete(c.subscriptions, channel)
		c.mu.Unlock()
		c.gw.unsubscribe(c, channel)
	}
	c.writeJSON(frame{Type: "channel:unsubscribed", Channels: channels}, nil)
}

func (c *Conn) handleTyping(channel string, start bool) {
	if !c.isSubscribed(channel) {
		return
	}

	if start {
		_ = c.gw.Bus.SetTyping(c.base, channel, c.Principal.UserID)
	} else {
		_ = c.gw.Bus.ClearTyping(c.base, channel, c.Principal.UserID)
	}

	_ = c.gw.Bus.Publish(c.base, channel, "typing:update", map[string]any{
		"channel":   channel,
		"user_id":   c.Principal.UserID,
		"is_typing": start,
	})
}

func (c *Conn) handleReadMark(channel string, messageID int) {
	if !c.isSubscribed(channel) || messageID == 0 {
		return
	}

	if err := message.MarkRead(c.base, c.gw.DB, c.Principal.UserID, messageID); err != nil {
		return
	}

	scope, _, ok := channelScope(channel)
	if ok && scope == message.ScopeSubmissionGroup {
		_ = c.gw.Bus.Publish(c.base, channel, "read:update", map[string]any{
			"channel":    channel,
			"message_id": messageID,
			"user_id":    c.Principal.UserID,
		})
	}
}

// authorizeChannel applies the per-scope channel subscription rules.
func (c *Conn) authorizeChannel(scope message.Scope, id int) (bool, error) {
	p := c.Principal
	db := c.gw.DB.WithContext(c.base)

	switch scope {
	case message.ScopeUser:
		return id == p.UserID, nil

	case message.ScopeSubmissionGroup:
		var courseID int
		err := db.Table("submission_groups").
			Select("course_contents.course_id").
			Joins("JOIN course_contents ON course_contents.id = submission_groups.course_content_id").
			Where("submission_groups.id = ?", id).
			Scan(&courseID).Error
		if err != nil {
			return false, err
		}
		if role, ok := p.GetHighestCourseRole(courseID); ok && consts.CourseRoleLevel[role] >= consts.CourseRoleLevel[consts.CourseRoleTutor] {
			return true, nil
		}
		var count int64
		err = db.Table("submission_group_members").
			Joins("JOIN course_members ON course_members.id = submission_group_members.course_member_id").
			Where("submission_group_members.submission_group_id = ? AND course_members.user_id = ?", id, p.UserID).
			Count(&count).Error
		return count > 0, err

	case message.ScopeCourse, message.ScopeCourseContent, message.ScopeCourseGroup:
		courseID, err := resolveCourseID(db, scope, id)
		if err != nil {
			return false, err
		}
		role, ok := p.GetHighestCourseRole(courseID)
		return ok && consts.CourseRoleLevel[role] >= consts.CourseRoleLevel[consts.CourseRoleStudent], nil

	case message.ScopeOrganization, message.ScopeCourseFamily:
		courseIDs := make([]int, 0, len(p.CourseRoles))
		for cid := range p.CourseRoles {
			courseIDs = append(courseIDs, cid)
		}
		if len(courseIDs) == 0 {
			return false, nil
		}

		joinCol := "course_families.organization_id"
		if scope == message.ScopeCourseFamily {
			joinCol = "course_families.id"
		}
		var count int64
		err := db.Table("courses").
			Joins("JOIN course_families ON course_families.id = courses.course_family_id").
			Where("courses.id IN ? AND "+joinCol+" = ?", courseIDs, id).
			Count(&count).Error
		return count > 0, err

	default:
		return false, nil
	}
}

// resolveCourseID maps a course_content or course_group id back to its
// owning course id; ScopeCourse needs no lookup.
func resolveCourseID(db *gorm.DB, scope message.Scope, id int) (int, error) {
	if scope == message.ScopeCourse {
		return id, nil
	}

	table := "course_contents"
	if scope == message.ScopeCourseGroup {
		table = "course_groups"
	}

	var courseID int
	err := db.Table(table).Select("course_id").Where("id = ?", id).Scan(&courseID).Error
	return courseID, err
}
