package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vovakirdan/chatgate/internal/core"
	"github.com/vovakirdan/chatgate/internal/engine"
	"github.com/vovakirdan/chatgate/internal/proto"
)

var _ engine.Backend = (*Client)(nil)

const (
	pathLogin         = "/login"
	pathLogout        = "/logout"
	pathLeave         = "/leaveRoom/"
	pathRooms         = "/api/rooms"
	pathRoom          = "/api/room/"
	pathUser          = "/api/user/"
	pathHeader        = "/json/getHeader"
	pathText          = "/json/getText"
	pathRoomUserTime  = "/json/getRoomUserTime"
	pathWhispersPage  = "/zpravy"
	pathWhispUsers    = "/json/getWhispUsers"
	pathWhispMessages = "/json/getWhisps"
)

func (c *Client) PingLoginPage(ctx context.Context) error {
	_, err := c.get(ctx, pathLogin)
	return err
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	page, err := c.post(ctx, pathLogin, url.Values{"email": {email}, "password": {password}})
	return string(page), err
}

func (c *Client) LoginAnonymously(ctx context.Context, nick string, gender core.Gender) (string, error) {
	page, err := c.post(ctx, pathLogin, url.Values{"user": {nick}, "sex": {string(gender)}})
	return string(page), err
}

func (c *Client) Logout(ctx context.Context) (string, error) {
	page, err := c.get(ctx, pathLogout)
	return string(page), err
}

func (c *Client) RoomList(ctx context.Context) ([]core.RoomSummary, error) {
	var resp proto.Response
	if err := c.getJSON(ctx, pathRooms, &resp); err != nil {
		return nil, err
	}
	out := make([]core.RoomSummary, 0, len(resp.Rooms))
	for _, r := range resp.Rooms {
		out = append(out, r.Summary())
	}
	return out, nil
}

// Join opens the room page, which is how the web client enters a room.
func (c *Client) Join(ctx context.Context, roomName string) error {
	_, err := c.get(ctx, "/"+url.PathEscape(roomName))
	return err
}

func (c *Client) Part(ctx context.Context, roomID int) (string, error) {
	page, err := c.get(ctx, pathLeave+strconv.Itoa(roomID))
	return string(page), err
}

func (c *Client) RoomUsers(ctx context.Context, roomID int) ([]*core.User, error) {
	var resp proto.Response
	if err := c.getJSON(ctx, fmt.Sprintf("%s%d/users", pathRoom, roomID), &resp); err != nil {
		return nil, err
	}
	return proto.Users(resp.Users), nil
}

func (c *Client) RoomAdmins(ctx context.Context, roomID int) ([]string, error) {
	var resp proto.Response
	if err := c.getJSON(ctx, fmt.Sprintf("%s%d/admins", pathRoom, roomID), &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Admins))
	for _, a := range resp.Admins {
		out = append(out, a.Nick)
	}
	return out, nil
}

func (c *Client) RoomInfo(ctx context.Context, roomID int) (core.RoomInfo, error) {
	var resp proto.Response
	if err := c.getJSON(ctx, pathRoom+strconv.Itoa(roomID), &resp); err != nil {
		return core.RoomInfo{}, err
	}
	if resp.Room == nil {
		return core.RoomInfo{OperatorID: core.NoOperator}, nil
	}
	return resp.Room.Core(), nil
}

func (c *Client) RoomText(ctx context.Context, roomID int, cursor string) (*core.RoomText, error) {
	form := roomForm(roomID)
	form.Set("chatIndex", chatIndex(cursor))

	var resp proto.Response
	if err := c.postJSON(ctx, pathText, form, &resp); err != nil {
		return nil, err
	}
	return resp.RoomText(), nil
}

func (c *Client) SendMessage(ctx context.Context, roomID int, cursor, text string, toUserID int) (*core.RoomText, error) {
	form := roomForm(roomID)
	form.Set("chatIndex", chatIndex(cursor))
	form.Set("text", text)
	form.Set("userIdTo", strconv.Itoa(toUserID))

	var resp proto.Response
	if err := c.postJSON(ctx, pathText, form, &resp); err != nil {
		return nil, err
	}
	return resp.RoomText(), nil
}

func (c *Client) PingHeader(ctx context.Context) error {
	_, err := c.post(ctx, pathHeader, nil)
	return err
}

func (c *Client) PingRoomUserTime(ctx context.Context, roomID int) error {
	_, err := c.post(ctx, pathRoomUserTime, roomForm(roomID))
	return err
}

// GetUserByID returns core.ErrUserNotFound when the service does not know id.
func (c *Client) GetUserByID(ctx context.Context, id int) (*core.User, error) {
	var resp proto.Response
	err := c.getJSON(ctx, pathUser+strconv.Itoa(id), &resp)
	if isNotFound(err) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if resp.User == nil || resp.Status == 404 {
		return nil, core.ErrUserNotFound
	}
	return resp.User.Core(), nil
}

func (c *Client) GetUserProfile(ctx context.Context, id int) (*core.Profile, error) {
	var resp proto.Response
	if err := c.getJSON(ctx, fmt.Sprintf("%s%d/profile", pathUser, id), &resp); err != nil {
		return nil, err
	}
	if resp.Profile == nil {
		return &core.Profile{}, nil
	}
	return resp.Profile.Core(), nil
}

func (c *Client) PendingMessageCount(ctx context.Context) (int, error) {
	var h proto.Header
	if err := c.postJSON(ctx, pathHeader, url.Values{}, &h); err != nil {
		return 0, err
	}
	return h.Data.MsgCount, nil
}

// StoredMessageSenders opens the messages page first; the service only lists
// senders for a session that has visited it.
func (c *Client) StoredMessageSenders(ctx context.Context) ([]*core.User, error) {
	if _, err := c.get(ctx, pathWhispersPage); err != nil {
		return nil, err
	}
	var resp proto.StoredUsers
	if err := c.postJSON(ctx, pathWhispUsers, url.Values{}, &resp); err != nil {
		return nil, err
	}
	return proto.Users(resp.Data), nil
}

func (c *Client) StoredMessages(ctx context.Context, userID int) ([]core.StoredMessage, error) {
	var resp proto.StoredMessages
	form := url.Values{"userId": {strconv.Itoa(userID)}}
	if err := c.postJSON(ctx, pathWhispMessages, form, &resp); err != nil {
		return nil, err
	}
	out := make([]core.StoredMessage, 0, len(resp.Data))
	for _, m := range resp.Data {
		out = append(out, m.Core(userID))
	}
	return out, nil
}
