package chatclient

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chatgogo/minichat/internal/metrics"
	"chatgogo/minichat/internal/models"
	"chatgogo/minichat/internal/transport"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func byID(rows []models.Message, id int64) []models.Message {
	var out []models.Message
	for _, r := range rows {
		if r.ID == id {
			out = append(out, r)
		}
	}
	return out
}

func waitFrame(t *testing.T, conn *fakeConn, typ models.MessageType) models.Message {
	t.Helper()
	var frame models.Message
	require.Eventually(t, func() bool {
		var ok bool
		frame, ok = conn.lastFrame(typ)
		return ok
	}, 2*time.Second, 5*time.Millisecond, "no %s frame sent", typ)
	return frame
}

func TestConnect_OpensAndAnnounces(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	assert.Equal(t, "ws://chat.test:8080/chat?username=alice", h.dialer.target(0))

	joined := waitFrame(t, conn, models.TypeText)
	assert.Equal(t, "joined", joined.Content)
	assert.Equal(t, "alice", joined.SenderID)
	assert.Equal(t, models.PublicRoomID, joined.RoomID)

	rows := h.rows(t, models.PublicRoomID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.SystemSender, rows[0].SenderID)
	assert.Equal(t, models.TypeSystemNotification, rows[0].Type)
	assert.Equal(t, 1, h.svc.rooms.Pending(models.PublicRoomID))

	room, ok := h.svc.CurrentRoom()
	require.True(t, ok)
	assert.Equal(t, models.PublicRoomID, room.ID)
}

func TestStates_StartsDisconnected(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := h.svc.States(ctx)
	assert.Equal(t, StateDisconnected, (<-states).Kind)

	require.NoError(t, h.svc.Connect(context.Background(), "alice"))
	assert.Eventually(t, func() bool {
		select {
		case s := <-states:
			return s.Kind == StateConnecting
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestSend_EchoMarksSentWithoutRequeue(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	ctx := context.Background()

	sent, err := h.svc.Send(ctx, models.NewMessage(models.PublicRoomID, "alice", "hi", models.TypeText))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, sent.Status)

	wire, ok := conn.lastFrame(models.TypeText)
	require.True(t, ok)
	assert.Equal(t, sent.ID, wire.ID)
	assert.Equal(t, models.StatusSending, wire.Status)

	queued := h.svc.rooms.Pending(models.PublicRoomID)
	conn.deliver(wire)
	conn.deliver(wire)
	h.sync(t)

	assert.Equal(t, queued, h.svc.rooms.Pending(models.PublicRoomID))
	rows := byID(h.rows(t, models.PublicRoomID), sent.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusSent, rows[0].Status)
}

func TestDispatch_SelfEchoAcknowledgesPendingMessage(t *testing.T) {
	h := newHarness(t, time.Hour)
	pending := models.NewMessage(models.PublicRoomID, "alice", "hi", models.TypeText)
	require.NoError(t, h.svc.messages.Save(pending))

	require.NoError(t, h.svc.dispatcher.Dispatch("alice", pending))

	rows := byID(h.rows(t, models.PublicRoomID), pending.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusSent, rows[0].Status)
}

func TestDispatch_RedeliveryPersistsOnce(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	m := text(models.NextID(), models.PublicRoomID, "hello alice")

	conn.deliver(m)
	conn.deliver(m)
	conn.deliver(m)
	h.sync(t)

	assert.Len(t, byID(h.rows(t, models.PublicRoomID), m.ID), 1)
}

func TestSend_NotConnected(t *testing.T) {
	h := newHarness(t, time.Hour)
	msg := models.NewMessage(models.PublicRoomID, "alice", "hi", models.TypeText)

	failed, err := h.svc.Send(context.Background(), msg)

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, models.StatusFailed, failed.Status)
	rows := byID(h.rows(t, models.PublicRoomID), msg.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusFailed, rows[0].Status)
}

func TestSend_NotConnectedSchedulesReconnect(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	conn.closedWith(transport.CloseNormal)
	h.waitState(t, StateDisconnected)

	n, err := h.svc.PendingReconnects(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = h.svc.SendText(context.Background(), models.PublicRoomID, "anyone?")
	assert.ErrorIs(t, err, ErrNotConnected)

	n, err = h.svc.PendingReconnects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSend_TransportRejects(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	conn.setReject(true)

	failed, err := h.svc.SendText(context.Background(), models.PublicRoomID, "hi")

	assert.ErrorIs(t, err, ErrSendFailed)
	rows := byID(h.rows(t, models.PublicRoomID), failed.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusFailed, rows[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.svc.sender.metrics.MessagesSent.WithLabelValues("FAILED")))
}

func TestSend_PersistFailureStopsTransmit(t *testing.T) {
	gw := new(MockStorage)
	boom := errors.New("disk full")
	gw.On("GetMessageByID", mock.Anything).Return(nil, nil)
	gw.On("InsertOrUpdateMessage", mock.Anything).Return(boom)

	dialer := &fakeDialer{}
	svc, err := NewService(Options{
		Dialer:   dialer,
		Store:    gw,
		Settings: staticSettings{host: "chat.test", port: 8080, interval: time.Hour},
	})
	require.NoError(t, err)
	svc.Start(context.Background())
	defer svc.Close()

	require.NoError(t, svc.Connect(context.Background(), "alice"))
	conn := dialer.last()
	conn.open()
	require.Eventually(t, func() bool { return svc.State().Kind == StateConnected }, time.Second, 5*time.Millisecond)
	framesBefore := len(conn.frames())

	_, err = svc.SendText(context.Background(), models.PublicRoomID, "hi")

	assert.ErrorIs(t, err, boom)
	assert.Len(t, conn.frames(), framesBefore)
}

func TestLogin_Responses(t *testing.T) {
	cases := []struct {
		name     string
		register bool
		response string
		want     error
	}{
		{"login ok", false, LoginSuccess, nil},
		{"login rejected", false, LoginFailed, ErrInvalidCredentials},
		{"register ok", true, RegistrationSuccess, nil},
		{"register taken", true, UsernameExists, ErrUsernameExists},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, time.Hour)
			conn := h.connect(t, "alice")

			result := make(chan error, 1)
			go func() {
				if tc.register {
					result <- h.svc.Register(context.Background(), "alice", "secret")
				} else {
					result <- h.svc.Login(context.Background(), "alice", "secret")
				}
			}()

			typ := models.TypeLogin
			if tc.register {
				typ = models.TypeRegister
			}
			frame := waitFrame(t, conn, typ)
			assert.Equal(t, models.AuthRoomID, frame.RoomID)
			assert.Equal(t, "alice:secret", frame.Content)

			conn.deliver(models.NewMessage(models.AuthRoomID, models.SystemSender, tc.response, models.TypeAuthResponse))

			err := <-result
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
			assert.Empty(t, h.rows(t, models.AuthRoomID))
		})
	}
}

func TestLogin_UnknownResponse(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	result := make(chan error, 1)
	go func() { result <- h.svc.Login(context.Background(), "alice", "secret") }()
	waitFrame(t, conn, models.TypeLogin)
	conn.deliver(models.NewMessage(models.AuthRoomID, models.SystemSender, "AUTH_ERROR", models.TypeAuthResponse))

	var authErr *AuthError
	require.ErrorAs(t, <-result, &authErr)
	assert.Equal(t, "AUTH_ERROR", authErr.Response)
}

func TestLogin_TimesOut(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.connect(t, "alice")

	start := time.Now()
	err := h.svc.Login(context.Background(), "alice", "secret")

	assert.ErrorIs(t, err, ErrAuthTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLogin_SingleOutstandingWait(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	result := make(chan error, 1)
	go func() { result <- h.svc.Login(context.Background(), "alice", "secret") }()
	waitFrame(t, conn, models.TypeLogin)

	assert.ErrorIs(t, h.svc.Register(context.Background(), "bob", "pw"), ErrAuthInFlight)

	conn.deliver(models.NewMessage(models.AuthRoomID, models.SystemSender, LoginSuccess, models.TypeAuthResponse))
	assert.NoError(t, <-result)
}

func TestLogin_NotConnected(t *testing.T) {
	h := newHarness(t, time.Hour)
	assert.ErrorIs(t, h.svc.Login(context.Background(), "alice", "secret"), ErrNotConnected)
}

func TestCheckUserExists(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	result := make(chan bool, 1)
	go func() {
		exists, err := h.svc.CheckUserExists(context.Background(), "bob")
		assert.NoError(t, err)
		result <- exists
	}()

	frame := waitFrame(t, conn, models.TypeCheckUser)
	assert.Equal(t, "bob", frame.Content)
	assert.Equal(t, models.SystemRoomID, frame.RoomID)
	conn.deliver(models.NewMessage(models.SystemRoomID, models.SystemSender, "TRUE", models.TypeUserResponse))

	assert.True(t, <-result)
	assert.Empty(t, h.rows(t, models.SystemRoomID))
}

func TestCheckUserExists_TimesOut(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.connect(t, "alice")

	_, err := h.svc.CheckUserExists(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrUserCheckTimeout)
}

func TestReconnect_SingleTimerAcrossFailures(t *testing.T) {
	h := newHarness(t, 150*time.Millisecond)
	require.NoError(t, h.svc.Connect(context.Background(), "alice"))

	for i := 1; i <= 3; i++ {
		require.Eventually(t, func() bool { return h.dialer.dials() == i }, 2*time.Second, 5*time.Millisecond)
		h.dialer.last().fail(errNetwork)
		h.waitState(t, StateFailed)

		n, err := h.svc.PendingReconnects(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n, "after failure %d", i)
	}

	assert.Equal(t, errNetwork.Error(), h.svc.State().Reason)
	assert.Equal(t, 3.0, testutil.ToFloat64(h.svc.conn.metrics.Reconnects))
}

func TestReconnect_FailureNoticeGoesToCurrentRoom(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	private := models.NewPrivateRoom("alice", "bob")
	require.NoError(t, h.svc.JoinRoom(private))

	conn.fail(errNetwork)
	h.waitState(t, StateFailed)

	rows := h.rows(t, private.ID)
	require.Len(t, rows, 1)
	assert.True(t, strings.Contains(rows[0].Content, errNetwork.Error()))
	_, _, cancelled := conn.closeState()
	assert.True(t, cancelled)
}

func TestReconnect_GoingAwayReconnects(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	conn := h.connect(t, "alice")

	conn.closing(transport.CloseGoingAway)
	h.waitState(t, StateDisconnected)
	_, code, _ := conn.closeState()
	assert.Equal(t, transport.CloseNormal, code)

	require.Eventually(t, func() bool { return h.dialer.dials() == 2 }, 2*time.Second, 5*time.Millisecond)
	h.waitState(t, StateConnecting)
}

func TestReconnect_NormalCloseSettles(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	conn := h.connect(t, "alice")

	conn.closing(transport.CloseNormal)
	h.waitState(t, StateDisconnected)

	n, err := h.svc.PendingReconnects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, h.dialer.dials())
}

func TestReconnect_AbnormalClosedWithoutClosing(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	conn.closedWith(transport.CloseAbnormal)
	h.waitState(t, StateDisconnected)

	n, err := h.svc.PendingReconnects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHandleEvent_IgnoresStaleConnection(t *testing.T) {
	h := newHarness(t, time.Hour)
	require.NoError(t, h.svc.Connect(context.Background(), "alice"))
	first := h.dialer.last()
	require.NoError(t, h.svc.Connect(context.Background(), "alice"))
	second := h.dialer.last()
	require.NotSame(t, first, second)

	first.open()
	h.sync(t)
	assert.Equal(t, StateConnecting, h.svc.State().Kind)
	_, _, cancelled := first.closeState()
	assert.True(t, cancelled)

	second.open()
	h.waitState(t, StateConnected)
}

func TestDisconnect_ClearsEverything(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	conn := h.connect(t, "alice")
	conn.deliver(text(models.NextID(), models.PublicRoomID, "hello"))
	h.sync(t)

	require.NoError(t, h.svc.Disconnect(context.Background()))

	assert.Equal(t, StateDisconnected, h.svc.State().Kind)
	closed, code, _ := conn.closeState()
	assert.True(t, closed)
	assert.Equal(t, transport.CloseNormal, code)
	_, ok := h.svc.CurrentRoom()
	assert.False(t, ok)
	assert.Equal(t, 0, h.svc.rooms.Pending(models.PublicRoomID))

	_, err := h.svc.SendText(context.Background(), models.PublicRoomID, "late")
	assert.ErrorIs(t, err, ErrNotConnected)
	n, err := h.svc.PendingReconnects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestHandleFrame_MalformedFrameIsDropped(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	conn.raw([]byte(`{"id": "not a number"`))
	conn.deliver(text(models.NextID(), models.PublicRoomID, "still alive"))
	h.sync(t)

	assert.Equal(t, StateConnected, h.svc.State().Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.svc.dispatcher.metrics.FramesDropped.WithLabelValues(metrics.DropDecode)))
	assert.Equal(t, 2, h.svc.rooms.Pending(models.PublicRoomID))
}

func TestDispatch_ContactAdded(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	conn.deliver(models.NewMessage(models.SystemRoomID, "bob", "alice", models.TypeContactAdded))
	h.sync(t)

	contact, err := h.store.GetContactByUsername("bob")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "bob", contact.Nickname)

	assert.Empty(t, h.rows(t, models.SystemRoomID))
	rows := h.rows(t, models.PublicRoomID)
	require.Len(t, rows, 2, "connected notice plus the contact notice")
	notice := rows[1]
	assert.Equal(t, models.SystemSender, notice.SenderID)
	assert.Equal(t, "bob added you as a contact", notice.Content)
	assert.Equal(t, models.StatusSent, notice.Status)
	assert.Equal(t, 2, h.svc.rooms.Pending(models.PublicRoomID))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.svc.dispatcher.metrics.FramesDropped.WithLabelValues(metrics.DropNotJoined)))
}

func TestDispatch_ContactAddedFollowsCurrentRoom(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	room := models.NewPrivateRoom("alice", "carol")
	require.NoError(t, h.svc.JoinRoom(room))

	conn.deliver(models.NewMessage(models.SystemRoomID, "bob", "alice", models.TypeContactAdded))
	h.sync(t)

	rows := h.rows(t, room.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.TypeContactAdded, rows[0].Type)
	assert.Equal(t, 1, h.svc.rooms.Pending(room.ID))
}

func TestDispatch_PeerMessageStoredAsSent(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	m := models.NewMessage(models.PublicRoomID, "bob", "hello", models.TypeText)
	require.Equal(t, models.StatusSending, m.Status)
	conn.deliver(m)
	h.sync(t)

	rows := byID(h.rows(t, models.PublicRoomID), m.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusSent, rows[0].Status)
}

func TestDispatch_ProtocolFramesNotStored(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	login := models.NewMessage(models.PublicRoomID, "bob", "bob:pw", models.TypeLogin)
	conn.deliver(login)
	h.sync(t)

	assert.Empty(t, byID(h.rows(t, models.PublicRoomID), login.ID))
	assert.Equal(t, 2, h.svc.rooms.Pending(models.PublicRoomID), "still shown in the room")
}

func TestDispatch_AmbiguousRoomDoesNotTouchContacts(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	require.NoError(t, h.store.UpsertContact(&models.Contact{Username: "x-zed", Nickname: "x-zed"}))

	conn.deliver(models.NewMessage("alice-x-zed", "x-zed", "hi", models.TypeText))
	h.sync(t)

	contact, err := h.store.GetContactByUsername("x-zed")
	require.NoError(t, err)
	assert.Empty(t, contact.LastMessage)
	assert.Equal(t, 0, contact.UnreadCount)
}

func TestConnect_RejectsSeparatorInUsername(t *testing.T) {
	h := newHarness(t, time.Hour)

	assert.ErrorIs(t, h.svc.Connect(context.Background(), "alice-x"), ErrInvalidUsername)
	assert.ErrorIs(t, h.svc.Connect(context.Background(), ""), ErrInvalidUsername)
	assert.Equal(t, 0, h.dialer.dials())

	h.connect(t, "alice")
	_, err := h.svc.CreatePrivateRoom("bob-x")
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestNewService_LocalizesPublicRoom(t *testing.T) {
	h := newHarnessWith(t, time.Hour, func(o *Options) { o.Language = "zh" })
	h.connect(t, "alice")

	room, ok := h.svc.CurrentRoom()
	require.True(t, ok)
	assert.Equal(t, models.PublicRoomID, room.ID)
	assert.Equal(t, "公共聊天室", room.Name)

	require.NoError(t, h.svc.JoinRoom(models.NewPrivateRoom("alice", "bob")))
	h.svc.LeaveRoom()
	room, _ = h.svc.CurrentRoom()
	assert.Equal(t, "公共聊天室", room.Name)
}

func TestNewService_UnknownLanguageFallsBack(t *testing.T) {
	h := newHarnessWith(t, time.Hour, func(o *Options) { o.Language = "fr" })
	assert.Equal(t, "en", h.svc.dispatcher.lang)
	assert.Equal(t, "Public room", h.svc.rooms.public.Name)
}

func TestDispatch_CheckUserBecomesNotice(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	m := text(models.NextID(), models.PublicRoomID, "who is bob?")
	m.Type = models.TypeCheckUser

	conn.deliver(m)
	h.sync(t)

	rows := byID(h.rows(t, models.PublicRoomID), m.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.TypeSystemNotification, rows[0].Type)
}

func TestDispatch_PrivateMessageUpdatesContact(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	require.NoError(t, h.store.UpsertContact(&models.Contact{Username: "bob", Nickname: "bob"}))
	room := models.NewPrivateRoom("alice", "bob")

	first := models.NewMessage(room.ID, "bob", "psst", models.TypeText)
	conn.deliver(first)
	h.sync(t)

	assert.Len(t, h.rows(t, room.ID), 1)
	assert.Equal(t, 0, h.svc.rooms.Pending(room.ID))
	contact, err := h.store.GetContactByUsername("bob")
	require.NoError(t, err)
	assert.Equal(t, "psst", contact.LastMessage)
	assert.Equal(t, 1, contact.UnreadCount)

	require.NoError(t, h.svc.JoinRoom(room))
	contact, err = h.store.GetContactByUsername("bob")
	require.NoError(t, err)
	assert.Equal(t, 0, contact.UnreadCount)

	conn.deliver(models.NewMessage(room.ID, "bob", "you there?", models.TypeText))
	h.sync(t)
	assert.Equal(t, 1, h.svc.rooms.Pending(room.ID))
	contact, err = h.store.GetContactByUsername("bob")
	require.NoError(t, err)
	assert.Equal(t, 0, contact.UnreadCount)
	assert.Equal(t, "you there?", contact.LastMessage)

	rooms, err := h.svc.Rooms()
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)
}

func TestCurrentRoomMessages_EndToEnd(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := h.svc.CurrentRoomMessages(ctx)

	notice := receive(t, feed)
	assert.Equal(t, models.TypeSystemNotification, notice.Type)

	conn.deliver(text(models.NextID(), models.PublicRoomID, "from bob"))
	assert.Equal(t, "from bob", receive(t, feed).Content)
}

func TestMessagesForRoom_Live(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	history := h.svc.MessagesForRoom(ctx, models.PublicRoomID)
	conn.deliver(text(models.NextID(), models.PublicRoomID, "from bob"))

	assert.Eventually(t, func() bool {
		select {
		case snapshot := <-history:
			return len(snapshot) == 2
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	after, err := h.svc.MessagesAfter(models.PublicRoomID, 0)
	require.NoError(t, err)
	assert.Len(t, after, 2)

	require.NoError(t, h.svc.ClearRoom(models.PublicRoomID))
	assert.Empty(t, h.rows(t, models.PublicRoomID))
}

func TestCreatePrivateRoom(t *testing.T) {
	h := newHarness(t, time.Hour)
	_, err := h.svc.CreatePrivateRoom("bob")
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	h.connect(t, "bob")
	room, err := h.svc.CreatePrivateRoom("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice-bob", room.ID)
	assert.Equal(t, "alice", room.Name)
	assert.Equal(t, models.RoomPrivate, room.Kind)
}

func TestAddContact(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	type result struct {
		contact models.Contact
		err     error
	}
	done := make(chan result, 1)
	go func() {
		c, err := h.svc.AddContact(context.Background(), "carol")
		done <- result{c, err}
	}()

	waitFrame(t, conn, models.TypeCheckUser)
	conn.deliver(models.NewMessage(models.SystemRoomID, models.SystemSender, "true", models.TypeUserResponse))

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "carol", res.contact.Username)

	added := waitFrame(t, conn, models.TypeContactAdded)
	assert.Equal(t, "carol", added.Content)
	assert.Equal(t, "alice", added.SenderID)

	_, err := h.svc.AddContact(context.Background(), "carol")
	assert.ErrorIs(t, err, ErrContactExists)

	require.NoError(t, h.svc.RenameContact("carol", "Caz"))
	contacts, err := h.svc.Contacts()
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Caz", contacts[0].Nickname)

	require.NoError(t, h.svc.MarkRead("carol"))
	require.NoError(t, h.svc.RemoveContact("carol"))
	assert.ErrorIs(t, h.svc.RemoveContact("carol"), ErrContactNotFound)
}

func TestAddContact_UnknownUser(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "alice")

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.AddContact(context.Background(), "ghost")
		done <- err
	}()
	waitFrame(t, conn, models.TypeCheckUser)
	conn.deliver(models.NewMessage(models.SystemRoomID, models.SystemSender, "false", models.TypeUserResponse))

	assert.ErrorIs(t, <-done, ErrUserNotFound)
	contact, err := h.store.GetContactByUsername("ghost")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestAddContact_NotLoggedIn(t *testing.T) {
	h := newHarness(t, time.Hour)
	_, err := h.svc.AddContact(context.Background(), "carol")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestService_NotRunning(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.svc.Close()

	assert.ErrorIs(t, h.svc.Connect(context.Background(), "alice"), ErrNotRunning)
}
